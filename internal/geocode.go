package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Address holds the components of a reverse-geocoding result we care about.
type Address struct {
	City    string
	Town    string
	Village string
	State   string
	Country string
}

// Geocoder resolves coordinates to addresses and place names to coordinates.
type Geocoder interface {
	ReverseGeocode(lat, lon float64, language string) (*Address, error)
	Geocode(name string) (lat, lon float64, found bool, err error)
}

// NominatimGeocoder talks to OpenStreetMap's Nominatim API.
type NominatimGeocoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewNominatimGeocoder(timeout time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		client:    &http.Client{Timeout: timeout},
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: "curator-media-organizer",
	}
}

// nominatimResponse mirrors the JSON shape of Nominatim reverse results.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (g *NominatimGeocoder) ReverseGeocode(lat, lon float64, language string) (*Address, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	if language != "" {
		q.Set("accept-language", language)
	}

	var result nominatimResponse
	if err := g.get(g.baseURL+"/reverse?"+q.Encode(), &result); err != nil {
		return nil, err
	}

	return &Address{
		City:    result.Address.City,
		Town:    result.Address.Town,
		Village: result.Address.Village,
		State:   result.Address.State,
		Country: result.Address.Country,
	}, nil
}

func (g *NominatimGeocoder) Geocode(name string) (float64, float64, bool, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", "1")

	var results []nominatimResponse
	if err := g.get(g.baseURL+"/search?"+q.Encode(), &results); err != nil {
		return 0, 0, false, err
	}
	if len(results) == 0 {
		return 0, 0, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocoding returned bad latitude %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocoding returned bad longitude %q", results[0].Lon)
	}
	return lat, lon, true, nil
}

func (g *NominatimGeocoder) get(rawURL string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse geocoding response: %w", err)
	}
	return nil
}
