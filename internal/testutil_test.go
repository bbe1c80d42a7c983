package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// newCapturedLogger returns a logger plus a function reading everything
// logged so far, for asserting on warnings.
func newCapturedLogger(t *testing.T) (*Logger, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return logger, func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log: %v", err)
		}
		return string(data)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// countingGeocoder is a canned geocoder that records how often the external
// lookup would have happened.
type countingGeocoder struct {
	address *Address
	err     error
	calls   int
}

func (g *countingGeocoder) ReverseGeocode(lat, lon float64, language string) (*Address, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.address, nil
}

func (g *countingGeocoder) Geocode(name string) (float64, float64, bool, error) {
	g.calls++
	if g.err != nil {
		return 0, 0, false, g.err
	}
	return 48.8566, 2.3522, true, nil
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func ptrStr(s string) *string     { return &s }
func ptrFloat(f float64) *float64 { return &f }
