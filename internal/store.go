package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the durable state of a destination library: a checksum index and
// a location index, kept in <dest>/.curator/curator.db.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the store for a destination root.
func OpenStore(root string) (*Store, error) {
	stateDir := filepath.Join(root, ".curator")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	dbPath := filepath.Join(stateDir, "curator.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout to 5 seconds (retry instead of failing immediately)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS checksums (
		checksum TEXT PRIMARY KEY,
		path TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS locations (
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		city TEXT,
		town TEXT,
		village TEXT,
		state TEXT,
		country TEXT,
		place_default TEXT,
		PRIMARY KEY (latitude, longitude)
	);
	CREATE TABLE IF NOT EXISTS named_locations (
		name TEXT PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetPath returns the last-known path for a content checksum.
func (s *Store) GetPath(checksum string) (string, bool, error) {
	var path string
	err := s.db.QueryRow("SELECT path FROM checksums WHERE checksum = ?", checksum).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// PutChecksum records the final destination path for a content checksum.
// Replacement keeps the index pointing at the latest location of the bytes.
func (s *Store) PutChecksum(checksum, path string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO checksums (checksum, path) VALUES (?, ?)", checksum, path)
	return err
}

// EachChecksum calls fn for every recorded (checksum, path) pair.
func (s *Store) EachChecksum(fn func(checksum, path string) error) error {
	rows, err := s.db.Query("SELECT checksum, path FROM checksums")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var checksum, path string
		if err := rows.Scan(&checksum, &path); err != nil {
			return err
		}
		if err := fn(checksum, path); err != nil {
			return err
		}
	}
	return rows.Err()
}

// NearestLocation finds the closest cached place within radiusM meters.
// The location table stays small enough that a full scan with the distance
// approximation beats maintaining a spatial index.
func (s *Store) NearestLocation(lat, lon float64, radiusM float64) (PlaceName, bool, error) {
	rows, err := s.db.Query(`
		SELECT latitude, longitude, city, town, village, state, country, place_default
		FROM locations
	`)
	if err != nil {
		return PlaceName{}, false, err
	}
	defer rows.Close()

	var best PlaceName
	found := false
	shortest := radiusM

	for rows.Next() {
		var rowLat, rowLon float64
		var place PlaceName
		if err := rows.Scan(&rowLat, &rowLon, &place.City, &place.Town, &place.Village,
			&place.State, &place.Country, &place.Default); err != nil {
			return PlaceName{}, false, err
		}

		d := distanceM(lat, lon, rowLat, rowLon)
		if d <= shortest {
			shortest = d
			best = place
			found = true
		}
	}
	return best, found, rows.Err()
}

func (s *Store) PutLocation(lat, lon float64, place PlaceName) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO locations
		(latitude, longitude, city, town, village, state, country, place_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, lat, lon, place.City, place.Town, place.Village, place.State, place.Country, place.Default)
	return err
}

func (s *Store) LocationByName(name string) (float64, float64, bool, error) {
	var lat, lon float64
	err := s.db.QueryRow("SELECT latitude, longitude FROM named_locations WHERE name = ?", name).Scan(&lat, &lon)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return lat, lon, true, nil
}

func (s *Store) PutNamedLocation(name string, lat, lon float64) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO named_locations (name, latitude, longitude) VALUES (?, ?, ?)",
		name, lat, lon)
	return err
}
