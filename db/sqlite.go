package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Store is an artifact bundle kept in a single SQLite file. The server only
// reads from it; Put is used when packing a bundle.
type Store struct {
	path     string
	database *sql.DB
}

type Artifact struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open opens the bundle at path. With readOnly set the file must already exist.
func Open(path string, readOnly bool) (*Store, error) {
	dsn := "file:" + path + "?_busy_timeout=5000"
	if readOnly {
		dsn += "&mode=ro"
	}
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open artifact bundle")
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "open artifact bundle %s", path)
	}

	s := &Store{path: path, database: database}
	if !readOnly {
		if err := s.init(); err != nil {
			database.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) init() error {
	query := `
    CREATE TABLE IF NOT EXISTS artifacts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        payload BLOB NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE(name)
    );
    `
	_, err := s.database.Exec(query)
	return errors.Wrap(err, "create artifacts table")
}

func (s *Store) Read(name string) ([]byte, error) {
	var payload []byte
	err := s.database.QueryRow(`SELECT payload FROM artifacts WHERE name = ?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("artifact %s not found in %s", name, s.path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", name)
	}
	return payload, nil
}

// Put inserts or replaces one artifact.
func (s *Store) Put(name string, payload []byte) error {
	if name == "" {
		return errors.New("artifact name required")
	}
	_, err := s.database.Exec(`
        INSERT OR REPLACE INTO artifacts (name, payload, updated_at)
        VALUES (?, ?, ?)`,
		name, payload, time.Now().UTC())
	return errors.Wrapf(err, "store %s", name)
}

func (s *Store) List() ([]Artifact, error) {
	rows, err := s.database.Query(`
        SELECT name, length(payload), updated_at
        FROM artifacts
        ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list artifacts")
	}
	defer rows.Close()

	artifacts := make([]Artifact, 0)
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Name, &a.Size, &a.UpdatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *Store) Close() error {
	return s.database.Close()
}

func (s *Store) String() string {
	return "sqlite:" + s.path
}
