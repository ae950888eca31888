package sitegen

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding build history and uploaded file
// metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; the busy timeout makes writers
	// wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    template TEXT NOT NULL,
    fields TEXT NOT NULL,
    unresolved TEXT NOT NULL,
    entries INTEGER NOT NULL,
    size INTEGER NOT NULL,
    sha256 TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);

CREATE TABLE IF NOT EXISTS site_files (
    name TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    content_type TEXT NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

// SaveBuild inserts a build record.
func (s *Store) SaveBuild(b Build) error {
	fields, err := json.Marshal(b.Fields)
	if err != nil {
		return err
	}
	unresolved, err := json.Marshal(b.Unresolved)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO builds (id, template, fields, unresolved, entries, size, sha256, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Template, string(fields), string(unresolved), b.Entries, b.Size, b.SHA256, b.CreatedAt)
	return err
}

// ListBuilds returns the most recent builds, newest first.
func (s *Store) ListBuilds(limit int) ([]Build, error) {
	rows, err := s.db.Query(`SELECT id, template, fields, unresolved, entries, size, sha256, created_at FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		var fields, unresolved string
		if err := rows.Scan(&b.ID, &b.Template, &fields, &unresolved, &b.Entries, &b.Size, &b.SHA256, &b.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &b.Fields); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(unresolved), &b.Unresolved); err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// GetBuild returns a build by id, or sql.ErrNoRows.
func (s *Store) GetBuild(id string) (Build, error) {
	var b Build
	var fields, unresolved string
	err := s.db.QueryRow(`SELECT id, template, fields, unresolved, entries, size, sha256, created_at FROM builds WHERE id = ?`, id).
		Scan(&b.ID, &b.Template, &fields, &unresolved, &b.Entries, &b.Size, &b.SHA256, &b.CreatedAt)
	if err != nil {
		return Build{}, err
	}
	if err := json.Unmarshal([]byte(fields), &b.Fields); err != nil {
		return Build{}, err
	}
	if err := json.Unmarshal([]byte(unresolved), &b.Unresolved); err != nil {
		return Build{}, err
	}
	return b, nil
}

// SaveFile upserts metadata for an uploaded file.
func (s *Store) SaveFile(f SiteFile) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO site_files (name, size, content_type, width, height, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.Size, f.ContentType, f.Width, f.Height, f.UploadedAt)
	return err
}

// ListFiles returns metadata for all uploaded files, ordered by name.
func (s *Store) ListFiles() ([]SiteFile, error) {
	rows, err := s.db.Query(`SELECT name, size, content_type, width, height, uploaded_at FROM site_files ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []SiteFile
	for rows.Next() {
		var f SiteFile
		if err := rows.Scan(&f.Name, &f.Size, &f.ContentType, &f.Width, &f.Height, &f.UploadedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes metadata for name. Deleting unknown names is not an error.
func (s *Store) DeleteFile(name string) error {
	_, err := s.db.Exec(`DELETE FROM site_files WHERE name = ?`, name)
	return err
}
