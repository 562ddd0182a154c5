// Package localstate is the on-disk footprint of the tool: a small SQLite
// database under .sprintline/ holding the persisted project selection and the
// operation journal. Tasks and sprints themselves are never persisted here;
// the remote store owns them and the in-memory cache is rebuilt on startup.
package localstate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const defaultDBName = "sprintline.db"

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".sprintline", defaultDBName)
}

// EnsureWorkspace creates the .sprintline directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".sprintline")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}

// Open opens the workspace database and applies pending migrations.
func Open(workspace string) (*DB, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// DB wraps the workspace database.
type DB struct {
	conn *sql.DB
}

func (d *DB) Close() error { return d.conn.Close() }
