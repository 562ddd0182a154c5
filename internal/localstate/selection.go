package localstate

import (
	"context"
	"database/sql"
)

const selectedProjectKey = "selected_project"

// SelectedProject returns the persisted project selection, or "" when none
// has been made yet.
func (d *DB) SelectedProject(ctx context.Context) (string, error) {
	var v string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM selection WHERE key=?`, selectedProjectKey).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetSelectedProject persists the active project id so the next invocation
// resumes where the last one left off. An empty id clears the selection.
func (d *DB) SetSelectedProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		_, err := d.conn.ExecContext(ctx, `DELETE FROM selection WHERE key=?`, selectedProjectKey)
		return err
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO selection(key,value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		selectedProjectKey, projectID)
	return err
}
