package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Journal writes engine operation records to the workspace database. It
// satisfies the engine's Journal interface.
type Journal struct {
	DB  *DB
	Now func() time.Time
}

// Entry is one recorded operation.
type Entry struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	ProjectID  string         `json:"project_id,omitempty"`
	Op         string         `json:"op"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Outcome    string         `json:"outcome"`
	Detail     map[string]any `json:"detail,omitempty"`
}

func (j Journal) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Record appends one operation record.
func (j Journal) Record(ctx context.Context, projectID, op, entityKind, entityID, outcome string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal journal detail: %w", err)
	}
	ts := j.now().UTC().Format(time.RFC3339)
	_, err = j.DB.conn.ExecContext(ctx,
		`INSERT INTO journal(ts,project_id,op,entity_kind,entity_id,outcome,detail_json) VALUES (?,?,?,?,?,?,?)`,
		ts, nullable(projectID), op, entityKind, nullable(entityID), outcome, string(data))
	return err
}

// Recent returns the newest entries for a project, newest first. An empty
// projectID returns entries across all projects.
func (j Journal) Recent(ctx context.Context, projectID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,COALESCE(project_id,''),op,entity_kind,COALESCE(entity_id,''),outcome,detail_json
		FROM journal WHERE (?='' OR project_id=?) ORDER BY id DESC LIMIT ?`
	rows, err := j.DB.conn.QueryContext(ctx, query, projectID, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var detail string
		if err := rows.Scan(&e.ID, &e.TS, &e.ProjectID, &e.Op, &e.EntityKind, &e.EntityID, &e.Outcome, &detail); err != nil {
			return nil, err
		}
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("journal entry %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
