package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nostalgicskinco/precheck-engine/pkg/pii"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id             TEXT PRIMARY KEY,
	corr_id        TEXT NOT NULL,
	platform       TEXT NOT NULL,
	url            TEXT NOT NULL,
	ts             TEXT NOT NULL,
	message_length INTEGER NOT NULL,
	has_pii        INTEGER NOT NULL,
	kinds          TEXT NOT NULL,
	risk_score     INTEGER NOT NULL,
	action         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_ts ON audit_events(ts);
`

// SQLiteStore persists audit events to a local SQLite database so decisions
// can be queried after the fact. Only metadata is stored, never message
// content.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Deliver(ctx context.Context, ev Event) error {
	kinds := make([]string, 0, len(ev.Entities))
	for _, e := range ev.Entities {
		kinds = append(kinds, string(e.Kind))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_events
		 (id, corr_id, platform, url, ts, message_length, has_pii, kinds, risk_score, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CorrID, ev.Platform, ev.URL,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.MessageLength, boolInt(ev.HasPII),
		strings.Join(kinds, ","), ev.RiskScore, string(ev.Action))
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close(context.Context) error { return s.db.Close() }

// Recent returns the newest events, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, corr_id, platform, url, ts, message_length, has_pii, kinds, risk_score, action
		 FROM audit_events ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var ts, kinds, action string
		var hasPII int
		if err := rows.Scan(&ev.ID, &ev.CorrID, &ev.Platform, &ev.URL, &ts,
			&ev.MessageLength, &hasPII, &kinds, &ev.RiskScore, &action); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("audit: parse event timestamp: %w", err)
		}
		ev.HasPII = hasPII != 0
		ev.Action = pii.Action(action)
		for _, k := range strings.Split(kinds, ",") {
			if k != "" {
				ev.Entities = append(ev.Entities, EntityRecord{Kind: pii.Kind(k)})
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
