package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/sources"
)

// AppendEvents appends events to the audit log in one transaction.
func (s *Store) AppendEvents(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEvents(ctx, tx, events)
	})
	return errors.WrapPersistence("append events", events[0].RunID, 0, err)
}

// Events reads the audit log in event_id order.
func (s *Store) Events(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(f.Type))
	}
	if f.AfterID > 0 {
		where = append(where, "event_id > ?")
		args = append(args, f.AfterID)
	}

	query := `SELECT event_id, run_id, event_type, system, event_key, payload, created_at FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_id"

	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapResource("list", "audit events", f.RunID, err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e       audit.Event
			typ     string
			system  string
			payload sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &typ, &system, &e.Key, &payload, &created); err != nil {
			return nil, errors.WrapResource("list", "audit events", f.RunID, err)
		}
		e.Type = audit.EventType(typ)
		e.System = sources.ID(system)
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		e.CreatedAt = fromNanos(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (run_id, event_type, system, event_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		var payload sql.NullString
		if len(e.Payload) > 0 {
			payload = sql.NullString{String: string(e.Payload), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.RunID, string(e.Type), string(e.System), e.Key, payload, toNanos(e.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert %s event: %w", e.Type, err)
		}
	}
	return nil
}
