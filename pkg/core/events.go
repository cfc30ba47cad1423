package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// InsertEvent persists a completed ingestion event.
func (s *SQLiteStore) InsertEvent(ctx context.Context, evt *IngestEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("insert_event", ErrStoreClosed)
	}

	var rejections []byte
	if len(evt.Rejections) > 0 {
		var err error
		rejections, err = json.Marshal(evt.Rejections)
		if err != nil {
			return wrapError("insert_event", fmt.Errorf("failed to marshal rejections: %w", err))
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_events (id, source, mode, accepted, rejected, rejections, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, evt.ID, evt.Source, evt.Mode, evt.Accepted, evt.Rejected, rejections, evt.CreatedAt)
	if err != nil {
		return wrapError("insert_event", fmt.Errorf("failed to insert event: %w", err))
	}
	return nil
}

// ListEvents returns ingestion events, most recent first.
func (s *SQLiteStore) ListEvents(ctx context.Context) ([]IngestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_events", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, mode, accepted, rejected, rejections, created_at
		FROM ingest_events ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, wrapError("list_events", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during list events", "error", closeErr)
		}
	}()

	var events []IngestEvent
	for rows.Next() {
		var evt IngestEvent
		var rejections []byte
		if err := rows.Scan(&evt.ID, &evt.Source, &evt.Mode, &evt.Accepted,
			&evt.Rejected, &rejections, &evt.CreatedAt); err != nil {
			return nil, wrapError("list_events", err)
		}
		if len(rejections) > 0 {
			if err := json.Unmarshal(rejections, &evt.Rejections); err != nil {
				s.logger.Warn("failed to unmarshal event rejections", "event", evt.ID, "error", err)
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list_events", err)
	}
	return events, nil
}
