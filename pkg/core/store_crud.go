package core

import (
	"context"
	"database/sql"
	"fmt"
)

// gameColumns is the column list shared by the insert and select statements,
// in schema order.
const gameColumns = `app_id, name, release_date, required_age, price, dlc_count,
	about_game, supported_languages, windows, mac, linux, positive, negative,
	score_rank, developers, publishers, categories, genres, tags`

const upsertSQL = `
	INSERT OR REPLACE INTO games (` + gameColumns + `, event_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

// recordArgs flattens a record into upsertSQL's argument list. Nil pointers
// pass through as SQL NULL.
func recordArgs(rec *Record, eventID string) []any {
	var evt any
	if eventID != "" {
		evt = eventID
	}
	return []any{
		rec.AppID, rec.Name, rec.ReleaseDate, rec.RequiredAge, rec.Price,
		rec.DLCCount, rec.AboutGame, rec.SupportedLanguages,
		boolToInt(rec.Windows), boolToInt(rec.Mac), boolToInt(rec.Linux),
		rec.Positive, rec.Negative, rec.ScoreRank, rec.Developers,
		rec.Publishers, rec.Categories, rec.Genres, rec.Tags, evt,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Upsert inserts or replaces a single record keyed by its AppID.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("upsert", ErrStoreClosed)
	}

	if _, err := s.db.ExecContext(ctx, upsertSQL, recordArgs(rec, "")...); err != nil {
		return wrapError("upsert", fmt.Errorf("failed to insert record %d: %w", rec.AppID, err))
	}
	return nil
}

// UpsertBatch inserts or replaces multiple records in one transaction.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}

	batch, err := s.BeginBatch(ctx, "")
	if err != nil {
		return err
	}
	defer batch.Rollback()

	for _, rec := range recs {
		if err := batch.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// Batch is an open upsert transaction. It lets an ingestion call stream rows
// through one transaction boundary with a single prepared statement, so a
// partially-ingested source is never visible to concurrent readers and peak
// memory stays independent of source size.
type Batch struct {
	store   *SQLiteStore
	tx      *sql.Tx
	stmt    *sql.Stmt
	eventID string
	done    bool
}

// BeginBatch opens an upsert transaction. eventID, when non-empty, is stamped
// on every row the batch writes.
func (s *SQLiteStore) BeginBatch(ctx context.Context, eventID string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("begin_batch", ErrStoreClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapError("begin_batch", fmt.Errorf("failed to begin transaction: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		_ = tx.Rollback()
		return nil, wrapError("begin_batch", fmt.Errorf("failed to prepare statement: %w", err))
	}

	return &Batch{store: s, tx: tx, stmt: stmt, eventID: eventID}, nil
}

// Upsert writes one record inside the batch transaction.
func (b *Batch) Upsert(ctx context.Context, rec *Record) error {
	if b.done {
		return wrapError("batch_upsert", fmt.Errorf("batch already finished"))
	}
	if _, err := b.stmt.ExecContext(ctx, recordArgs(rec, b.eventID)...); err != nil {
		return wrapError("batch_upsert", fmt.Errorf("failed to insert record %d: %w", rec.AppID, err))
	}
	return nil
}

// Commit makes the batch visible to readers.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	b.done = true
	_ = b.stmt.Close()
	if err := b.tx.Commit(); err != nil {
		return wrapError("batch_commit", err)
	}
	return nil
}

// Rollback discards the batch. Safe to call after Commit.
func (b *Batch) Rollback() {
	if b.done {
		return
	}
	b.done = true
	_ = b.stmt.Close()
	if err := b.tx.Rollback(); err != nil {
		b.store.logger.Warn("failed to rollback batch", "error", err)
	}
}
