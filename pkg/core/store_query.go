package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/liliang-cn/gamedex/pkg/query"
	"github.com/liliang-cn/gamedex/pkg/schema"
)

// Query returns one page of records matching preds with app_id >= cursor,
// ordered ascending by app_id. limit is clamped to [1, MaxPageSize]. The
// second return value is the cursor for the next page: one past the last
// returned identifier when the page is full, nil when the traversal is
// exhausted.
//
// Records inserted with an identifier below the caller's cursor between page
// fetches will not appear in that traversal. This is accepted bounded
// staleness, not snapshot isolation.
func (s *SQLiteStore) Query(ctx context.Context, preds *query.PredicateSet, cursor int64, limit int) ([]Record, *int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, nil, wrapError("query", ErrStoreClosed)
	}

	if limit < 1 {
		limit = 1
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}
	if cursor < 0 {
		cursor = 0
	}

	where, args := preds.Where()
	sqlText := fmt.Sprintf(
		"SELECT %s FROM games WHERE app_id >= ? AND (%s) ORDER BY app_id ASC LIMIT ?",
		gameColumns, where)
	args = append([]any{cursor}, append(args, limit)...)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, wrapError("query", fmt.Errorf("failed to query records: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during query", "error", closeErr)
		}
	}()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, nil, wrapError("query", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapError("query", fmt.Errorf("error iterating rows: %w", err))
	}

	var next *int64
	if len(records) == limit {
		n := records[len(records)-1].AppID + 1
		next = &n
	}
	return records, next, nil
}

// Count returns the number of records matching preds.
func (s *SQLiteStore) Count(ctx context.Context, preds *query.PredicateSet) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("count", ErrStoreClosed)
	}

	where, args := preds.Where()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, wrapError("count", err)
	}
	return n, nil
}

// GetByID returns the record with the given identifier, or ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_by_id", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM games WHERE app_id = ?", gameColumns), id)
	if err != nil {
		return nil, wrapError("get_by_id", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during get by ID", "error", closeErr)
		}
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapError("get_by_id", err)
		}
		return nil, wrapError("get_by_id", ErrNotFound)
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, wrapError("get_by_id", err)
	}
	return rec, nil
}

// NumericColumn returns the non-null values of a numeric column for records
// matching preds, in ascending identifier order. The column name is resolved
// against the schema registry before it is spliced into SQL.
func (s *SQLiteStore) NumericColumn(ctx context.Context, column string, preds *query.PredicateSet) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("numeric_column", ErrStoreClosed)
	}

	field, err := schema.Lookup(column)
	if err != nil {
		return nil, wrapError("numeric_column", err)
	}
	if field.Type != schema.TypeInt && field.Type != schema.TypeReal {
		return nil, wrapError("numeric_column", fmt.Errorf("column %s is not numeric", column))
	}

	where, args := preds.Where()
	sqlText := fmt.Sprintf(
		"SELECT %s FROM games WHERE %s IS NOT NULL AND (%s) ORDER BY app_id ASC",
		field.Name, field.Name, where)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, wrapError("numeric_column", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during numeric column scan", "error", closeErr)
		}
	}()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, wrapError("numeric_column", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("numeric_column", err)
	}
	return values, nil
}

// TextDoc pairs a record identifier with its concatenated searchable text.
type TextDoc struct {
	ID   int64
	Text string
}

// TextCorpus returns every record's concatenated searchable text fields, in
// ascending identifier order. This feeds the similarity index build.
func (s *SQLiteStore) TextCorpus(ctx context.Context) ([]TextDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("text_corpus", ErrStoreClosed)
	}

	concat := strings.Join(schema.SearchableFields(), " || ' ' || ")
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT app_id, %s FROM games ORDER BY app_id ASC", concat))
	if err != nil {
		return nil, wrapError("text_corpus", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during corpus scan", "error", closeErr)
		}
	}()

	var docs []TextDoc
	for rows.Next() {
		var doc TextDoc
		if err := rows.Scan(&doc.ID, &doc.Text); err != nil {
			return nil, wrapError("text_corpus", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("text_corpus", err)
	}
	return docs, nil
}

// scanRecord scans one gameColumns row.
func scanRecord(rows *sql.Rows) (*Record, error) {
	var rec Record
	var price sql.NullFloat64
	var dlcCount, positive, negative, scoreRank sql.NullInt64
	var windows, mac, linux int

	err := rows.Scan(
		&rec.AppID, &rec.Name, &rec.ReleaseDate, &rec.RequiredAge, &price,
		&dlcCount, &rec.AboutGame, &rec.SupportedLanguages, &windows, &mac,
		&linux, &positive, &negative, &scoreRank, &rec.Developers,
		&rec.Publishers, &rec.Categories, &rec.Genres, &rec.Tags,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	rec.Windows = windows != 0
	rec.Mac = mac != 0
	rec.Linux = linux != 0
	if price.Valid {
		rec.Price = &price.Float64
	}
	if dlcCount.Valid {
		rec.DLCCount = &dlcCount.Int64
	}
	if positive.Valid {
		rec.Positive = &positive.Int64
	}
	if negative.Valid {
		rec.Negative = &negative.Int64
	}
	if scoreRank.Valid {
		rec.ScoreRank = &scoreRank.Int64
	}
	return &rec, nil
}
