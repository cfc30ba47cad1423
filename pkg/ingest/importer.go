// Package ingest loads catalog CSV sources into the store. A source is
// streamed row by row inside one transaction: structural problems (missing
// headers, unreadable input, oversized source) abort before any write, while
// per-row coercion failures are recorded as rejections and the remaining rows
// still commit. Every call leaves an audit event behind.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/gamedex/pkg/core"
)

var (
	// ErrSourceTooLarge is returned when a source exceeds the configured
	// byte cap. Nothing is written.
	ErrSourceTooLarge = errors.New("source exceeds size limit")
	// ErrEmptySource is returned when the source has no header row.
	ErrEmptySource = errors.New("source has no header row")
)

// HeaderError reports canonical columns absent from the source header row.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required columns: %v", e.Missing)
}

// DefaultMaxBytes caps accepted source size at 150 MB.
const DefaultMaxBytes = 150 << 20

// DefaultFetchTimeout bounds remote source downloads.
const DefaultFetchTimeout = 60 * time.Second

// Invalidator is notified after a commit so derived state can be refitted.
type Invalidator interface {
	Invalidate()
}

// Result summarizes one completed import.
type Result struct {
	EventID    string
	Accepted   int
	Rejected   int
	Rejections []core.Rejection
}

// Importer streams CSV sources into a catalog store.
type Importer struct {
	store    *core.SQLiteStore
	index    Invalidator
	logger   core.Logger
	maxBytes int64
	client   *http.Client
}

// Option configures an Importer.
type Option func(*Importer)

// WithMaxBytes overrides the source size cap.
func WithMaxBytes(n int64) Option {
	return func(im *Importer) { im.maxBytes = n }
}

// WithHTTPClient overrides the client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(im *Importer) { im.client = c }
}

// NewImporter creates an importer writing into store. index may be nil when
// no derived state needs invalidation.
func NewImporter(store *core.SQLiteStore, index Invalidator, opts ...Option) *Importer {
	im := &Importer{
		store:    store,
		index:    index,
		logger:   store.Logger(),
		maxBytes: DefaultMaxBytes,
		client:   &http.Client{Timeout: DefaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile loads a CSV file from the local filesystem.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return im.ImportReader(ctx, f, path, "file")
}

// ImportURL downloads a CSV source and loads it. Only 200 responses are
// accepted.
func (im *Importer) ImportURL(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > im.maxBytes {
		return nil, ErrSourceTooLarge
	}
	return im.ImportReader(ctx, resp.Body, url, "url")
}

// ImportReader streams CSV data from r into the store. The whole source is
// applied in one transaction; if the reader fails or the source is too large
// the transaction rolls back and no rows are kept.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, source, mode string) (*Result, error) {
	limited := &cappedReader{r: r, remaining: im.maxBytes + 1}
	cr := csv.NewReader(limited)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	eventID := uuid.NewString()
	batch, err := im.store.BeginBatch(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer batch.Rollback()

	res := &Result{EventID: eventID}
	row := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			if limited.exhausted {
				return nil, ErrSourceTooLarge
			}
			res.reject(row, fmt.Sprintf("unreadable row: %v", err))
			continue
		}
		if len(fields) < len(header) {
			res.reject(row, fmt.Sprintf("expected %d fields, got %d", len(header), len(fields)))
			continue
		}

		rec, reason := parseRow(fields, cols)
		if reason != "" {
			res.reject(row, reason)
			continue
		}
		if err := batch.Upsert(ctx, rec); err != nil {
			return nil, err
		}
		res.Accepted++
	}
	if limited.exhausted {
		return nil, ErrSourceTooLarge
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}

	evt := &core.IngestEvent{
		ID:         eventID,
		Source:     source,
		Mode:       mode,
		Accepted:   res.Accepted,
		Rejected:   res.Rejected,
		Rejections: res.Rejections,
		CreatedAt:  time.Now().UTC(),
	}
	if err := im.store.InsertEvent(ctx, evt); err != nil {
		return nil, err
	}

	if im.index != nil && res.Accepted > 0 {
		im.index.Invalidate()
	}
	im.logger.Info("import complete",
		"event", eventID, "source", source,
		"accepted", res.Accepted, "rejected", res.Rejected)
	return res, nil
}

func (r *Result) reject(row int, reason string) {
	r.Rejected++
	r.Rejections = append(r.Rejections, core.Rejection{Row: row, Reason: reason})
}

// cappedReader fails the stream once more than remaining bytes have been
// consumed, so oversized sources abort instead of truncating silently.
type cappedReader struct {
	r         io.Reader
	remaining int64
	exhausted bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		c.exhausted = true
		return 0, ErrSourceTooLarge
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}
