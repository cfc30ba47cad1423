package gamedex

import (
	"context"
	"io"

	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/ingest"
	"github.com/liliang-cn/gamedex/pkg/query"
	"github.com/liliang-cn/gamedex/pkg/similarity"
	"github.com/liliang-cn/gamedex/pkg/stats"
)

// DefaultLimit is the page size used when a query asks for none.
const DefaultLimit = 10

// Options configures an Engine. The zero value of every field except Path
// falls back to a sensible default.
type Options struct {
	// Path is the SQLite database file. Required.
	Path string
	// MaxPageSize caps query page sizes. Defaults to core.DefaultMaxPageSize.
	MaxPageSize int
	// DefaultLimit is the page size applied when a query passes limit <= 0.
	DefaultLimit int
	// EnableMoments turns on the skewness and kurtosis aggregates.
	EnableMoments bool
	// MaxImportBytes caps ingestion source size. Defaults to
	// ingest.DefaultMaxBytes.
	MaxImportBytes int64
	// Logger receives structured events. Nil disables logging.
	Logger core.Logger
}

// Engine bundles the catalog store with its derived services: filtered
// pagination, statistics, similarity search and CSV ingestion.
type Engine struct {
	store        *core.SQLiteStore
	agg          *stats.Aggregator
	searcher     *similarity.Searcher
	importer     *ingest.Importer
	defaultLimit int
}

// Open creates or opens the catalog database at opts.Path and wires the
// services over it.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	cfg := core.DefaultConfig(opts.Path)
	if opts.MaxPageSize > 0 {
		cfg.MaxPageSize = opts.MaxPageSize
	}
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}

	store, err := core.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}

	searcher := similarity.NewSearcher(store, store.Logger())

	var importOpts []ingest.Option
	if opts.MaxImportBytes > 0 {
		importOpts = append(importOpts, ingest.WithMaxBytes(opts.MaxImportBytes))
	}

	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &Engine{
		store:        store,
		agg:          stats.NewAggregator(store, opts.EnableMoments),
		searcher:     searcher,
		importer:     ingest.NewImporter(store, searcher, importOpts...),
		defaultLimit: limit,
	}, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the underlying catalog store.
func (e *Engine) Store() *core.SQLiteStore {
	return e.store
}

// QueryPage is one page of a filtered traversal. Next is nil when the
// traversal is exhausted.
type QueryPage struct {
	Total   int
	Records []core.Record
	Next    *int64
}

// Query compiles params into filter predicates and returns one page starting
// at cursor. limit <= 0 selects the engine's default page size; Total counts
// every match regardless of pagination.
func (e *Engine) Query(ctx context.Context, params map[string]string, cursor int64, limit int) (*QueryPage, error) {
	preds, err := query.Compile(params)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.defaultLimit
	}

	total, err := e.store.Count(ctx, preds)
	if err != nil {
		return nil, err
	}
	records, next, err := e.store.Query(ctx, preds, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &QueryPage{Total: total, Records: records, Next: next}, nil
}

// Get returns one record by identifier.
func (e *Engine) Get(ctx context.Context, id int64) (*core.Record, error) {
	return e.store.GetByID(ctx, id)
}

// Aggregate computes the named statistics over the named aggregable columns,
// restricted to records matching params. The result maps column name to
// function name to value; values are nil when a column has no non-null data.
func (e *Engine) Aggregate(ctx context.Context, fnSpec, colSpec string, params map[string]string) (map[string]map[string]*float64, error) {
	preds, err := query.Compile(params)
	if err != nil {
		return nil, err
	}
	return e.agg.Aggregate(ctx, fnSpec, colSpec, preds)
}

// ScoredRecord is a similarity result joined back to its full record.
type ScoredRecord struct {
	Record core.Record `json:"record"`
	Score  float64     `json:"score"`
}

// SimilarByID ranks the catalog against the text of an existing record.
func (e *Engine) SimilarByID(ctx context.Context, id int64, k int, excludeSelf bool) ([]ScoredRecord, error) {
	matches, err := e.searcher.SearchByID(ctx, id, k, excludeSelf)
	if err != nil {
		return nil, err
	}
	return e.hydrate(ctx, matches)
}

// SimilarByText ranks the catalog against free query text.
func (e *Engine) SimilarByText(ctx context.Context, text string, k int) ([]ScoredRecord, error) {
	matches, err := e.searcher.SearchText(ctx, text, k)
	if err != nil {
		return nil, err
	}
	return e.hydrate(ctx, matches)
}

func (e *Engine) hydrate(ctx context.Context, matches []similarity.Match) ([]ScoredRecord, error) {
	out := make([]ScoredRecord, 0, len(matches))
	for _, m := range matches {
		rec, err := e.store.GetByID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredRecord{Record: *rec, Score: m.Score})
	}
	return out, nil
}

// ImportFile ingests a local CSV file.
func (e *Engine) ImportFile(ctx context.Context, path string) (*ingest.Result, error) {
	return e.importer.ImportFile(ctx, path)
}

// ImportURL downloads and ingests a remote CSV source.
func (e *Engine) ImportURL(ctx context.Context, url string) (*ingest.Result, error) {
	return e.importer.ImportURL(ctx, url)
}

// ImportReader ingests CSV data from an arbitrary reader.
func (e *Engine) ImportReader(ctx context.Context, r io.Reader, source, mode string) (*ingest.Result, error) {
	return e.importer.ImportReader(ctx, r, source, mode)
}

// Events lists past import operations, newest first.
func (e *Engine) Events(ctx context.Context) ([]core.IngestEvent, error) {
	return e.store.ListEvents(ctx)
}
