package similarity

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/liliang-cn/gamedex/pkg/core"
)

var (
	// ErrNotIndexed is returned when the seed record is absent from the
	// fitted corpus.
	ErrNotIndexed = errors.New("record not in similarity index")
	// ErrEmptyQuery is returned when a text query tokenizes to nothing
	// known to the fitted vocabulary.
	ErrEmptyQuery = errors.New("query text has no indexable terms")
)

// DefaultTopK is the result count used when a caller passes k <= 0.
const DefaultTopK = 10

// CorpusSource supplies the text corpus the searcher fits over.
type CorpusSource interface {
	TextCorpus(ctx context.Context) ([]core.TextDoc, error)
}

// Searcher owns the index lifecycle. The fitted index is built lazily on the
// first search and marked stale by Invalidate after catalog writes; a stale
// index is rebuilt synchronously by the next search. Readers snapshot the
// current index under a read lock, so in-flight searches are never torn by a
// concurrent rebuild.
type Searcher struct {
	source CorpusSource
	logger core.Logger

	mu    sync.RWMutex
	index *Index
	stale bool
}

// NewSearcher creates a searcher over the given corpus source. A nil logger
// disables logging.
func NewSearcher(source CorpusSource, logger core.Logger) *Searcher {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Searcher{source: source, logger: logger}
}

// Invalidate marks the fitted index stale. The next search rebuilds it.
func (s *Searcher) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Ready reports whether a current (non-stale) index is fitted.
func (s *Searcher) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil && !s.stale
}

// SearchByID ranks the corpus against an indexed record's own vector. With
// excludeSelf false the seed record comes back first with score 1. Results
// are ordered by descending score, ties broken by ascending identifier with
// the seed winning any tie.
func (s *Searcher) SearchByID(ctx context.Context, id int64, k int, excludeSelf bool) ([]Match, error) {
	ix, err := s.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	qv, ok := ix.VectorOf(id)
	if !ok {
		return nil, ErrNotIndexed
	}

	matches := ix.Scores(qv)
	if excludeSelf {
		matches = drop(matches, id)
	}
	rank(matches, id)
	return truncate(matches, k), nil
}

// SearchText ranks the corpus against free text vectorized in the fitted
// space. Text that shares no terms with the fitted vocabulary is rejected
// with ErrEmptyQuery.
func (s *Searcher) SearchText(ctx context.Context, text string, k int) ([]Match, error) {
	ix, err := s.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	qv := ix.Vectorize(text)
	if len(qv) == 0 {
		return nil, ErrEmptyQuery
	}

	matches := ix.Scores(qv)
	rank(matches, -1)
	return truncate(matches, k), nil
}

// ensureIndex returns the current index, fitting or refitting it first if it
// is missing or stale. The rebuild holds the write lock, so concurrent
// searches either snapshot the old index before the swap or wait for the new
// one.
func (s *Searcher) ensureIndex(ctx context.Context) (*Index, error) {
	s.mu.RLock()
	if s.index != nil && !s.stale {
		ix := s.index
		s.mu.RUnlock()
		return ix, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && !s.stale {
		return s.index, nil
	}

	docs, err := s.source.TextCorpus(ctx)
	if err != nil {
		return nil, err
	}

	corpus := make([]Doc, len(docs))
	for i, d := range docs {
		corpus[i] = Doc{ID: d.ID, Text: d.Text}
	}
	s.index = NewIndex(corpus)
	s.stale = false
	s.logger.Info("similarity index fitted", "docs", s.index.Size())
	return s.index, nil
}

// rank sorts matches by descending score; ties go to prefer when set, then
// ascending identifier.
func rank(matches []Match, prefer int64) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if prefer >= 0 && (a.ID == prefer || b.ID == prefer) {
			return a.ID == prefer
		}
		return a.ID < b.ID
	})
}

func drop(matches []Match, id int64) []Match {
	out := matches[:0]
	for _, m := range matches {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func truncate(matches []Match, k int) []Match {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
