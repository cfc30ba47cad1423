// Package similarity implements TF-IDF nearest-neighbor search over the
// catalog's concatenated text fields.
//
// The fitted model is an immutable Index: per-record L2-normalized sparse
// term-weight vectors plus the corpus IDF table. Queries are vectorized with
// the fitted vocabulary only — out-of-vocabulary terms contribute zero weight
// and never refit the model. Ranking is cosine similarity, which reduces to a
// sparse dot product because all vectors are unit length.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Match is one scored search result.
type Match struct {
	ID    int64
	Score float64
}

// Index is a fitted TF-IDF vector space. It is immutable after construction
// and safe for unbounded concurrent reads.
type Index struct {
	idf     map[string]float64
	vectors []docVector // ascending by id
	byID    map[int64]int
}

type docVector struct {
	id    int64
	terms map[string]float64 // L2-normalized tf-idf weights
}

// Doc is one corpus document: a record identifier and its concatenated
// searchable text.
type Doc struct {
	ID   int64
	Text string
}

// NewIndex fits a TF-IDF model over the corpus. IDF uses the smoothed form
// ln((1+N)/(1+df))+1, so no fitted term ever has zero weight and a document's
// similarity to itself is exactly 1.
func NewIndex(docs []Doc) *Index {
	ix := &Index{
		idf:  make(map[string]float64),
		byID: make(map[int64]int, len(docs)),
	}

	tokenized := make([][]string, len(docs))
	docFreq := make(map[string]int)
	for i, doc := range docs {
		terms := tokenize(doc.Text)
		tokenized[i] = terms

		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	n := float64(len(docs))
	for term, df := range docFreq {
		ix.idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	ix.vectors = make([]docVector, len(docs))
	for i, doc := range docs {
		ix.vectors[i] = docVector{id: doc.ID, terms: ix.weigh(tokenized[i])}
	}
	sort.Slice(ix.vectors, func(i, j int) bool {
		return ix.vectors[i].id < ix.vectors[j].id
	})
	for i, v := range ix.vectors {
		ix.byID[v.id] = i
	}
	return ix
}

// Size returns the number of indexed documents.
func (ix *Index) Size() int {
	return len(ix.vectors)
}

// Has reports whether a record identifier is in the index.
func (ix *Index) Has(id int64) bool {
	_, ok := ix.byID[id]
	return ok
}

// VectorOf returns the fitted vector of an indexed record.
func (ix *Index) VectorOf(id int64) (map[string]float64, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return ix.vectors[i].terms, true
}

// Vectorize converts free text into a normalized vector in the fitted space.
// Terms outside the fitted vocabulary are dropped.
func (ix *Index) Vectorize(text string) map[string]float64 {
	return ix.weigh(tokenize(text))
}

// Scores computes the cosine similarity of qv against every indexed
// document, in ascending identifier order.
func (ix *Index) Scores(qv map[string]float64) []Match {
	matches := make([]Match, len(ix.vectors))
	for i, v := range ix.vectors {
		matches[i] = Match{ID: v.id, Score: dot(qv, v.terms)}
	}
	return matches
}

// weigh turns a term list into an L2-normalized tf-idf vector, skipping
// out-of-vocabulary terms.
func (ix *Index) weigh(terms []string) map[string]float64 {
	vec := make(map[string]float64)
	for _, term := range terms {
		if idf, ok := ix.idf[term]; ok {
			vec[term] += idf
		}
	}

	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for term := range vec {
			vec[term] /= norm
		}
	}
	return vec
}

// dot computes the sparse dot product, iterating the smaller vector.
func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, wa := range a {
		sum += wa * b[term]
	}
	return sum
}

// stopWords are dropped during tokenization.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "as": true, "you": true, "your": true,
}

// tokenize lowercases text, splits on non-alphanumeric runes, and drops stop
// words and single-character terms.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms []string
	for _, word := range words {
		if !stopWords[word] && len(word) > 1 {
			terms = append(terms, word)
		}
	}
	return terms
}
