// Package core provides the SQLite-backed catalog store.
//
// It persists catalog records and ingestion events using modernc.org/sqlite
// (no CGO required) and serves the read paths the engine is built on:
// cursor-paginated filtered queries, match counts, non-null numeric column
// extraction for the statistics aggregator, and the concatenated text corpus
// the similarity index is built from.
//
// Concurrency: reads take a shared lock and are safe for unbounded concurrent
// use. Ingestion writes go through Batch, a single transaction per import
// call, so readers never observe a partially-ingested source.
package core
