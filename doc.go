// Package gamedex is a query and analytics engine for a games catalog backed
// by SQLite.
//
// The Engine façade composes four services over one store:
//
//   - filtered queries with cursor pagination (pkg/query, pkg/core)
//   - statistics over aggregable numeric columns (pkg/stats)
//   - TF-IDF text similarity search (pkg/similarity)
//   - CSV ingestion with per-row rejection auditing (pkg/ingest)
//
// Basic usage:
//
//	engine, err := gamedex.Open(ctx, gamedex.Options{Path: "./catalog.db"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	res, err := engine.ImportFile(ctx, "games.csv")
//	page, err := engine.Query(ctx, map[string]string{"genres": "puzzle"}, 0, 20)
//	stats, err := engine.Aggregate(ctx, "mean", "price", nil)
//	similar, err := engine.SimilarByID(ctx, 620, 10, true)
package gamedex
