package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/query"
)

func newAggTestStore(t *testing.T) *core.SQLiteStore {
	t.Helper()
	dbPath := fmt.Sprintf("/tmp/test_gamedex_stats_%d.db", time.Now().UnixNano())
	t.Cleanup(func() { _ = os.Remove(dbPath) })

	store, err := core.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	return store
}

func priceRecord(id int64, name string, price float64) *core.Record {
	return &core.Record{
		AppID:       id,
		Name:        name,
		ReleaseDate: "2020-01-01",
		Price:       &price,
	}
}

func matchAll(t *testing.T) *query.PredicateSet {
	t.Helper()
	ps, err := query.Compile(nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return ps
}

func TestAggregateMeanPrice(t *testing.T) {
	store := newAggTestStore(t)
	ctx := context.Background()

	for i, price := range []float64{9.99, 19.99, 29.99} {
		if err := store.Upsert(ctx, priceRecord(int64(i+1), "G", price)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	agg := NewAggregator(store, false)
	result, err := agg.Aggregate(ctx, "mean", "price", matchAll(t))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	mean := result["price"]["mean"]
	if mean == nil || math.Abs(*mean-19.99) > 1e-9 {
		t.Errorf("mean price: got %v, want 19.99", mean)
	}
}

func TestAggregateComposesWithFilters(t *testing.T) {
	store := newAggTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, priceRecord(1, "Portal", 10)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, priceRecord(2, "Portal 2", 20)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, priceRecord(3, "Other", 90)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	preds, err := query.Compile(map[string]string{"name": "Portal"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	agg := NewAggregator(store, false)
	result, err := agg.Aggregate(ctx, "mean", "price", preds)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	mean := result["price"]["mean"]
	if mean == nil || math.Abs(*mean-15) > 1e-9 {
		t.Errorf("filtered mean: got %v, want 15", mean)
	}
}

func TestAggregateAllColumns(t *testing.T) {
	store := newAggTestStore(t)
	ctx := context.Background()

	// Only price is populated; the other aggregable columns stay null so
	// their counts must be zero and their statistics null.
	if err := store.Upsert(ctx, priceRecord(1, "G", 12.5)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	agg := NewAggregator(store, false)
	result, err := agg.Aggregate(ctx, "all", "all", matchAll(t))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	for _, column := range []string{"price", "dlc_count", "positive", "negative"} {
		if _, ok := result[column]; !ok {
			t.Errorf("column %s missing from all-columns result", column)
		}
	}

	if count := result["price"]["count"]; count == nil || *count != 1 {
		t.Errorf("price count: got %v, want 1", count)
	}
	if count := result["dlc_count"]["count"]; count == nil || *count != 0 {
		t.Errorf("dlc_count count: got %v, want 0", count)
	}
	if mean := result["dlc_count"]["mean"]; mean != nil {
		t.Errorf("dlc_count mean on all-null column: got %v, want nil", *mean)
	}
}

func TestAggregateRejectsBadColumn(t *testing.T) {
	store := newAggTestStore(t)
	agg := NewAggregator(store, false)

	_, err := agg.Aggregate(context.Background(), "mean", "name", matchAll(t))
	if !errors.Is(err, ErrBadColumn) {
		t.Errorf("column=name: got %v, want ErrBadColumn", err)
	}

	_, err = agg.Aggregate(context.Background(), "mean", "nope", matchAll(t))
	if err == nil {
		t.Error("column=nope should fail")
	}
}

func TestAggregateDisabledMoments(t *testing.T) {
	store := newAggTestStore(t)
	agg := NewAggregator(store, false)

	_, err := agg.Aggregate(context.Background(), "skewness", "price", matchAll(t))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}
