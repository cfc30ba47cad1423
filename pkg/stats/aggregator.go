package stats

import (
	"context"
	"fmt"

	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/query"
	"github.com/liliang-cn/gamedex/pkg/schema"
)

// Aggregator answers statistics requests against the catalog store.
//
// EnableMoments is the deployment capability flag for skewness/kurtosis; when
// it is off, requests naming them fail with ErrUnsupported.
type Aggregator struct {
	store         *core.SQLiteStore
	enableMoments bool
	logger        core.Logger
}

// NewAggregator creates an aggregator over the store.
func NewAggregator(store *core.SQLiteStore, enableMoments bool) *Aggregator {
	return &Aggregator{
		store:         store,
		enableMoments: enableMoments,
		logger:        store.Logger(),
	}
}

// MomentsEnabled reports whether skewness/kurtosis are available.
func (a *Aggregator) MomentsEnabled() bool {
	return a.enableMoments
}

// Aggregate computes fnSpec over colSpec restricted to records matching
// preds, returning column → function → value. fnSpec and colSpec each accept
// "all"; counts may differ across columns because each column contributes
// only its non-null values.
func (a *Aggregator) Aggregate(ctx context.Context, fnSpec, colSpec string, preds *query.PredicateSet) (map[string]map[string]*float64, error) {
	fns, err := ParseFuncs(fnSpec, a.enableMoments)
	if err != nil {
		return nil, err
	}

	columns, err := expandColumns(colSpec)
	if err != nil {
		return nil, err
	}

	result := make(map[string]map[string]*float64, len(columns))
	for _, column := range columns {
		values, err := a.store.NumericColumn(ctx, column, preds)
		if err != nil {
			return nil, err
		}
		result[column] = Summary(values, fns)
		a.logger.Debug("aggregated column", "column", column, "values", len(values), "functions", len(fns))
	}
	return result, nil
}

// expandColumns resolves a column request against the schema registry.
func expandColumns(colSpec string) ([]string, error) {
	if colSpec == "all" || colSpec == "" {
		return schema.AggregableFields(), nil
	}
	field, err := schema.Lookup(colSpec)
	if err != nil {
		return nil, err
	}
	if !field.Aggregable {
		return nil, fmt.Errorf("%w: %s", ErrBadColumn, colSpec)
	}
	return []string{field.Name}, nil
}
