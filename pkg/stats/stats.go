// Package stats computes descriptive statistics over numeric catalog columns.
//
// All formulas are fixed so results are reproducible across deployments:
// percentiles use linear interpolation between the closest order statistics
// (h = (n-1)p), variance and standard deviation are population forms, and
// skewness/kurtosis are the population third/fourth standardized moments with
// Fisher's excess convention for kurtosis.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Func names one supported statistic.
type Func string

const (
	FuncMin      Func = "min"
	FuncMax      Func = "max"
	FuncMedian   Func = "median"
	FuncMean     Func = "mean"
	FuncRange    Func = "range"
	FuncIQR      Func = "iqr"
	FuncStdDev   Func = "std_dev"
	FuncVariance Func = "variance"
	FuncSum      Func = "sum"
	FuncCount    Func = "count"
	FuncP25      Func = "percentile_25"
	FuncP50      Func = "percentile_50"
	FuncP75      Func = "percentile_75"
	FuncSkewness Func = "skewness"
	FuncKurtosis Func = "kurtosis"
)

var (
	// ErrUnknownFunc is returned when a requested aggregate name is not in
	// the supported set.
	ErrUnknownFunc = errors.New("unknown aggregate function")

	// ErrUnsupported is returned when a requested statistic is disabled by
	// the deployment's capability configuration.
	ErrUnsupported = errors.New("aggregate function disabled by configuration")

	// ErrBadColumn is returned when the requested column is not eligible for
	// aggregation.
	ErrBadColumn = errors.New("column is not allowed for aggregation")
)

// baseFuncs is every statistic that is always available, in reporting order.
var baseFuncs = []Func{
	FuncMin, FuncMax, FuncMedian, FuncMean, FuncRange, FuncIQR, FuncStdDev,
	FuncVariance, FuncSum, FuncCount, FuncP25, FuncP50, FuncP75,
}

// momentFuncs are the higher-moment statistics gated behind the capability
// flag.
var momentFuncs = []Func{FuncSkewness, FuncKurtosis}

func isMoment(fn Func) bool {
	return fn == FuncSkewness || fn == FuncKurtosis
}

func isKnown(fn Func) bool {
	for _, f := range baseFuncs {
		if f == fn {
			return true
		}
	}
	return isMoment(fn)
}

// ParseFuncs expands a request's aggregate name into the list of statistics
// to compute. "all" expands to the currently supported set, so with the
// moments capability disabled the skewness and kurtosis keys are absent from
// an "all" result rather than present as null. "percentiles" expands to the
// three percentile statistics. Naming a disabled moment statistic explicitly
// fails with ErrUnsupported; it is never silently omitted.
func ParseFuncs(name string, momentsEnabled bool) ([]Func, error) {
	switch name {
	case "all":
		fns := append([]Func{}, baseFuncs...)
		if momentsEnabled {
			fns = append(fns, momentFuncs...)
		}
		return fns, nil
	case "percentiles":
		return []Func{FuncP25, FuncP50, FuncP75}, nil
	}

	fn := Func(name)
	if !isKnown(fn) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
	}
	if isMoment(fn) && !momentsEnabled {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return []Func{fn}, nil
}

// Summary computes the requested statistics over values. Every statistic of
// an empty value set is nil except count, which is 0; this mirrors the rule
// that a zero-contribution column is a defined result, not an error.
func Summary(values []float64, fns []Func) map[string]*float64 {
	out := make(map[string]*float64, len(fns))
	n := len(values)

	if n == 0 {
		for _, fn := range fns {
			if fn == FuncCount {
				out[string(fn)] = ptr(0)
			} else {
				out[string(fn)] = nil
			}
		}
		return out
	}

	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	// Central moments, population convention (ddof=0).
	var m2, m3, m4 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2 /= float64(n)
	m3 /= float64(n)
	m4 /= float64(n)

	for _, fn := range fns {
		switch fn {
		case FuncMin:
			out[string(fn)] = ptr(sorted[0])
		case FuncMax:
			out[string(fn)] = ptr(sorted[n-1])
		case FuncMedian, FuncP50:
			out[string(fn)] = ptr(percentile(sorted, 50))
		case FuncMean:
			out[string(fn)] = ptr(mean)
		case FuncRange:
			out[string(fn)] = ptr(sorted[n-1] - sorted[0])
		case FuncIQR:
			out[string(fn)] = ptr(percentile(sorted, 75) - percentile(sorted, 25))
		case FuncStdDev:
			out[string(fn)] = ptr(math.Sqrt(m2))
		case FuncVariance:
			out[string(fn)] = ptr(m2)
		case FuncSum:
			out[string(fn)] = ptr(sum)
		case FuncCount:
			out[string(fn)] = ptr(float64(n))
		case FuncP25:
			out[string(fn)] = ptr(percentile(sorted, 25))
		case FuncP75:
			out[string(fn)] = ptr(percentile(sorted, 75))
		case FuncSkewness:
			// Undefined for constant data.
			if m2 == 0 {
				out[string(fn)] = nil
			} else {
				out[string(fn)] = ptr(m3 / math.Pow(m2, 1.5))
			}
		case FuncKurtosis:
			// Fisher excess kurtosis: a normal distribution scores 0.
			if m2 == 0 {
				out[string(fn)] = nil
			} else {
				out[string(fn)] = ptr(m4/(m2*m2) - 3)
			}
		}
	}
	return out
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between the closest order statistics: h = (n-1)*p/100.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := (float64(n) - 1) * p / 100
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

func ptr(f float64) *float64 {
	return &f
}
