// Package query compiles raw request parameters into typed SQL predicates.
//
// A request arrives as a flat map of field name to raw string value. The
// compiler resolves each name against the schema registry, parses the value
// according to the field's declared type, and emits a conjunction of
// parameterized WHERE fragments. Unknown fields and malformed values fail the
// whole request with a ValidationError naming the offending parameter; they
// are never silently dropped, since a dropped typo would look like "no
// filter" to the caller.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liliang-cn/gamedex/pkg/schema"
)

// ValidationError reports a request parameter the compiler rejected.
type ValidationError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func invalid(param, format string, args ...any) error {
	return &ValidationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// Predicate is one parameterized SQL comparison.
type Predicate struct {
	Clause string
	Args   []any
}

// PredicateSet is a conjunction of predicates. The zero value (and the result
// of compiling an empty parameter map) matches every record.
type PredicateSet struct {
	preds []Predicate
}

// Empty reports whether the set matches everything.
func (ps *PredicateSet) Empty() bool {
	return ps == nil || len(ps.preds) == 0
}

// Where returns the combined SQL fragment and its arguments. The fragment is
// suitable for appending after an existing WHERE condition with AND; it is
// "1=1" when the set is empty so callers can splice it unconditionally.
func (ps *PredicateSet) Where() (string, []any) {
	if ps.Empty() {
		return "1=1", nil
	}
	clauses := make([]string, len(ps.preds))
	var args []any
	for i, p := range ps.preds {
		clauses[i] = p.Clause
		args = append(args, p.Args...)
	}
	return strings.Join(clauses, " AND "), args
}

// Len returns the number of predicates in the set.
func (ps *PredicateSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.preds)
}

// Reserved range-modifier parameters. before/after bind to the schema's
// designated date column; min_/max_ prefixes bind to numeric columns.
const (
	paramBefore = "before"
	paramAfter  = "after"
	minPrefix   = "min_"
	maxPrefix   = "max_"
)

// Compile translates params into a predicate set. Parameters are processed in
// sorted key order so the emitted SQL is deterministic for a given request.
func Compile(params map[string]string) (*PredicateSet, error) {
	ps := &PredicateSet{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		pred, err := compileOne(key, value)
		if err != nil {
			return nil, err
		}
		ps.preds = append(ps.preds, pred)
	}
	return ps, nil
}

func compileOne(key, value string) (Predicate, error) {
	switch {
	case key == paramBefore:
		day, err := parseDay(key, value)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Clause: schema.DateField() + " < ?", Args: []any{day}}, nil

	case key == paramAfter:
		day, err := parseDay(key, value)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Clause: schema.DateField() + " > ?", Args: []any{day}}, nil

	case strings.HasPrefix(key, minPrefix):
		return compileRange(key, strings.TrimPrefix(key, minPrefix), value, ">=")

	case strings.HasPrefix(key, maxPrefix):
		return compileRange(key, strings.TrimPrefix(key, maxPrefix), value, "<=")
	}

	field, err := schema.Lookup(key)
	if err != nil {
		return Predicate{}, invalid(key, "not a known field")
	}

	switch field.Type {
	case schema.TypeInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Predicate{}, invalid(key, "not a valid integer: %q", value)
		}
		return Predicate{Clause: field.Name + " = ?", Args: []any{n}}, nil

	case schema.TypeReal:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Predicate{}, invalid(key, "not a valid number: %q", value)
		}
		return Predicate{Clause: field.Name + " = ?", Args: []any{f}}, nil

	case schema.TypeBool:
		switch strings.ToLower(value) {
		case "true":
			return Predicate{Clause: field.Name + " = 1", Args: nil}, nil
		case "false":
			return Predicate{Clause: field.Name + " = 0", Args: nil}, nil
		}
		return Predicate{}, invalid(key, "must be true or false, got %q", value)

	case schema.TypeDate:
		day, err := parseDay(key, value)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Clause: field.Name + " = ?", Args: []any{day}}, nil

	default: // text
		// Case-insensitive substring containment. An empty value compiles to
		// a pattern of '%%', which matches every non-null row.
		pattern := "%" + escapeLike(strings.ToLower(value)) + "%"
		return Predicate{
			Clause: "lower(" + field.Name + `) LIKE ? ESCAPE '\'`,
			Args:   []any{pattern},
		}, nil
	}
}

// compileRange builds a min_/max_ bound. The target field must exist and be
// numeric; range modifiers on text or bool fields make no sense and fail.
func compileRange(param, fieldName, value, op string) (Predicate, error) {
	field, err := schema.Lookup(fieldName)
	if err != nil {
		return Predicate{}, invalid(param, "not a known field")
	}
	switch field.Type {
	case schema.TypeInt, schema.TypeReal:
	default:
		return Predicate{}, invalid(param, "field %s is not numeric", fieldName)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Predicate{}, invalid(param, "not a valid number: %q", value)
	}
	return Predicate{Clause: field.Name + " " + op + " ?", Args: []any{f}}, nil
}

// parseDay validates an ISO calendar day and returns it in canonical form.
// Dates are stored as ISO strings, so lexicographic SQL comparison is
// chronological comparison.
func parseDay(param, value string) (string, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return "", invalid(param, "not a valid date, want YYYY-MM-DD: %q", value)
	}
	return t.Format("2006-01-02"), nil
}

// escapeLike escapes the LIKE metacharacters in a literal substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
