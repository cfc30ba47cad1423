// Package schema defines the fixed catalog schema used by the query engine.
//
// The registry is static configuration, not derived from the data at runtime,
// so drift in a source file cannot silently change query semantics. Every
// component that needs to know a field's type, or which fields participate in
// aggregation or similarity indexing, reads it from here.
package schema

import (
	"errors"
	"fmt"
)

// FieldType is the declared type tag of a catalog field.
type FieldType string

const (
	TypeInt  FieldType = "int"
	TypeReal FieldType = "real"
	TypeBool FieldType = "bool"
	TypeDate FieldType = "date"
	TypeText FieldType = "text"
)

// ErrUnknownField is returned when a field name is not part of the schema.
var ErrUnknownField = errors.New("unknown field")

// Field describes one catalog column.
type Field struct {
	Name       string
	Type       FieldType
	PrimaryKey bool
	Aggregable bool // eligible for the "all"-column statistics expansion
	Searchable bool // contributes to the similarity index text corpus
	Nullable   bool
}

// fields is the authoritative field table, in column order. The query
// compiler, the store DDL and the statistics aggregator all iterate this
// table rather than reflecting over struct fields.
var fields = []Field{
	{Name: "app_id", Type: TypeInt, PrimaryKey: true},
	{Name: "name", Type: TypeText},
	{Name: "release_date", Type: TypeDate},
	{Name: "required_age", Type: TypeInt},
	{Name: "price", Type: TypeReal, Aggregable: true, Nullable: true},
	{Name: "dlc_count", Type: TypeInt, Aggregable: true, Nullable: true},
	{Name: "about_game", Type: TypeText, Searchable: true},
	{Name: "supported_languages", Type: TypeText},
	{Name: "windows", Type: TypeBool},
	{Name: "mac", Type: TypeBool},
	{Name: "linux", Type: TypeBool},
	{Name: "positive", Type: TypeInt, Aggregable: true, Nullable: true},
	{Name: "negative", Type: TypeInt, Aggregable: true, Nullable: true},
	{Name: "score_rank", Type: TypeInt, Nullable: true},
	{Name: "developers", Type: TypeText},
	{Name: "publishers", Type: TypeText},
	{Name: "categories", Type: TypeText, Searchable: true},
	{Name: "genres", Type: TypeText, Searchable: true},
	{Name: "tags", Type: TypeText, Searchable: true},
}

var byName = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// Lookup returns the field descriptor for name, or ErrUnknownField.
func Lookup(name string) (Field, error) {
	f, ok := byName[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f, nil
}

// Fields returns the full field table in column order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// PrimaryKey returns the name of the primary identifier column.
func PrimaryKey() string {
	for _, f := range fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	return ""
}

// AggregableFields returns the names of the numeric columns eligible for
// statistics, in column order.
func AggregableFields() []string {
	var out []string
	for _, f := range fields {
		if f.Aggregable {
			out = append(out, f.Name)
		}
	}
	return out
}

// SearchableFields returns the names of the text columns that feed the
// similarity index, in column order.
func SearchableFields() []string {
	var out []string
	for _, f := range fields {
		if f.Searchable {
			out = append(out, f.Name)
		}
	}
	return out
}

// DateField returns the name of the column the reserved before/after range
// parameters bind to.
func DateField() string {
	return "release_date"
}
