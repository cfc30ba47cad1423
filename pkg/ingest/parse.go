package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liliang-cn/gamedex/pkg/core"
)

// canonicalHeaders are the source columns an import requires, in no
// particular order. Extra columns are ignored.
var canonicalHeaders = []string{
	"AppID",
	"Name",
	"Release date",
	"Required age",
	"Price",
	"DLC count",
	"About the game",
	"Supported languages",
	"Windows",
	"Mac",
	"Linux",
	"Positive",
	"Negative",
	"Score rank",
	"Developers",
	"Publishers",
	"Categories",
	"Genres",
	"Tags",
}

// unknownDate is stored when a release date cannot be parsed in any known
// layout. The row is still accepted.
const unknownDate = "1970-01-01"

// dateLayouts are tried in order against trimmed release-date cells.
var dateLayouts = []string{
	"Jan 2, 2006",
	"2006-01-02",
	"Jan 2006",
	"2006",
}

// mapHeader resolves each canonical column to its index in the source header.
// Comparison is case-insensitive and ignores surrounding whitespace.
func mapHeader(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(canonicalHeaders))
	var missing []string
	for _, name := range canonicalHeaders {
		i, ok := byName[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: missing}
	}
	return cols, nil
}

// parseRow coerces one CSV row into a Record. A non-empty reason means the
// row is rejected.
func parseRow(fields []string, cols map[string]int) (*core.Record, string) {
	cell := func(name string) string {
		return strings.TrimSpace(fields[cols[name]])
	}

	appID, err := strconv.ParseInt(cell("AppID"), 10, 64)
	if err != nil {
		return nil, fmt.Sprintf("AppID %q is not an integer", cell("AppID"))
	}
	if appID <= 0 {
		return nil, fmt.Sprintf("AppID %d must be positive", appID)
	}

	name := cell("Name")
	if name == "" {
		return nil, "Name is empty"
	}

	rec := &core.Record{
		AppID:              appID,
		Name:               name,
		ReleaseDate:        parseDate(cell("Release date")),
		AboutGame:          cell("About the game"),
		SupportedLanguages: cell("Supported languages"),
		Developers:         cell("Developers"),
		Publishers:         cell("Publishers"),
		Categories:         cell("Categories"),
		Genres:             cell("Genres"),
		Tags:               cell("Tags"),
	}

	if v := cell("Required age"); v != "" {
		age, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Sprintf("Required age %q is not an integer", v)
		}
		rec.RequiredAge = age
	}

	if v := cell("Price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Sprintf("Price %q is not a number", v)
		}
		rec.Price = &price
	}

	for _, f := range []struct {
		name string
		dst  **int64
	}{
		{"DLC count", &rec.DLCCount},
		{"Positive", &rec.Positive},
		{"Negative", &rec.Negative},
		{"Score rank", &rec.ScoreRank},
	} {
		v := cell(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s %q is not an integer", f.name, v)
		}
		*f.dst = &n
	}

	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"Windows", &rec.Windows},
		{"Mac", &rec.Mac},
		{"Linux", &rec.Linux},
	} {
		v := cell(f.name)
		if v == "" {
			continue
		}
		switch strings.ToLower(v) {
		case "true":
			*f.dst = true
		case "false":
		default:
			return nil, fmt.Sprintf("%s %q is not a boolean", f.name, v)
		}
	}

	return rec, ""
}

// parseDate normalizes a source release date to ISO YYYY-MM-DD. Month-only
// and year-only dates resolve to the first day of their period. Unparseable
// values fall back to unknownDate.
func parseDate(raw string) string {
	if raw == "" {
		return unknownDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return unknownDate
}
