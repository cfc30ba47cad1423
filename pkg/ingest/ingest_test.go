package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/gamedex/pkg/core"
)

const testHeader = "AppID,Name,Release date,Required age,Price,DLC count," +
	"About the game,Supported languages,Windows,Mac,Linux,Positive,Negative," +
	"Score rank,Developers,Publishers,Categories,Genres,Tags"

func newTestStore(t *testing.T) *core.SQLiteStore {
	t.Helper()
	path := fmt.Sprintf("/tmp/test_ingest_%d.db", time.Now().UnixNano())
	store, err := core.New(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.Remove(path)
	})
	return store
}

func testRow(id int, name, date, price string) string {
	return fmt.Sprintf("%d,%s,\"%s\",0,%s,2,About %s,English,true,false,false,100,5,,Dev,Pub,Single-player,Puzzle,Indie",
		id, name, date, price, name)
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate() { c.calls++ }

func TestImportReader(t *testing.T) {
	store := newTestStore(t)
	inv := &countingInvalidator{}
	im := NewImporter(store, inv)

	src := strings.Join([]string{
		testHeader,
		testRow(10, "Portal", "Oct 10, 2007", "9.99"),
		testRow(20, "Portal 2", "Apr 19, 2011", "19.99"),
		testRow(30, "Factory Line", "2013-06-01", ""),
	}, "\n")

	res, err := im.ImportReader(context.Background(), strings.NewReader(src), "inline", "upload")
	if err != nil {
		t.Fatalf("ImportReader failed: %v", err)
	}
	if res.Accepted != 3 || res.Rejected != 0 {
		t.Fatalf("expected 3 accepted, 0 rejected, got %d/%d", res.Accepted, res.Rejected)
	}
	if res.EventID == "" {
		t.Error("expected a non-empty event id")
	}
	if inv.calls != 1 {
		t.Errorf("expected one invalidation, got %d", inv.calls)
	}

	rec, err := store.GetByID(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Name != "Portal" || rec.ReleaseDate != "2007-10-10" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Price == nil || *rec.Price != 9.99 {
		t.Errorf("expected price 9.99, got %v", rec.Price)
	}

	rec, err = store.GetByID(context.Background(), 30)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Price != nil {
		t.Errorf("expected null price for empty cell, got %v", *rec.Price)
	}

	events, err := store.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Accepted != 3 || events[0].Mode != "upload" {
		t.Errorf("unexpected audit events: %+v", events)
	}
}

func TestImportRejectsBadRowsKeepsGoodOnes(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter(store, nil)

	src := strings.Join([]string{
		testHeader,
		testRow(10, "Portal", "Oct 10, 2007", "9.99"),
		testRow(0, "Zero ID", "2010-01-01", "1.00"),
		testRow(20, "Broken", "2010-01-01", "abc"),
		testRow(30, "", "2010-01-01", "1.00"),
		testRow(40, "Survivor", "2012-03-04", "4.99"),
	}, "\n")

	res, err := im.ImportReader(context.Background(), strings.NewReader(src), "inline", "upload")
	if err != nil {
		t.Fatalf("ImportReader failed: %v", err)
	}
	if res.Accepted != 2 || res.Rejected != 3 {
		t.Fatalf("expected 2 accepted, 3 rejected, got %d/%d: %+v", res.Accepted, res.Rejected, res.Rejections)
	}

	rows := make(map[int]string, len(res.Rejections))
	for _, r := range res.Rejections {
		rows[r.Row] = r.Reason
	}
	if !strings.Contains(rows[2], "AppID") {
		t.Errorf("expected AppID rejection for row 2, got %q", rows[2])
	}
	if !strings.Contains(rows[3], "Price") {
		t.Errorf("expected Price rejection for row 3, got %q", rows[3])
	}
	if !strings.Contains(rows[4], "Name") {
		t.Errorf("expected Name rejection for row 4, got %q", rows[4])
	}

	if _, err := store.GetByID(context.Background(), 40); err != nil {
		t.Errorf("expected surviving row 40 to commit: %v", err)
	}
	if _, err := store.GetByID(context.Background(), 20); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected rejected row to be absent, got %v", err)
	}
}

func TestImportMissingHeaderWritesNothing(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter(store, nil)

	src := "AppID,Name,Release date\n10,Portal,2007-10-10\n"
	_, err := im.ImportReader(context.Background(), strings.NewReader(src), "inline", "upload")

	var herr *HeaderError
	if !errors.As(err, &herr) {
		t.Fatalf("expected HeaderError, got %v", err)
	}
	if len(herr.Missing) != 16 {
		t.Errorf("expected 16 missing columns, got %v", herr.Missing)
	}

	n, err := store.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no writes after structural failure, got %d rows", n)
	}
}

func TestImportEmptySource(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter(store, nil)

	_, err := im.ImportReader(context.Background(), strings.NewReader(""), "inline", "upload")
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestImportSourceTooLarge(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter(store, nil, WithMaxBytes(int64(len(testHeader)+10)))

	src := strings.Join([]string{
		testHeader,
		testRow(10, "Portal", "Oct 10, 2007", "9.99"),
		testRow(20, "Portal 2", "Apr 19, 2011", "19.99"),
	}, "\n")

	_, err := im.ImportReader(context.Background(), strings.NewReader(src), "inline", "upload")
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("expected ErrSourceTooLarge, got %v", err)
	}

	n, err := store.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback on oversized source, got %d rows", n)
	}
}

func TestImportFile(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter(store, nil)

	path := filepath.Join(t.TempDir(), "catalog.csv")
	src := testHeader + "\n" + testRow(10, "Portal", "Oct 10, 2007", "9.99") + "\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	res, err := im.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if res.Accepted != 1 {
		t.Errorf("expected 1 accepted row, got %d", res.Accepted)
	}

	events, err := store.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Mode != "file" || events[0].Source != path {
		t.Errorf("unexpected audit events: %+v", events)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"Oct 21, 2008", "2008-10-21"},
		{"2009-01-05", "2009-01-05"},
		{"Mar 2010", "2010-03-01"},
		{"2011", "2011-01-01"},
		{"coming soon", "1970-01-01"},
		{"", "1970-01-01"},
	}
	for _, tc := range tests {
		if got := parseDate(tc.raw); got != tc.want {
			t.Errorf("parseDate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
