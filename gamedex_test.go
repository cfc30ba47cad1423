package gamedex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/gamedex/pkg/core"
	"github.com/liliang-cn/gamedex/pkg/query"
	"github.com/liliang-cn/gamedex/pkg/similarity"
)

const csvHeader = "AppID,Name,Release date,Required age,Price,DLC count," +
	"About the game,Supported languages,Windows,Mac,Linux,Positive,Negative," +
	"Score rank,Developers,Publishers,Categories,Genres,Tags"

const csvFixture = csvHeader + "\n" +
	`400,Portal,"Oct 10, 2007",0,9.99,0,First person puzzle with portals,English,true,true,true,95000,500,,Valve,Valve,Single-player,Puzzle,"Puzzle,Physics"` + "\n" +
	`620,Portal 2,"Apr 19, 2011",0,19.99,1,Puzzle sequel with portals and co-op,English,true,true,true,250000,3000,,Valve,Valve,"Single-player,Co-op",Puzzle,"Puzzle,Co-op"` + "\n" +
	`730,Strike Arena,"Aug 21, 2012",17,29.99,0,Competitive multiplayer shooter,English,true,false,true,500000,60000,,Hidden Path,Valve,Multi-player,Action,"Shooter,Competitive"` + "\n" +
	`X99,Broken Row,"2015-01-01",0,1.00,0,never lands,English,true,false,false,1,0,,Nobody,Nobody,Single-player,Indie,Indie` + "\n"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := fmt.Sprintf("/tmp/test_gamedex_%d.db", time.Now().UnixNano())
	engine, err := Open(context.Background(), Options{Path: path})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		os.Remove(path)
	})
	return engine
}

func seed(t *testing.T, engine *Engine) {
	t.Helper()
	res, err := engine.ImportReader(context.Background(), strings.NewReader(csvFixture), "fixture", "upload")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if res.Accepted != 3 || res.Rejected != 1 {
		t.Fatalf("expected 3 accepted, 1 rejected, got %d/%d", res.Accepted, res.Rejected)
	}
}

func TestEndToEnd(t *testing.T) {
	engine := newTestEngine(t)
	seed(t, engine)

	ctx := context.Background()

	// Filtered query.
	page, err := engine.Query(ctx, map[string]string{"genres": "puzzle"}, 0, 20)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if page.Total != 2 || len(page.Records) != 2 {
		t.Fatalf("expected 2 puzzle records, got total=%d len=%d", page.Total, len(page.Records))
	}
	if page.Records[0].AppID != 400 || page.Records[1].AppID != 620 {
		t.Errorf("expected ascending ids 400, 620, got %d, %d",
			page.Records[0].AppID, page.Records[1].AppID)
	}
	if page.Next != nil {
		t.Errorf("expected exhausted traversal, got next cursor %d", *page.Next)
	}

	// Cursor pagination over the same filter.
	page, err = engine.Query(ctx, map[string]string{"genres": "puzzle"}, 0, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if page.Next == nil {
		t.Fatal("expected a next cursor for a full page")
	}
	page, err = engine.Query(ctx, map[string]string{"genres": "puzzle"}, *page.Next, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].AppID != 620 {
		t.Fatalf("expected second page to hold record 620, got %+v", page.Records)
	}

	// Statistics over the filtered subset.
	result, err := engine.Aggregate(ctx, "mean", "price", map[string]string{"genres": "puzzle"})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	mean := result["price"]["mean"]
	if mean == nil || math.Abs(*mean-14.99) > 1e-9 {
		t.Errorf("expected mean price 14.99, got %v", mean)
	}

	// Similarity: both Portal records share vocabulary; the shooter does not.
	similar, err := engine.SimilarByID(ctx, 400, 3, false)
	if err != nil {
		t.Fatalf("similarity failed: %v", err)
	}
	if similar[0].Record.AppID != 400 || similar[0].Score < 0.999 {
		t.Errorf("expected seed record first at score 1, got %+v", similar[0])
	}
	if similar[1].Record.AppID != 620 {
		t.Errorf("expected record 620 as nearest neighbor, got %d", similar[1].Record.AppID)
	}
	if similar[1].Score <= 0 {
		t.Errorf("expected positive similarity to record 620, got %g", similar[1].Score)
	}

	// Audit trail.
	events, err := engine.Events(ctx)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	if len(events) != 1 || events[0].Rejected != 1 {
		t.Errorf("unexpected events: %+v", events)
	}
	if len(events[0].Rejections) != 1 || !strings.Contains(events[0].Rejections[0].Reason, "AppID") {
		t.Errorf("expected persisted AppID rejection, got %+v", events[0].Rejections)
	}
}

func TestQueryRejectsUnknownParam(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Query(context.Background(), map[string]string{"bogus": "1"}, 0, 10)
	var verr *query.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Param != "bogus" {
		t.Errorf("expected offending param name, got %q", verr.Param)
	}
}

func TestSimilaritySeesNewRecordsAfterImport(t *testing.T) {
	engine := newTestEngine(t)
	seed(t, engine)

	ctx := context.Background()
	if _, err := engine.SimilarByID(ctx, 400, 3, false); err != nil {
		t.Fatalf("first search failed: %v", err)
	}

	extra := csvHeader + "\n" +
		`999,Portal Clone,"2020-05-05",0,4.99,0,puzzle with portals,English,true,false,false,10,1,,Imitator,Imitator,Single-player,Puzzle,Puzzle` + "\n"
	if _, err := engine.ImportReader(ctx, strings.NewReader(extra), "fixture2", "upload"); err != nil {
		t.Fatalf("second import failed: %v", err)
	}

	similar, err := engine.SimilarByID(ctx, 999, 1, false)
	if err != nil {
		t.Fatalf("search after import failed: %v", err)
	}
	if similar[0].Record.AppID != 999 {
		t.Errorf("expected refitted index to contain record 999, got %d", similar[0].Record.AppID)
	}
}

func TestSimilarByIDMissingRecord(t *testing.T) {
	engine := newTestEngine(t)
	seed(t, engine)

	_, err := engine.SimilarByID(context.Background(), 12345, 3, false)
	if !errors.Is(err, similarity.ErrNotIndexed) {
		t.Errorf("expected ErrNotIndexed, got %v", err)
	}
}

func TestGetMissingRecord(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Get(context.Background(), 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
