package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/spuro/spuro/entity"
)

// sliceSource serves a fixed entity list in creation order and records how
// many pages were fetched, so tests can assert the scan stays lazy.
type sliceSource struct {
	ents    []*entity.Entity
	fetches int
}

func (s *sliceSource) FetchPage(ctx context.Context, afterRow int64, limit int) ([]Candidate, error) {
	s.fetches++
	var page []Candidate
	for i, e := range s.ents {
		row := int64(i + 1)
		if row <= afterRow {
			continue
		}
		page = append(page, Candidate{Row: row, Entity: e})
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func fixtureEntities(n int) []*entity.Entity {
	ents := make([]*entity.Entity, n)
	for i := 0; i < n; i++ {
		ents[i] = ent(fmt.Sprintf("0x%02d", i), "n", i)
	}
	return ents
}

func TestRunLimitAndDeterminism(t *testing.T) {
	src := &sliceSource{ents: fixtureEntities(8)}

	first, err := Run(context.Background(), src, nil, Options{Limit: 3, PageSize: 4})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("len = %d, want 3", len(first))
	}

	// Repeating the identical query from scratch yields the same first 3.
	again, err := Run(context.Background(), &sliceSource{ents: fixtureEntities(8)}, nil, Options{Limit: 3, PageSize: 4})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for i := range first {
		if first[i].Key != again[i].Key {
			t.Errorf("result %d differs between identical runs: %s vs %s", i, first[i].Key, again[i].Key)
		}
	}
}

func TestRunStopsFetchingAtLimit(t *testing.T) {
	src := &sliceSource{ents: fixtureEntities(1000)}

	_, err := Run(context.Background(), src, nil, Options{Limit: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if src.fetches != 1 {
		t.Errorf("fetches = %d, want 1 (scan must not buffer the keyspace)", src.fetches)
	}
}

func TestRunFilters(t *testing.T) {
	src := &sliceSource{ents: []*entity.Entity{
		ent("0xa", "name", "Alice", "age", 25),
		ent("0xb", "name", "Bob", "age", 30),
	}}

	pred := mustParse(t, `age > 25`)
	got, err := Run(context.Background(), src, pred, Options{Limit: 10})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(got) != 1 || got[0].Key != "0xb" {
		t.Errorf("got %v, want exactly Bob", keysOf(got))
	}
}

func TestRunSortsMatchedSet(t *testing.T) {
	src := &sliceSource{ents: []*entity.Entity{
		ent("0xa", "age", 25),
		ent("0xb", "age", 30),
		ent("0xc", "age", 20),
	}}

	got, err := Run(context.Background(), src, nil, Options{
		Limit: 10,
		Sort:  []SortKey{{Attr: "age", Kind: entity.KindInt, Desc: true}},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	assertOrder(t, got, "0xb", "0xa", "0xc")
}

func TestRunRejectsNonPositiveLimit(t *testing.T) {
	src := &sliceSource{}
	if _, err := Run(context.Background(), src, nil, Options{Limit: 0}); err == nil {
		t.Error("Run(limit=0) succeeded, want invalid input")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{ents: fixtureEntities(10)}
	if _, err := Run(ctx, src, nil, Options{Limit: 5}); err == nil {
		t.Error("Run() with cancelled context succeeded, want error")
	}
	if src.fetches != 0 {
		t.Errorf("fetches = %d after cancellation, want 0", src.fetches)
	}
}

func TestCursorYieldsThenExhausts(t *testing.T) {
	src := &sliceSource{ents: fixtureEntities(3)}
	cur := NewCursor(src, nil, Options{Limit: 10})

	if src.fetches != 0 {
		t.Error("cursor fetched before first Next")
	}

	var seen []string
	for {
		e, err := cur.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if e == nil {
			break
		}
		seen = append(seen, string(e.Key))
	}
	if len(seen) != 3 {
		t.Errorf("cursor yielded %d entities, want 3", len(seen))
	}

	// Exhausted cursor keeps returning nil.
	if e, _ := cur.Next(context.Background()); e != nil {
		t.Error("exhausted cursor yielded an entity")
	}
}
