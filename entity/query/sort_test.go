package query

import (
	"testing"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

func ent(key string, kv ...interface{}) *entity.Entity {
	return &entity.Entity{Key: entity.Key(key), Attributes: attrs(kv...)}
}

func keysOf(ents []*entity.Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = string(e.Key)
	}
	return out
}

func assertOrder(t *testing.T, ents []*entity.Entity, want ...string) {
	t.Helper()
	got := keysOf(ents)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortNumericDesc(t *testing.T) {
	ents := []*entity.Entity{
		ent("0xa", "age", 25),
		ent("0xb", "age", 30),
		ent("0xc", "age", 20),
	}

	Sort(ents, []SortKey{{Attr: "age", Kind: entity.KindInt, Desc: true}})
	assertOrder(t, ents, "0xb", "0xa", "0xc")
}

func TestSortTieBreaksByKeyAscending(t *testing.T) {
	ents := []*entity.Entity{
		ent("0xc", "age", 25),
		ent("0xa", "age", 25),
		ent("0xb", "age", 25),
	}

	Sort(ents, []SortKey{{Attr: "age", Kind: entity.KindInt, Desc: true}})
	assertOrder(t, ents, "0xa", "0xb", "0xc")
}

func TestSortMultiKey(t *testing.T) {
	ents := []*entity.Entity{
		ent("0xa", "dept", "eng", "age", 30),
		ent("0xb", "dept", "eng", "age", 25),
		ent("0xc", "dept", "art", "age", 40),
	}

	Sort(ents, []SortKey{
		{Attr: "dept", Kind: entity.KindString},
		{Attr: "age", Kind: entity.KindInt},
	})
	assertOrder(t, ents, "0xc", "0xb", "0xa")
}

// Absent or kind-mismatched attributes sort last for that key, in both
// directions.
func TestSortMismatchSortsLast(t *testing.T) {
	ents := []*entity.Entity{
		ent("0xa", "age", "not-a-number"), // kind mismatch
		ent("0xb", "age", 30),
		ent("0xc"), // absent
		ent("0xd", "age", 20),
	}

	Sort(ents, []SortKey{{Attr: "age", Kind: entity.KindInt}})
	assertOrder(t, ents, "0xd", "0xb", "0xa", "0xc")

	Sort(ents, []SortKey{{Attr: "age", Kind: entity.KindInt, Desc: true}})
	assertOrder(t, ents, "0xb", "0xd", "0xa", "0xc")
}

func TestSortBool(t *testing.T) {
	ents := []*entity.Entity{
		ent("0xa", "active", true),
		ent("0xb", "active", false),
	}

	Sort(ents, []SortKey{{Attr: "active", Kind: entity.KindBool}})
	assertOrder(t, ents, "0xb", "0xa") // false < true
}

func TestSortNoKeysOrdersByEntityKey(t *testing.T) {
	ents := []*entity.Entity{ent("0xc"), ent("0xa"), ent("0xb")}
	Sort(ents, nil)
	assertOrder(t, ents, "0xa", "0xb", "0xc")
}

func TestParseSortKeys(t *testing.T) {
	keys, err := ParseSortKeys("age:int:desc, name:string:asc")
	if err != nil {
		t.Fatalf("ParseSortKeys() error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[0].Attr != "age" || keys[0].Kind != entity.KindInt || !keys[0].Desc {
		t.Errorf("keys[0] = %+v, want age/int/desc", keys[0])
	}
	if keys[1].Attr != "name" || keys[1].Kind != entity.KindString || keys[1].Desc {
		t.Errorf("keys[1] = %+v, want name/string/asc", keys[1])
	}

	// Direction defaults to ascending.
	keys, err = ParseSortKeys("age:int")
	if err != nil {
		t.Fatalf("ParseSortKeys() error: %v", err)
	}
	if keys[0].Desc {
		t.Error("omitted direction should default to ascending")
	}

	// Empty spec means no sort keys.
	keys, err = ParseSortKeys("  ")
	if err != nil || keys != nil {
		t.Errorf("ParseSortKeys(blank) = (%v, %v), want (nil, nil)", keys, err)
	}
}

func TestParseSortKeysErrors(t *testing.T) {
	for _, spec := range []string{"age", "age:int:sideways", "age:float", "a:b:c:d"} {
		if _, err := ParseSortKeys(spec); !errors.IsInvalidInput(err) {
			t.Errorf("ParseSortKeys(%q) error = %v, want invalid input", spec, err)
		}
	}
}
