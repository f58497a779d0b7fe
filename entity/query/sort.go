package query

import (
	"sort"
	"strings"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

// SortKey orders matched entities by one typed attribute.
type SortKey struct {
	Attr string
	Kind entity.Kind
	Desc bool
}

// ParseSortKeys parses a sort spec of the form
// "age:int:desc,name:string:asc". Direction defaults to ascending when
// omitted ("age:int").
func ParseSortKeys(spec string) ([]SortKey, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var keys []SortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, errors.NewInvalidInputf("sort key %q: want attr:kind[:dir]", part)
		}

		kind, err := entity.ParseKind(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "sort key %q", part)
		}

		key := SortKey{Attr: fields[0], Kind: kind}
		if len(fields) == 3 {
			switch fields[2] {
			case "asc":
			case "desc":
				key.Desc = true
			default:
				return nil, errors.NewInvalidInputf("sort key %q: direction must be asc or desc", part)
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Sort orders entities deterministically: compare by each key in turn,
// then break any remaining tie by entity key ascending so repeated
// identical queries reproduce the same order.
//
// An entity whose attribute is absent or of the wrong kind sorts last for
// that key regardless of direction, consistent with the evaluator's
// absent-or-mismatched-means-false policy.
func Sort(ents []*entity.Entity, keys []SortKey) {
	sort.SliceStable(ents, func(i, j int) bool {
		return less(ents[i], ents[j], keys)
	})
}

func less(a, b *entity.Entity, keys []SortKey) bool {
	for _, k := range keys {
		av, aok := typedAttr(a, k)
		bv, bok := typedAttr(b, k)

		// Sort-last applies before direction: direction only orders
		// entities that actually carry a comparable value.
		if aok != bok {
			return aok
		}
		if !aok {
			continue
		}

		c := compareValues(av, bv, k.Kind)
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return a.Key < b.Key
}

func typedAttr(e *entity.Entity, k SortKey) (entity.Value, bool) {
	v, ok := e.Attr(k.Attr)
	if !ok || v.Kind() != k.Kind {
		return entity.Value{}, false
	}
	return v, true
}

func compareValues(a, b entity.Value, kind entity.Kind) int {
	switch kind {
	case entity.KindInt:
		ai, _ := a.Int()
		bi, _ := b.Int()
		return compareInt(ai, bi)
	case entity.KindString:
		as, _ := a.Str()
		bs, _ := b.Str()
		return compareString(as, bs)
	case entity.KindBool:
		ab, _ := a.Bool()
		bb, _ := b.Bool()
		// false < true
		switch {
		case ab == bb:
			return 0
		case bb:
			return -1
		default:
			return 1
		}
	}
	return 0
}
