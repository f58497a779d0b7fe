package query

import (
	"fmt"
	"strconv"

	"github.com/spuro/spuro/entity"
)

// Node is a predicate over one entity's attribute map.
type Node interface {
	// Match evaluates the predicate against an attribute map.
	Match(attrs map[string]entity.Value) bool
	String() string
}

// CmpOp is a comparison operator.
type CmpOp string

const (
	OpEq   CmpOp = "="
	OpNe   CmpOp = "!="
	OpGt   CmpOp = ">"
	OpGe   CmpOp = ">="
	OpLt   CmpOp = "<"
	OpLe   CmpOp = "<="
	OpGlob CmpOp = "GLOB"
)

type orNode struct{ left, right Node }

func (n *orNode) Match(attrs map[string]entity.Value) bool {
	return n.left.Match(attrs) || n.right.Match(attrs)
}

func (n *orNode) String() string {
	return fmt.Sprintf("(%s OR %s)", n.left, n.right)
}

type andNode struct{ left, right Node }

func (n *andNode) Match(attrs map[string]entity.Value) bool {
	return n.left.Match(attrs) && n.right.Match(attrs)
}

func (n *andNode) String() string {
	return fmt.Sprintf("(%s AND %s)", n.left, n.right)
}

type notNode struct{ inner Node }

// Match negates the inner predicate. A comparison against a missing
// attribute evaluates false, so NOT of it evaluates true, per normal
// boolean semantics.
func (n *notNode) Match(attrs map[string]entity.Value) bool {
	return !n.inner.Match(attrs)
}

func (n *notNode) String() string {
	return fmt.Sprintf("(NOT %s)", n.inner)
}

type cmpNode struct {
	attr string
	op   CmpOp
	lit  entity.Value
}

// Match applies one typed comparison. Missing attributes and kind
// mismatches degrade to false rather than erroring, so queries behave
// gracefully across heterogeneous entities.
func (n *cmpNode) Match(attrs map[string]entity.Value) bool {
	val, ok := attrs[n.attr]
	if !ok {
		return false
	}

	switch n.op {
	case OpEq:
		return val.Equal(n.lit)
	case OpNe:
		return !val.Equal(n.lit)
	case OpGlob:
		pattern, pok := n.lit.Str()
		target, tok := val.Str()
		if !pok || !tok {
			return false
		}
		return globMatch(pattern, target)
	case OpGt, OpGe, OpLt, OpLe:
		return orderedCompare(val, n.lit, n.op)
	}
	return false
}

// orderedCompare handles >, >=, <, <=. Both sides must share an orderable
// kind: integers compare numerically, strings byte-lexicographically.
// Booleans have no ordering; any kind mismatch evaluates false.
func orderedCompare(val, lit entity.Value, op CmpOp) bool {
	if li, ok := lit.Int(); ok {
		vi, ok := val.Int()
		if !ok {
			return false
		}
		return applyOrder(compareInt(vi, li), op)
	}
	if ls, ok := lit.Str(); ok {
		vs, ok := val.Str()
		if !ok {
			return false
		}
		return applyOrder(compareString(vs, ls), op)
	}
	return false
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyOrder(c int, op CmpOp) bool {
	switch op {
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	}
	return false
}

func (n *cmpNode) String() string {
	lit := n.lit.Display()
	if _, ok := n.lit.Str(); ok {
		lit = strconv.Quote(lit)
	}
	return fmt.Sprintf("%s %s %s", n.attr, n.op, lit)
}
