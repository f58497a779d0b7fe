package query

import (
	"strconv"
	"strings"

	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
)

type parser struct {
	lex  *lexer
	tok  token // current lookahead
	prev token
}

// Parse parses a query string into a predicate tree. An empty or
// whitespace-only query is invalid input; "match everything" is expressed
// by omitting the query, not by an empty string.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.NewInvalidInputf("query must not be empty")
	}

	p := &parser{lex: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokEOF {
		return nil, errors.NewInvalidInputf("query parse error at position %d: unexpected token %q", p.tok.pos, p.tok.text)
	}
	return node, nil
}

func (p *parser) advance() error {
	p.prev = p.tok
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Node, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, errors.NewInvalidInputf("query parse error at position %d: expected ) but found %q", p.tok.pos, p.tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	}

	if p.tok.kind != tokIdent {
		return nil, errors.NewInvalidInputf("query parse error at position %d: expected attribute name but found %q", p.tok.pos, p.tok.text)
	}
	attr := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	var op CmpOp
	switch p.tok.kind {
	case tokOp:
		op = CmpOp(p.tok.text)
	case tokGlob:
		op = OpGlob
	default:
		return nil, errors.NewInvalidInputf("query parse error at position %d: expected comparison operator but found %q", p.tok.pos, p.tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	lit, err := p.parseLiteral(op)
	if err != nil {
		return nil, err
	}

	return &cmpNode{attr: attr, op: op, lit: lit}, nil
}

func (p *parser) parseLiteral(op CmpOp) (entity.Value, error) {
	var lit entity.Value
	switch p.tok.kind {
	case tokString:
		lit = entity.String(p.tok.text)
	case tokNumber:
		i, err := strconv.ParseInt(p.tok.text, 10, 64)
		if err != nil {
			return entity.Value{}, errors.NewInvalidInputf("query parse error at position %d: integer %q out of range", p.tok.pos, p.tok.text)
		}
		if op == OpGlob {
			return entity.Value{}, errors.NewInvalidInputf("query parse error at position %d: GLOB requires a string pattern", p.tok.pos)
		}
		lit = entity.Int(i)
	case tokBool:
		if op != OpEq && op != OpNe {
			return entity.Value{}, errors.NewInvalidInputf("query parse error at position %d: boolean literals only support = and !=", p.tok.pos)
		}
		lit = entity.Bool(p.tok.text == "true")
	default:
		return entity.Value{}, errors.NewInvalidInputf("query parse error at position %d: expected literal but found %q", p.tok.pos, p.tok.text)
	}

	if err := p.advance(); err != nil {
		return entity.Value{}, err
	}
	return lit, nil
}
