// Package query implements the attribute query language: a boolean
// predicate grammar over typed entity attributes, plus the multi-key sort
// and pagination pipeline that orders and pages matching entities.
//
// Grammar, lowest to highest precedence:
//
//	expr := or
//	or   := and ("OR" and)*
//	and  := not ("AND" not)*
//	not  := "NOT" not | cmp
//	cmp  := "(" expr ")" | IDENT op literal
//	op   := "=" | "!=" | ">" | ">=" | "<" | "<=" | "GLOB"
//
// Literals are double-quoted strings, signed integers, or true/false.
// Keywords are upper-case. Parse errors carry the byte position of the
// offending token and are reported as invalid input, never as an empty
// result set.
package query

import (
	"strings"

	"github.com/spuro/spuro/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokBool
	tokOp     // = != > >= < <=
	tokGlob   // GLOB
	tokOr     // OR
	tokAnd    // AND
	tokNot    // NOT
	tokLParen // (
	tokRParen // )
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset in the query string
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

// next returns the next token, or an invalid-input error with position.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '=':
		l.pos++
		return token{kind: tokOp, text: "=", pos: start}, nil
	case c == '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: "!=", pos: start}, nil
		}
		return token{}, errors.NewInvalidInputf("query parse error at position %d: expected != after !", start)
	case c == '>' || c == '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: l.input[start : start+2], pos: start}, nil
		}
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	case c == '"':
		return l.lexString()
	case c == '-' || isDigit(c):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return token{}, errors.NewInvalidInputf("query parse error at position %d: unexpected character %q", start, string(c))
	}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return token{}, errors.NewInvalidInputf("query parse error at position %d: unterminated escape", l.pos)
			}
			l.pos++
			switch l.input[l.pos] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, errors.NewInvalidInputf("query parse error at position %d: unknown escape \\%s", l.pos, string(l.input[l.pos]))
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, errors.NewInvalidInputf("query parse error at position %d: unterminated string literal", start)
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return token{}, errors.NewInvalidInputf("query parse error at position %d: expected digit after -", start)
		}
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	return token{kind: tokNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	// Keywords are case-sensitive: "or" is a legal attribute name, "OR" is
	// the boolean operator.
	switch text {
	case "OR":
		return token{kind: tokOr, text: text, pos: start}, nil
	case "AND":
		return token{kind: tokAnd, text: text, pos: start}, nil
	case "NOT":
		return token{kind: tokNot, text: text, pos: start}, nil
	case "GLOB":
		return token{kind: tokGlob, text: text, pos: start}, nil
	case "true", "false":
		return token{kind: tokBool, text: text, pos: start}, nil
	}
	return token{kind: tokIdent, text: text, pos: start}, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.' || c == '-'
}
