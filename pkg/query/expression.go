// Package query parses table-qualified query strings and runs them over a
// set of named record collections.
//
// A query is a flat sequence of filter clauses joined by AND or OR. There
// is no grouping and no precedence: connectives apply strictly left to
// right, so "a AND b OR c" means "(a AND b) OR c" and "a OR b AND c" means
// "(a OR b) AND c".
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Connective joins a clause to the result of the clauses before it.
type Connective int

// Connectives. The first clause of an expression has ConnectiveNone.
const (
	ConnectiveNone Connective = iota
	ConnectiveAnd
	ConnectiveOr
)

func (c Connective) String() string {
	switch c {
	case ConnectiveAnd:
		return "AND"
	case ConnectiveOr:
		return "OR"
	}
	return ""
}

// Clause is one filter of a query together with its leading connective.
// Filter is parsed from the clause text with its table prefix still in the
// path; the engine strips the prefix once it knows the registered tables.
type Clause struct {
	Connective Connective
	Text       string
	Pos        int // byte offset of Text in the query string
	Filter     *filter.Expression
}

// Expression is a parsed query.
type Expression struct {
	text    string
	clauses []Clause
}

// Parse splits s on whole-word AND/OR (any case) outside quotes and
// brackets and parses each clause as a filter expression. Failures are
// *types.SyntaxError with Kind ErrQueryStringFormat; a clause that failed
// as a filter also unwraps to the filter error.
func Parse(s string, opts ...filter.Option) (*Expression, error) {
	parts, err := split(s)
	if err != nil {
		return nil, err
	}
	clauses := make([]Clause, len(parts))
	for i, part := range parts {
		f, err := filter.Parse(part.text, opts...)
		if err != nil {
			return nil, clauseError(s, part, err)
		}
		clauses[i] = Clause{Connective: part.conn, Text: part.text, Pos: part.pos, Filter: f}
	}
	return &Expression{text: strings.TrimSpace(s), clauses: clauses}, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string, opts ...filter.Option) *Expression {
	e, err := Parse(s, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the query text, trimmed.
func (e *Expression) String() string { return e.text }

// Clauses returns the clauses in order.
func (e *Expression) Clauses() []Clause {
	out := make([]Clause, len(e.clauses))
	copy(out, e.clauses)
	return out
}

type part struct {
	conn Connective
	text string
	pos  int
}

// split cuts s into trimmed clause texts. Empty clauses, including those
// left by a leading, trailing or doubled connective, are errors.
func split(s string) ([]part, error) {
	var (
		parts []part
		conn  = ConnectiveNone
		start = 0
		depth = 0
		quote byte
	)
	flush := func(end int, next Connective, tok string, tokPos int) error {
		text, pos := trimmed(s, start, end)
		if text == "" {
			if tok == "" {
				if conn == ConnectiveNone {
					return queryError(s, "", tokPos, "empty query")
				}
				return queryError(s, conn.String(), tokPos, "dangling connective")
			}
			return queryError(s, tok, tokPos, "empty clause before connective")
		}
		parts = append(parts, part{conn: conn, text: text, pos: pos})
		conn = next
		return nil
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		case ch == '\'' || ch == '"':
			quote = ch
			continue
		case ch == '[':
			depth++
			continue
		case ch == ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || !isWordStart(s, i) {
			continue
		}
		for _, kw := range []struct {
			word string
			conn Connective
		}{{"and", ConnectiveAnd}, {"or", ConnectiveOr}} {
			end := i + len(kw.word)
			if end <= len(s) && strings.EqualFold(s[i:end], kw.word) && !isWordChar(s, end) {
				if err := flush(i, kw.conn, s[i:end], i); err != nil {
					return nil, err
				}
				start = end
				i = end - 1
				break
			}
		}
	}
	if err := flush(len(s), ConnectiveNone, "", len(s)); err != nil {
		return nil, err
	}
	return parts, nil
}

func trimmed(s string, start, end int) (string, int) {
	raw := s[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
	return strings.TrimSpace(raw), start + lead
}

func isWordChar(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	ch := s[i]
	return ch == '_' || ch == '.' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func isWordStart(s string, i int) bool {
	return isWordChar(s, i) && !isWordChar(s, i-1)
}

func queryError(input, tok string, pos int, msg string) error {
	return &types.SyntaxError{
		Kind:    types.ErrQueryStringFormat,
		Input:   input,
		Token:   tok,
		Pos:     pos,
		Message: msg,
	}
}

// clauseError reports a clause that failed to parse as a filter, with the
// position translated into the query string.
func clauseError(input string, p part, cause error) error {
	qe := &types.SyntaxError{
		Kind:    types.ErrQueryStringFormat,
		Input:   input,
		Pos:     p.pos,
		Message: fmt.Sprintf("clause %q: %v", p.text, cause),
		Cause:   cause,
	}
	var fe *types.SyntaxError
	if errors.As(cause, &fe) {
		qe.Token = fe.Token
		qe.Pos = p.pos + fe.Pos
		qe.Message = fe.Message
	}
	return qe
}
