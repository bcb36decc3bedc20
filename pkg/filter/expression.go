// Package filter parses and evaluates filter expressions of the form
// "<field-path> <operator> <literal>" and combines them under a scope.
//
// Evaluation never mutates the records it reads. A field path that does not
// resolve makes the predicate false; it is never an error.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Operator is a comparison operator.
type Operator int

// Operators.
const (
	OpEqual Operator = iota + 1
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpIn
	OpNotIn
	OpIs
	OpIsNot
)

var operatorText = map[Operator]string{
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpLess:         "<",
	OpGreater:      ">",
	OpLessEqual:    "<=",
	OpGreaterEqual: ">=",
	OpIn:           "in",
	OpNotIn:        "not in",
	OpIs:           "is",
	OpIsNot:        "is not",
}

var symbolOperators = map[string]Operator{
	"==": OpEqual,
	"!=": OpNotEqual,
	"<":  OpLess,
	">":  OpGreater,
	"<=": OpLessEqual,
	">=": OpGreaterEqual,
}

func (o Operator) String() string {
	if s, ok := operatorText[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Flag selects evaluation behavior.
type Flag uint8

// Flags.
const (
	// CaseSensitive disables lower-casing of strings before comparison.
	CaseSensitive Flag = 1 << iota
)

// Option configures an Expression at parse time.
type Option func(*Expression)

// WithFlags sets evaluation flags.
func WithFlags(f Flag) Option {
	return func(e *Expression) { e.flags |= f }
}

// WithCaseSensitive compares strings exactly instead of case-insensitively.
func WithCaseSensitive() Option { return WithFlags(CaseSensitive) }

// FlagsOf returns the flags that opts set.
func FlagsOf(opts ...Option) Flag {
	var e Expression
	for _, opt := range opts {
		opt(&e)
	}
	return e.flags
}

// Expression is one parsed predicate. It is immutable and safe to share.
type Expression struct {
	text    string
	path    string
	op      Operator
	literal any
	flags   Flag
}

// Parse parses a filter string. Syntax errors are *types.SyntaxError with
// Kind ErrFilterStringFormat; "is" and "is not" with a literal other than
// null or a boolean return ErrUnsupportedOperator.
func Parse(s string, opts ...Option) (*Expression, error) {
	p := &parser{input: s, lex: newLexer(s)}
	p.advance()
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	e.text = strings.TrimSpace(s)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string, opts ...Option) *Expression {
	e, err := Parse(s, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the expression text as given to Parse, trimmed.
func (e *Expression) String() string { return e.text }

// Path returns the dotted field path.
func (e *Expression) Path() string { return e.path }

// Operator returns the comparison operator.
func (e *Expression) Operator() Operator { return e.op }

// Literal returns a copy of the parsed literal: string, int64, float64,
// bool, nil or []any.
func (e *Expression) Literal() any { return record.Normalize(e.literal) }

// Flags returns the evaluation flags.
func (e *Expression) Flags() Flag { return e.flags }

// CaseSensitive reports whether strings are compared exactly.
func (e *Expression) CaseSensitive() bool { return e.flags&CaseSensitive != 0 }

// WithPath returns a copy of e evaluated against a different field path.
// The query engine uses it after stripping a table prefix.
func (e *Expression) WithPath(path string) *Expression {
	c := *e
	c.path = path
	return &c
}

// key identifies an expression for de-duplication in an Engine.
func (e *Expression) key() string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%s", e.path, e.op, e.flags, record.Key(e.literal))
}

type parser struct {
	input string
	lex   *lexer
	tok   token
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &types.SyntaxError{
		Kind:    types.ErrFilterStringFormat,
		Input:   p.input,
		Token:   tok.lit,
		Pos:     tok.pos,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) parseExpression() (*Expression, error) {
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	op, opTok, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	litTok := p.tok
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokEOF {
		return nil, p.errorf(p.tok, "unexpected input after literal")
	}

	switch op {
	case OpIn, OpNotIn:
		if _, ok := lit.([]any); !ok {
			return nil, p.errorf(litTok, "%s requires a bracketed sequence", op)
		}
	case OpIs, OpIsNot:
		if _, ok := lit.(bool); !ok && lit != nil {
			return nil, fmt.Errorf("%w: %q with %s literal at position %d; only null and booleans are allowed",
				types.ErrUnsupportedOperator, op.String(), kindName(lit), opTok.pos)
		}
	}
	return &Expression{path: path, op: op, literal: lit}, nil
}

func (p *parser) parsePath() (string, error) {
	if p.tok.typ != tokIdent {
		if p.tok.typ == tokEOF || p.tok.typ == tokSymbol {
			return "", p.errorf(p.tok, "empty field path")
		}
		return "", p.errorf(p.tok, "malformed field path")
	}
	segments := []string{p.tok.lit}
	p.advance()
	for p.tok.typ == tokDot {
		p.advance()
		if p.tok.typ != tokIdent {
			return "", p.errorf(p.tok, "malformed field path")
		}
		segments = append(segments, p.tok.lit)
		p.advance()
	}
	return strings.Join(segments, "."), nil
}

func (p *parser) parseOperator() (Operator, token, error) {
	tok := p.tok
	switch tok.typ {
	case tokSymbol:
		op, ok := symbolOperators[tok.lit]
		if !ok {
			return 0, tok, p.errorf(tok, "malformed operator")
		}
		p.advance()
		return op, tok, nil
	case tokIdent:
		switch strings.ToLower(tok.lit) {
		case "in":
			p.advance()
			return OpIn, tok, nil
		case "is":
			p.advance()
			if p.tok.typ == tokIdent && strings.EqualFold(p.tok.lit, "not") {
				p.advance()
				return OpIsNot, tok, nil
			}
			return OpIs, tok, nil
		case "not":
			p.advance()
			if p.tok.typ == tokIdent && strings.EqualFold(p.tok.lit, "in") {
				p.advance()
				return OpNotIn, tok, nil
			}
			return 0, tok, p.errorf(tok, "expected \"not in\"")
		}
		return 0, tok, p.errorf(tok, "unknown operator")
	case tokEOF:
		return 0, tok, p.errorf(tok, "missing operator")
	}
	return 0, tok, p.errorf(tok, "malformed operator")
}

func (p *parser) parseLiteral() (any, error) {
	tok := p.tok
	switch tok.typ {
	case tokString:
		p.advance()
		return tok.lit, nil
	case tokNumber:
		p.advance()
		if i, err := strconv.ParseInt(tok.lit, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(tok.lit, 64)
		if err != nil {
			return nil, p.errorf(tok, "malformed number")
		}
		return f, nil
	case tokIdent:
		p.advance()
		switch strings.ToLower(tok.lit) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "none":
			return nil, nil
		}
		return nil, p.errorf(tok, "unquoted literal")
	case tokLBracket:
		return p.parseSequence()
	case tokUnterminated:
		return nil, p.errorf(tok, "unterminated string literal")
	case tokEOF:
		return nil, p.errorf(tok, "missing literal")
	}
	return nil, p.errorf(tok, "invalid literal")
}

func (p *parser) parseSequence() (any, error) {
	open := p.tok
	p.advance()
	items := []any{}
	if p.tok.typ == tokRBracket {
		p.advance()
		return items, nil
	}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		switch p.tok.typ {
		case tokComma:
			p.advance()
		case tokRBracket:
			p.advance()
			return items, nil
		case tokEOF:
			return nil, p.errorf(open, "unterminated sequence")
		default:
			return nil, p.errorf(p.tok, "expected \",\" or \"]\"")
		}
	}
}

func kindName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64, float64:
		return "numeric"
	case []any:
		return "sequence"
	}
	return fmt.Sprintf("%T", v)
}
