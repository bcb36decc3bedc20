package filter

import (
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal
	tokIdent
	tokDot
	tokSymbol // run of operator punctuation
	tokString
	tokNumber
	tokLBracket
	tokRBracket
	tokComma
	tokUnterminated
)

type token struct {
	typ tokenType
	lit string // raw text; decoded contents for strings
	pos int    // byte offset in the input
}

// symbolChars may form operator tokens. A run of them is read as one token
// so that "=<" or ">=*" surface as malformed operators rather than as a
// valid prefix followed by junk.
const symbolChars = "=!<>~*&|^%?@#$:;+/\\"

// lexer tokenizes one filter string.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *lexer) next() token {
	l.skipWhitespace()
	pos := l.pos
	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: len(l.input)}
	}

	switch {
	case l.ch == '.':
		l.readChar()
		return token{typ: tokDot, lit: ".", pos: pos}
	case l.ch == '[':
		l.readChar()
		return token{typ: tokLBracket, lit: "[", pos: pos}
	case l.ch == ']':
		l.readChar()
		return token{typ: tokRBracket, lit: "]", pos: pos}
	case l.ch == ',':
		l.readChar()
		return token{typ: tokComma, lit: ",", pos: pos}
	case l.ch == '\'' || l.ch == '"':
		return l.readString()
	case isDigit(l.ch), l.ch == '-' && isDigit(l.peekChar()):
		return l.readNumber()
	case isLetter(l.ch):
		start := l.pos
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		return token{typ: tokIdent, lit: l.input[start:l.pos], pos: pos}
	case strings.IndexByte(symbolChars, l.ch) >= 0:
		start := l.pos
		for l.ch != 0 && strings.IndexByte(symbolChars, l.ch) >= 0 {
			l.readChar()
		}
		return token{typ: tokSymbol, lit: l.input[start:l.pos], pos: pos}
	}
	ch := l.ch
	l.readChar()
	return token{typ: tokIllegal, lit: string(ch), pos: pos}
}

// readString reads a quoted literal. Backslash escapes the next character;
// \n, \t and \r have their usual meaning.
func (l *lexer) readString() token {
	pos := l.pos
	quote := l.ch
	var b strings.Builder
	l.readChar()
	for {
		switch l.ch {
		case 0:
			if l.pos >= len(l.input) {
				return token{typ: tokUnterminated, lit: l.input[pos:], pos: pos}
			}
		case quote:
			l.readChar()
			return token{typ: tokString, lit: b.String(), pos: pos}
		case '\\':
			l.readChar()
			if l.pos >= len(l.input) {
				return token{typ: tokUnterminated, lit: l.input[pos:], pos: pos}
			}
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
}

// readNumber reads an optionally signed decimal literal with optional
// fraction and exponent.
func (l *lexer) readNumber() token {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save, saveRead, saveCh := l.pos, l.readPos, l.ch
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			l.pos, l.readPos, l.ch = save, saveRead, saveCh
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return token{typ: tokNumber, lit: l.input[start:l.pos], pos: start}
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
