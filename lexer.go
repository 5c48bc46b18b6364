package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/jcorbin/c4go/internal/fileinput"
)

// lexer turns source text into a stream of tokens. It maintains a 1-based
// line/column position and the current line's text for diagnostics, via
// internal/fileinput.
type lexer struct {
	in  fileinput.Input
	col int

	peeked   *rune
	peekErr  error
	peekedOK bool
}

func newLexer(name, src string) *lexer {
	lx := &lexer{}
	lx.in.Set(strings.NewReader(src), name)
	return lx
}

func (lx *lexer) loc() location {
	return location{name: lx.in.Scan.Name, line: lx.in.Scan.Line, col: lx.col}
}

// currentLine returns the best-effort full text of the line an error just
// occurred on: the completed previous line if we just crossed a newline,
// otherwise whatever of the current line has been scanned so far. This
// mirrors gothird's own scan() diagnostic fallback in internals.go.
func (lx *lexer) currentLine() string {
	if lx.in.Scan.Len() > 0 {
		return lx.in.Scan.Buffer.String()
	}
	return lx.in.Last.Buffer.String()
}

func (lx *lexer) readRune() (rune, error) {
	if lx.peekedOK {
		r, err := *lx.peeked, lx.peekErr
		lx.peekedOK = false
		lx.peeked = nil
		if r == '\n' {
			lx.col = 0
		} else if r != 0 {
			lx.col++
		}
		return r, err
	}
	r, _, err := lx.in.ReadRune()
	if r == '\n' {
		lx.col = 0
	} else if r != 0 {
		lx.col++
	}
	return r, err
}

func (lx *lexer) peekRune() (rune, error) {
	if !lx.peekedOK {
		r, _, err := lx.in.ReadRune()
		lx.peeked = &r
		lx.peekErr = err
		lx.peekedOK = true
	}
	return *lx.peeked, lx.peekErr
}

func (lx *lexer) errf(format string, args ...interface{}) error {
	return lexError{loc: lx.loc(), line: lx.currentLine(), msg: fmt.Sprintf(format, args...)}
}

// nextToken returns the next token, or a lexError.
func (lx *lexer) nextToken() (token, error) {
	for {
		r, err := lx.readRune()
		if err == io.EOF {
			return token{kind: tokEOF, loc: lx.loc()}, nil
		} else if err != nil {
			return token{}, err
		}

		switch {
		case r == '\n' || unicode.IsSpace(r):
			continue
		case r == '#':
			if err := lx.skipToEOL(); err != nil && err != io.EOF {
				return token{}, err
			}
			continue
		case r == '/':
			p, _ := lx.peekRune()
			if p == '/' {
				lx.readRune()
				if err := lx.skipToEOL(); err != nil && err != io.EOF {
					return token{}, err
				}
				continue
			}
			return lx.operator(r)
		case r == '_' || unicode.IsLetter(r):
			return lx.ident(r)
		case r >= '0' && r <= '9':
			return lx.number(r)
		case r == '\'':
			return lx.charLit()
		case r == '"':
			return lx.stringLit()
		default:
			return lx.operator(r)
		}
	}
}

func (lx *lexer) skipToEOL() error {
	for {
		r, err := lx.readRune()
		if err != nil {
			return err
		}
		if r == '\n' {
			return nil
		}
	}
}

func (lx *lexer) ident(first rune) (token, error) {
	loc := lx.loc()
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		r, err := lx.peekRune()
		if err != nil || !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		lx.readRune()
		sb.WriteRune(r)
	}
	name := sb.String()
	if kw, ok := keywords[name]; ok {
		return token{kind: kw, name: name, loc: loc}, nil
	}
	return token{kind: tokIdent, name: name, loc: loc}, nil
}

// number lexes decimal [1-9][0-9]*, octal 0[0-7]*, and hex 0[xX][0-9A-Fa-f]+
// literals into a signed machine-word integer.
func (lx *lexer) number(first rune) (token, error) {
	loc := lx.loc()
	var sb strings.Builder
	sb.WriteRune(first)

	base := 10
	if first == '0' {
		base = 8
		if p, _ := lx.peekRune(); p == 'x' || p == 'X' {
			lx.readRune()
			sb.Reset()
			base = 16
		}
	}

	digitOK := func(r rune) bool {
		switch base {
		case 16:
			return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		default:
			return r >= '0' && r <= '9'
		}
	}
	for {
		r, err := lx.peekRune()
		if err != nil || !digitOK(r) {
			break
		}
		lx.readRune()
		sb.WriteRune(r)
	}

	digits := sb.String()
	if base == 16 && digits == "" {
		return token{}, lx.errf("malformed hex literal")
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return token{}, lx.errf("malformed numeric literal: %v", err)
	}
	return token{kind: tokNum, ival: n, loc: loc}, nil
}

// escapeSet maps the recognized backslash escapes; any other \x passes x
// through unchanged, per spec.md §4.1.
var escapeSet = map[rune]rune{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '\'': '\'', '"': '"', '0': 0,
}

func (lx *lexer) charLit() (token, error) {
	loc := lx.loc()
	r, err := lx.readRune()
	if err == io.EOF {
		return token{}, lx.errf("unterminated char literal")
	} else if err != nil {
		return token{}, err
	}
	var val rune
	if r == '\\' {
		e, err := lx.readRune()
		if err != nil {
			return token{}, lx.errf("unterminated char literal")
		}
		if mapped, ok := escapeSet[e]; ok {
			val = mapped
		} else {
			val = e
		}
	} else {
		val = r
	}
	close, err := lx.readRune()
	if err != nil || close != '\'' {
		return token{}, lx.errf("unterminated char literal")
	}
	return token{kind: tokNum, ival: int64(val), loc: loc}, nil
}

func (lx *lexer) stringLit() (token, error) {
	loc := lx.loc()
	var sb strings.Builder
	for {
		r, err := lx.readRune()
		if err == io.EOF {
			return token{}, lx.errf("unterminated string literal")
		} else if err != nil {
			return token{}, err
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			e, err := lx.readRune()
			if err != nil {
				return token{}, lx.errf("unterminated string literal")
			}
			if mapped, ok := escapeSet[e]; ok {
				sb.WriteRune(mapped)
			} else {
				sb.WriteRune(e)
			}
			continue
		}
		sb.WriteRune(r)
	}
	return token{kind: tokStr, name: sb.String(), loc: loc}, nil
}

// operator recognizes punctuation and operators, long-match-first.
func (lx *lexer) operator(first rune) (token, error) {
	loc := lx.loc()
	two := func(next rune, long, short tokKind) (token, error) {
		if p, _ := lx.peekRune(); p == next {
			lx.readRune()
			return token{kind: long, loc: loc}, nil
		}
		return token{kind: short, loc: loc}, nil
	}
	switch first {
	case '=':
		return two('=', tokEq, tokAssign)
	case '!':
		return two('=', tokNe, tokNot)
	case '<':
		if p, _ := lx.peekRune(); p == '<' {
			lx.readRune()
			return token{kind: tokShl, loc: loc}, nil
		}
		return two('=', tokLe, tokLt)
	case '>':
		if p, _ := lx.peekRune(); p == '>' {
			lx.readRune()
			return token{kind: tokShr, loc: loc}, nil
		}
		return two('=', tokGe, tokGt)
	case '&':
		return two('&', tokLAnd, tokAnd)
	case '|':
		return two('|', tokLOr, tokOr)
	case '+':
		return two('+', tokInc, tokAdd)
	case '-':
		return two('-', tokDec, tokSub)
	case '^':
		return token{kind: tokXor, loc: loc}, nil
	case '~':
		return token{kind: tokTilde, loc: loc}, nil
	case '*':
		return token{kind: tokMul, loc: loc}, nil
	case '/':
		return token{kind: tokDiv, loc: loc}, nil
	case '%':
		return token{kind: tokMod, loc: loc}, nil
	case '?':
		return token{kind: tokCond, loc: loc}, nil
	case ':':
		return token{kind: tokColon, loc: loc}, nil
	case ';':
		return token{kind: tokSemi, loc: loc}, nil
	case ',':
		return token{kind: tokComma, loc: loc}, nil
	case '(':
		return token{kind: tokLParen, loc: loc}, nil
	case ')':
		return token{kind: tokRParen, loc: loc}, nil
	case '{':
		return token{kind: tokLBrace, loc: loc}, nil
	case '}':
		return token{kind: tokRBrace, loc: loc}, nil
	case '[':
		return token{kind: tokLBrak, loc: loc}, nil
	case ']':
		return token{kind: tokRBrak, loc: loc}, nil
	default:
		return token{}, lx.errf("unknown character %q", first)
	}
}
