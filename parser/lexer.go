package parser

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antlr4-go/antlr/v4"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokKeyword
	tokPunct
)

var keywords = map[string]bool{
	"fn": true, "let": true,
	"return": true, "goto": true, "if": true, "then": true, "else": true,
	"assert": true, "call": true, "abort": true,
	"true": true, "false": true,
}

// punctuation, longest first so that "->" wins over "-"
var punctuation = []string{
	"->", "==", "!=", "<=", ">=", "&&", "||",
	"{", "}", "(", ")", "[", "]", ":", ",", ";", "|",
	"=", "<", ">", "+", "-", "*", "!", "_",
}

type lexToken struct {
	kind tokenKind
	text string
	// start and end are byte offsets in the source
	start, end int
}

func (t lexToken) String() string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return fmt.Sprintf("'%s'", t.text)
}

// lexer splits source code into tokens. Characters are read from an
// antlr.CharStream, so offsets are tracked separately in bytes.
type lexer struct {
	input      antlr.CharStream
	byteOffset int
}

func newLexer(src string) *lexer {
	return &lexer{input: antlr.NewInputStream(src)}
}

func (l *lexer) peekRune(offset int) rune {
	return rune(l.input.LA(offset))
}

func (l *lexer) atEOF() bool {
	return l.input.LA(1) == antlr.TokenEOF
}

func (l *lexer) consume() rune {
	r := l.peekRune(1)
	l.input.Consume()
	l.byteOffset += utf8.RuneLen(r)
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for !l.atEOF() {
		r := l.peekRune(1)
		switch {
		case unicode.IsSpace(r):
			l.consume()
		case r == '/' && l.peekRune(2) == '/':
			for !l.atEOF() && l.peekRune(1) != '\n' {
				l.consume()
			}
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// next returns the next token, or an error message for an unexpected character
func (l *lexer) next() (lexToken, string) {
	l.skipSpaceAndComments()
	start := l.byteOffset
	if l.atEOF() {
		return lexToken{kind: tokEOF, start: start, end: start}, ""
	}

	sb := &strings.Builder{}
	r := l.peekRune(1)
	switch {
	case isIdentStart(r) && (r != '_' || isIdentPart(l.peekRune(2))):
		for !l.atEOF() && isIdentPart(l.peekRune(1)) {
			sb.WriteRune(l.consume())
		}
		kind := tokIdent
		if keywords[sb.String()] {
			kind = tokKeyword
		}
		return lexToken{kind: kind, text: sb.String(), start: start, end: l.byteOffset}, ""

	case unicode.IsDigit(r):
		for !l.atEOF() && unicode.IsDigit(l.peekRune(1)) {
			sb.WriteRune(l.consume())
		}
		return lexToken{kind: tokInt, text: sb.String(), start: start, end: l.byteOffset}, ""
	}

	for _, p := range punctuation {
		if l.matches(p) {
			for range p {
				l.consume()
			}
			return lexToken{kind: tokPunct, text: p, start: start, end: l.byteOffset}, ""
		}
	}
	l.consume()
	return lexToken{kind: tokEOF, start: start, end: l.byteOffset}, fmt.Sprintf("unexpected character %q", r)
}

// matches checks whether the upcoming characters are the ASCII string s
func (l *lexer) matches(s string) bool {
	for i := 0; i < len(s); i++ {
		if l.peekRune(i+1) != rune(s[i]) {
			return false
		}
	}
	return true
}

// tokenize returns all the tokens of src, ending with a tokEOF one
func tokenize(src string, file *token.File) ([]lexToken, *syntaxError) {
	l := newLexer(src)
	var tokens []lexToken
	for {
		tok, msg := l.next()
		if msg != "" {
			return nil, &syntaxError{start: file.Pos(tok.start), end: file.Pos(tok.end), msg: msg}
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}
