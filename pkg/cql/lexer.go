// Package cql tokenizes CQL query text for highlighting, autocomplete
// and variable substitution.
//
// The lexer is a single forward pass over the input bytes. Every byte of
// the input belongs to exactly one token, including whitespace and
// comments, so the concatenated token texts reconstruct the input
// verbatim. Tokenization never fails: spans the lexer cannot classify
// become Unknown tokens.
package cql

import (
	"strings"

	"github.com/cqldesk/cqldesk/pkg/token"
)

// Lexer tokenizes CQL input.
type Lexer struct {
	input string
	pos   int // start of the token being scanned
	read  int // reading position (one past the current char)
	ch    byte
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next character. ch is 0 at end of input.
func (l *Lexer) readChar() {
	if l.read >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.read]
	}
	l.pos = l.read
	l.read++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.read >= len(l.input) {
		return 0
	}
	return l.input[l.read]
}

// Tokenize returns all tokens for the input in order. The loop runs on
// position, not on the ch sentinel, so a literal NUL byte in the input
// becomes an Unknown token instead of a premature end of input.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for l.pos < len(l.input) {
		tokens = append(tokens, l.next())
	}
	return tokens
}

// next scans one token starting at the current position.
func (l *Lexer) next() token.Token {
	start := l.pos

	switch {
	case l.ch == '-' && l.peekChar() == '-':
		return l.scanLineComment(start)
	case l.ch == '/' && l.peekChar() == '/':
		return l.scanLineComment(start)
	case l.ch == '/' && l.peekChar() == '*':
		return l.scanBlockComment(start)
	case l.ch == '{' && l.peekChar() == '{':
		return l.scanPlaceholder(start)
	case l.ch == '\'':
		return l.scanString(start)
	case l.ch == '"':
		return l.scanQuotedIdentifier(start)
	case isDigit(l.ch):
		return l.scanNumber(start)
	case isLetter(l.ch) || l.ch == '_':
		return l.scanWord(start)
	case isSpace(l.ch):
		return l.scanWhitespace(start)
	}

	if isOperatorStart(l.ch) {
		// Two-char operators: !=, <=, >=
		if (l.ch == '!' || l.ch == '<' || l.ch == '>') && l.peekChar() == '=' {
			l.readChar()
		}
		l.readChar()
		return l.emit(token.Operator, start)
	}

	switch l.ch {
	case ';', ',', '(', ')', '[', ']', '{', '}', ':':
		l.readChar()
		return l.emit(token.Punctuation, start)
	}

	l.readChar()
	return l.emit(token.Unknown, start)
}

// emit builds a token spanning [start, l.pos).
func (l *Lexer) emit(kind token.Kind, start int) token.Token {
	return token.Token{
		Kind:  kind,
		Text:  l.input[start:l.pos],
		Start: start,
		End:   l.pos,
	}
}

// scanLineComment consumes -- or // to end of line (newline excluded).
// An unterminated comment runs to end of input.
func (l *Lexer) scanLineComment(start int) token.Token {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
	return l.emit(token.Comment, start)
}

// scanBlockComment consumes /* ... */, or to end of input if unterminated.
func (l *Lexer) scanBlockComment(start int) token.Token {
	l.readChar() // skip '/'
	l.readChar() // skip '*'
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			break
		}
		l.readChar()
	}
	return l.emit(token.Comment, start)
}

// scanPlaceholder consumes a {{...}} span as a single token, delimiters
// included. An unterminated placeholder runs to end of input.
func (l *Lexer) scanPlaceholder(start int) token.Token {
	l.readChar() // skip first '{'
	l.readChar() // skip second '{'
	for l.ch != 0 {
		if l.ch == '}' && l.peekChar() == '}' {
			l.readChar()
			l.readChar()
			break
		}
		l.readChar()
	}
	return l.emit(token.VariablePlaceholder, start)
}

// scanString consumes a single-quoted literal. CQL escapes quotes by
// doubling them: 'it''s'. Unterminated strings run to end of input.
func (l *Lexer) scanString(start int) token.Token {
	l.readChar() // skip opening quote
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			break
		}
		l.readChar()
	}
	return l.emit(token.String, start)
}

// scanQuotedIdentifier consumes a double-quoted identifier, with ""
// as the escape for an embedded quote.
func (l *Lexer) scanQuotedIdentifier(start int) token.Token {
	l.readChar() // skip opening quote
	for l.ch != 0 {
		if l.ch == '"' {
			if l.peekChar() == '"' {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			break
		}
		l.readChar()
	}
	return l.emit(token.Identifier, start)
}

// scanNumber consumes an integer or decimal literal.
func (l *Lexer) scanNumber(start int) token.Token {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.emit(token.Number, start)
}

// scanWord consumes an unquoted word and classifies it against the
// vocabulary, case-insensitively.
func (l *Lexer) scanWord(start int) token.Token {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	word := l.input[start:l.pos]
	kind := token.LookupWord(strings.ToUpper(word))
	return token.Token{Kind: kind, Text: word, Start: start, End: l.pos}
}

// scanWhitespace consumes a maximal run of whitespace.
func (l *Lexer) scanWhitespace(start int) token.Token {
	for isSpace(l.ch) {
		l.readChar()
	}
	return l.emit(token.Whitespace, start)
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isOperatorStart(ch byte) bool {
	switch ch {
	case '=', '<', '>', '!', '+', '-', '*', '/', '.':
		return true
	}
	return false
}
