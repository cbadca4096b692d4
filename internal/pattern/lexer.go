package pattern

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	WORD   // identifiers, masks, qualified names
	STRING // "quoted literal"
	REGEX  // ^anchored regular expression$

	BANG     // !
	COMMA    // ,
	ELLIPSIS // ...

	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	LT       // <
	GT       // >
)

type Token struct {
	Type     TokenType
	Literal  string
	Position int
}

// Lexer tokenizes a single method pattern.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           rune
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.readPosition += size
}

func (l *Lexer) peekString(n int) string {
	end := l.position + n
	if end > len(l.input) {
		end = len(l.input)
	}
	return l.input[l.position:end]
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.position
	single := func(t TokenType) Token {
		tok := Token{Type: t, Literal: string(l.ch), Position: start}
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		return Token{Type: EOF, Position: start}
	case '!':
		return single(BANG)
	case ',':
		return single(COMMA)
	case '(':
		return single(LPAREN)
	case ')':
		return single(RPAREN)
	case '{':
		return single(LBRACE)
	case '}':
		return single(RBRACE)
	case '[':
		return single(LBRACKET)
	case ']':
		return single(RBRACKET)
	case '<':
		return single(LT)
	case '>':
		return single(GT)
	case '"':
		return l.readString()
	case '^':
		return l.readRegex()
	case '.':
		if l.peekString(3) == "..." {
			l.readChar()
			l.readChar()
			l.readChar()
			return Token{Type: ELLIPSIS, Literal: "...", Position: start}
		}
	}

	if isWordRune(l.ch) {
		if word := l.readWord(); word != "" {
			return Token{Type: WORD, Literal: word, Position: start}
		}
	}
	return single(ILLEGAL)
}

func (l *Lexer) readWord() string {
	start := l.position
	for isWordRune(l.ch) {
		if l.ch == '.' && l.peekString(2) == ".." {
			break
		}
		l.readChar()
	}
	return l.input[start:l.position]
}

// readString keeps the quotes so the literal can be compiled as a name pattern.
// '' inside the literal is an escaped quote and never terminates it.
func (l *Lexer) readString() Token {
	start := l.position
	l.readChar()
	for l.ch != 0 && l.ch != '"' {
		l.readChar()
	}
	if l.ch == 0 {
		return Token{Type: ILLEGAL, Literal: l.input[start:], Position: start}
	}
	l.readChar()
	return Token{Type: STRING, Literal: l.input[start:l.position], Position: start}
}

func (l *Lexer) readRegex() Token {
	start := l.position
	end := regexEnd(l.input, start)
	if end < 0 {
		for l.ch != 0 {
			l.readChar()
		}
		return Token{Type: ILLEGAL, Literal: l.input[start:], Position: start}
	}
	for l.position < end {
		l.readChar()
	}
	return Token{Type: REGEX, Literal: l.input[start:end], Position: start}
}

// regexEnd returns the offset just past the '$' closing the regular expression
// that starts with the '^' at s[start], or -1 when it is not terminated. The
// closing '$' is outside regex groups and followed by the end of input,
// whitespace or a pattern delimiter.
func regexEnd(s string, start int) int {
	depth := 0
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '$':
			if depth == 0 && (j+1 == len(s) || strings.IndexByte(" \t\n,()[|", s[j+1]) >= 0) {
				return j + 1
			}
		}
	}
	return -1
}

func (l *Lexer) skipWhitespace() {
	for unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '*' || r == '.'
}

func (t TokenType) String() string {
	switch t {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case WORD:
		return "WORD"
	case STRING:
		return "STRING"
	case REGEX:
		return "REGEX"
	case BANG:
		return "!"
	case COMMA:
		return ","
	case ELLIPSIS:
		return "..."
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case LBRACE:
		return "{"
	case RBRACE:
		return "}"
	case LBRACKET:
		return "["
	case RBRACKET:
		return "]"
	case LT:
		return "<"
	case GT:
		return ">"
	default:
		return "UNKNOWN"
	}
}
