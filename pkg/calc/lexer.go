package calc

import (
	"errors"
	"io"
	"strings"
)

// DefaultMaxLineLength bounds the source text kept for a single statement.
const DefaultMaxLineLength = 4096

// Lexer turns a character source into one Statement per input line. It
// never reads past the newline that ends a statement, so an interactive
// source is not blocked on before the statement has been executed.
type Lexer struct {
	src     io.ByteReader
	char    byte
	eof     bool
	primed  bool
	err     error
	line    strings.Builder
	maxLine int
}

// NewLexer creates a lexer reading from src.
func NewLexer(src io.ByteReader) *Lexer {
	return &Lexer{
		src:     src,
		maxLine: DefaultMaxLineLength,
	}
}

// SetMaxLineLength changes the longest accepted line. n <= 0 disables the limit.
func (l *Lexer) SetMaxLineLength(n int) {
	l.maxLine = n
}

// readChar advances to the next character. End of input and NUL both mark eof.
func (l *Lexer) readChar() {
	if l.eof {
		return
	}
	c, err := l.src.ReadByte()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.err = err
		}
		l.eof = true
		l.char = 0
		return
	}
	if c == 0 {
		l.eof = true
		l.char = 0
		return
	}
	l.char = c
	if c != '\n' {
		l.line.WriteByte(c)
	}
}

// Next lexes the next line. It returns io.EOF once input is exhausted,
// ErrExit when the exit keyword is read, a *Error for a lexical error (the
// rest of that line is skipped) or the underlying read error.
// Identifiers are declared in sess's symbol table as they are lexed and
// "ans" is resolved against sess's last answer.
func (l *Lexer) Next(sess *Session) (*Statement, error) {
	if !l.primed {
		l.line.Reset()
		l.readChar()
		l.primed = true
	}
	stmt := &Statement{}

	for {
		if l.eof {
			if l.err != nil {
				return nil, l.err
			}
			if stmt.tokens.len() > 0 {
				stmt.Source = l.line.String()
				return stmt, nil
			}
			return nil, io.EOF
		}
		if l.maxLine > 0 && l.line.Len() > l.maxLine {
			return nil, l.fail(lexicalError("line exceeds %d characters", l.maxLine))
		}

		c := l.char
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.readChar()

		case c == '\n':
			stmt.Source = l.line.String()
			l.primed = false
			return stmt, nil

		case c == '*':
			l.readChar()
			if l.char == '*' {
				stmt.push(TOKEN_POWER)
				l.readChar()
			} else {
				stmt.push(TOKEN_TIMES)
			}

		case c == '<' || c == '>':
			l.readChar()
			if l.char != c {
				return nil, l.fail(lexicalError("expected %c%c", c, c))
			}
			if c == '<' {
				stmt.push(TOKEN_LEFT_SHIFT)
			} else {
				stmt.push(TOKEN_RIGHT_SHIFT)
			}
			l.readChar()

		case isDigit(c):
			stmt.pushNumber(l.readNumber())

		case isIdentStart(c):
			word := l.readWord()
			switch word {
			case "exit":
				l.primed = false
				return nil, ErrExit
			case "ans":
				if v, ok := sess.Answer(); ok {
					stmt.pushNumber(v)
				} else {
					stmt.pushMissingAnswer()
				}
			default:
				if tok, ok := keywords[word]; ok {
					stmt.push(tok)
				} else {
					sess.Symbols().Declare(word)
					stmt.pushIdent(word)
				}
			}

		default:
			tok, ok := singleCharTokens[c]
			if !ok {
				return nil, l.fail(lexicalError("unexpected character %q", c))
			}
			stmt.push(tok)
			l.readChar()
		}
	}
}

// Line returns the raw text read so far for the current or most recently
// finished line, including a line abandoned after a lexical error.
func (l *Lexer) Line() string {
	return l.line.String()
}

// fail discards the remainder of the current line and returns err.
func (l *Lexer) fail(err *Error) error {
	for !l.eof && l.char != '\n' {
		l.readChar()
	}
	l.primed = false
	if l.err != nil {
		return l.err
	}
	return err
}

// readNumber reads a decimal, fractional, hex (0x) or binary (0b) literal.
func (l *Lexer) readNumber() Number {
	var n int64
	count := 0
	for isDigit(l.char) {
		n = n*10 + int64(l.char-'0')
		count++
		l.readChar()
	}

	single0 := n == 0 && count == 1
	switch {
	case l.char == '.':
		f := float64(n)
		d := 10.0
		l.readChar()
		for isDigit(l.char) {
			f += float64(l.char-'0') / d
			d *= 10
			l.readChar()
		}
		return Float(f)

	case l.char == 'x' && single0:
		l.readChar()
		for {
			v, ok := hexDigit(l.char)
			if !ok {
				break
			}
			n = n*16 + v
			l.readChar()
		}

	case l.char == 'b' && single0:
		l.readChar()
		for l.char == '0' || l.char == '1' {
			n = n*2 + int64(l.char-'0')
			l.readChar()
		}
	}
	return Int(n)
}

func (l *Lexer) readWord() string {
	var sb strings.Builder
	for isIdentStart(l.char) || isDigit(l.char) {
		sb.WriteByte(l.char)
		l.readChar()
	}
	return sb.String()
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func hexDigit(ch byte) (int64, bool) {
	switch {
	case isDigit(ch):
		return int64(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return int64(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return int64(ch-'A') + 10, true
	}
	return 0, false
}
