// Package calc implements the arithmetic evaluator behind the calculator
// REPL: a line lexer, a recursive-descent evaluator that computes while it
// parses, the symbol table and the statement dispatcher.
//
// All state that outlives a single line (variables and the last answer)
// lives in a Session. A Session is not safe for concurrent use; hosts run
// one per interactive user.
package calc

import (
	"strings"
)

// Session holds the symbol table and last answer of one interactive user.
type Session struct {
	symbols   *SymbolTable
	answer    Number
	hasAnswer bool
}

// NewSession creates a session with no variables and no last answer.
func NewSession() *Session {
	return &Session{symbols: NewSymbolTable()}
}

// Symbols returns the session's symbol table.
func (s *Session) Symbols() *SymbolTable {
	return s.symbols
}

// Answer returns the result of the last successful statement.
func (s *Session) Answer() (Number, bool) {
	return s.answer, s.hasAnswer
}

func (s *Session) setAnswer(v Number) {
	s.answer = v
	s.hasAnswer = true
}

// Eval lexes and executes a single line. A line that contains the exit
// keyword returns ErrExit without being executed.
func (s *Session) Eval(line string) (Result, error) {
	lx := NewLexer(strings.NewReader(line + "\n"))
	lx.SetMaxLineLength(0)
	stmt, err := lx.Next(s)
	if err != nil {
		return Result{}, err
	}
	return s.Exec(stmt)
}
