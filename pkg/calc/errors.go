package calc

import (
	"errors"
	"fmt"
)

// Error kinds raised while lexing or evaluating a statement. Use errors.Is
// against these to classify a returned *Error.
var (
	ErrLexical    = errors.New("lexical error")
	ErrSyntax     = errors.New("syntax error")
	ErrUnassigned = errors.New("unassigned variable")
	ErrAlignment  = errors.New("alignment error")
	ErrType       = errors.New("type error")
	ErrMath       = errors.New("math error")

	// ErrExit is returned by the lexer when the exit keyword is read.
	ErrExit = errors.New("exit")
)

// ErrorKind classifies a statement failure.
type ErrorKind int

const (
	LexicalError ErrorKind = iota
	SyntaxError
	UnassignedVariableError
	AlignmentError
	TypeError
	MathError
)

var errorKindSentinels = map[ErrorKind]error{
	LexicalError:            ErrLexical,
	SyntaxError:             ErrSyntax,
	UnassignedVariableError: ErrUnassigned,
	AlignmentError:          ErrAlignment,
	TypeError:               ErrType,
	MathError:               ErrMath,
}

func (k ErrorKind) String() string {
	if err, ok := errorKindSentinels[k]; ok {
		return err.Error()
	}
	return "unknown error"
}

// Error is a recoverable statement failure. Message is what gets printed
// back to the user.
type Error struct {
	Kind    ErrorKind
	Message string
	// Name is the identifier involved, for UnassignedVariableError.
	Name string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap makes errors.Is(err, ErrSyntax) and friends work.
func (e *Error) Unwrap() error {
	return errorKindSentinels[e.Kind]
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func lexicalError(format string, args ...interface{}) *Error {
	return newError(LexicalError, "Lexical error: "+format, args...)
}

func syntaxError(format string, args ...interface{}) *Error {
	return newError(SyntaxError, "Syntax error: "+format, args...)
}

func unassignedError(name string) *Error {
	e := newError(UnassignedVariableError, "No value assigned to %s", name)
	e.Name = name
	return e
}

func operandTypeError(op string, a, b Number) *Error {
	return newError(TypeError, "unsupported operand types for %s: %s and %s", op, a.typeName(), b.typeName())
}

// KindOf reports the kind of a statement error and whether err is one.
func KindOf(err error) (ErrorKind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
