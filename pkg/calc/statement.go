package calc

import (
	"math/bits"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// payload is the literal carried alongside a NUMBER or IDENT token.
type payload struct {
	num  Number
	set  bool // false for "ans" before any answer exists
	name string
}

// Statement is one lexed input line: a token queue and a parallel payload
// queue, consumed together in production order.
type Statement struct {
	// Source is the raw text of the line without its newline.
	Source string

	tokens queue[TokenType]
	values queue[payload]
}

func (s *Statement) push(tok TokenType) {
	s.tokens.push(tok)
}

func (s *Statement) pushNumber(v Number) {
	s.tokens.push(TOKEN_NUMBER)
	s.values.push(payload{num: v, set: true})
}

func (s *Statement) pushMissingAnswer() {
	s.tokens.push(TOKEN_NUMBER)
	s.values.push(payload{})
}

func (s *Statement) pushIdent(name string) {
	s.tokens.push(TOKEN_IDENT)
	s.values.push(payload{name: name})
}

// Empty reports whether the line produced no tokens.
func (s *Statement) Empty() bool {
	return s.tokens.len() == 0
}

// Tokens returns the tokens not yet consumed.
func (s *Statement) Tokens() []TokenType {
	return s.tokens.remaining()
}

func (s *Statement) discard() {
	s.tokens.reset()
	s.values.reset()
}

// ResultKind tells the host which statement form produced a Result.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultValue
	ResultAssign
	ResultBin
	ResultHex
	ResultAlign
)

// Result is the outcome of a successful statement.
type Result struct {
	Kind  ResultKind
	Value Number
	// Name is the assigned identifier for ResultAssign.
	Name string
	// Text is the formatted output line, without any prefix.
	Text string
}

// Exec dispatches a lexed statement on its first token and evaluates it.
// On error the statement is abandoned and the session is left as it was.
func (s *Session) Exec(stmt *Statement) (Result, error) {
	if stmt.Empty() {
		return Result{Kind: ResultNone}, nil
	}

	res, err := s.dispatch(&parser{stmt: stmt, sess: s})
	if err != nil {
		stmt.discard()
		logger.Debug(logger.AreaCalc, "statement %q failed: %v", stmt.Source, err)
		return Result{}, err
	}

	s.setAnswer(res.Value)
	logger.Debug(logger.AreaCalc, "statement %q = %s", stmt.Source, res.Text)
	return res, nil
}

func (s *Session) dispatch(p *parser) (Result, error) {
	switch p.peek() {
	case TOKEN_PRINT_BIN, TOKEN_PRINT_HEX:
		return s.execRadix(p)
	case TOKEN_ALIGN:
		return s.execAlign(p)
	case TOKEN_IDENT:
		if next, _ := p.stmt.tokens.peekAt(1); next == TOKEN_ASSIGN {
			return s.execAssign(p)
		}
	}

	v, err := s.evalAll(p)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultValue, Value: v, Text: v.String()}, nil
}

// evalAll evaluates one sum and requires it to use up the statement.
func (s *Session) evalAll(p *parser) (Number, error) {
	v, err := p.parseSum()
	if err != nil {
		return Number{}, err
	}
	if tok := p.peek(); tok != TOKEN_EOF {
		return Number{}, syntaxError("unexpected %s after expression", describe(tok))
	}
	return v, nil
}

func (s *Session) execRadix(p *parser) (Result, error) {
	cmd := p.next()
	v, err := s.evalAll(p)
	if err != nil {
		return Result{}, err
	}

	res := Result{Kind: ResultBin, Value: v}
	if cmd == TOKEN_PRINT_HEX {
		res.Kind = ResultHex
		res.Text, err = v.Hex()
	} else {
		res.Text, err = v.Binary()
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Session) execAlign(p *parser) (Result, error) {
	p.next()
	n, err := p.parseSum()
	if err != nil {
		return Result{}, err
	}
	if !n.IsInt() {
		return Result{}, newError(TypeError, "align boundary must be an integer, got %s", n)
	}
	if !powerOfTwo(n.Int64()) {
		return Result{}, newError(AlignmentError, "%s is not a power of two", n)
	}

	v, err := s.evalAll(p)
	if err != nil {
		return Result{}, err
	}
	if !v.IsInt() {
		return Result{}, newError(TypeError, "align value must be an integer, got %s", v)
	}

	aligned := Int(alignUp(v.Int64(), n.Int64()))
	return Result{Kind: ResultAlign, Value: aligned, Text: aligned.String()}, nil
}

// execAssign commits the value only after the right-hand side evaluated.
func (s *Session) execAssign(p *parser) (Result, error) {
	p.next()
	name := p.nextPayload().name
	p.next()

	v, err := s.evalAll(p)
	if err != nil {
		return Result{}, err
	}
	s.symbols.Assign(name, v)
	return Result{Kind: ResultAssign, Name: name, Value: v, Text: name + " = " + v.String()}, nil
}

// powerOfTwo reports whether exactly one bit of n's 64-bit two's-complement
// pattern is set.
func powerOfTwo(n int64) bool {
	return bits.OnesCount64(uint64(n)) == 1
}

// alignUp rounds v up to the next multiple of the power of two n.
func alignUp(v, n int64) int64 {
	return (-v & (n - 1)) + v
}
