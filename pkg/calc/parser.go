package calc

import "math"

// parser evaluates a statement while parsing it. Every level consumes the
// operators of its precedence and recurses one level tighter for operands;
// operators of equal precedence fold left to right, "**" included.
type parser struct {
	stmt *Statement
	sess *Session
}

func (p *parser) peek() TokenType {
	tok, ok := p.stmt.tokens.peek()
	if !ok {
		return TOKEN_EOF
	}
	return tok
}

func (p *parser) next() TokenType {
	tok, ok := p.stmt.tokens.pop()
	if !ok {
		return TOKEN_EOF
	}
	return tok
}

func (p *parser) nextPayload() payload {
	v, _ := p.stmt.values.pop()
	return v
}

// expect consumes the next token and fails unless it is want.
func (p *parser) expect(want TokenType) error {
	if got := p.next(); got != want {
		return syntaxError("expected '%s', got %s", want, describe(got))
	}
	return nil
}

func describe(tok TokenType) string {
	if tok == TOKEN_EOF || tok == TOKEN_NUMBER || tok == TOKEN_IDENT {
		return tok.String()
	}
	return "'" + tok.String() + "'"
}

type binaryOp func(a, b Number) (Number, error)

var sumOps = map[TokenType]binaryOp{
	TOKEN_PLUS:  add,
	TOKEN_MINUS: sub,
}

var termOps = map[TokenType]binaryOp{
	TOKEN_TIMES:     mul,
	TOKEN_DIVIDE:    div,
	TOKEN_REMAINDER: mod,
	TOKEN_OR:        bitOr,
	TOKEN_AND:       bitAnd,
	TOKEN_XOR:       bitXor,
}

var powerOps = map[TokenType]binaryOp{
	TOKEN_POWER:       pow,
	TOKEN_LEFT_SHIFT:  shiftLeft,
	TOKEN_RIGHT_SHIFT: shiftRight,
}

// parseSum handles + and - (lowest precedence)
func (p *parser) parseSum() (Number, error) {
	return p.parseLevel(sumOps, p.parseTerm)
}

// parseTerm handles * / % | & ^
func (p *parser) parseTerm() (Number, error) {
	return p.parseLevel(termOps, p.parsePower)
}

// parsePower handles ** << >>
func (p *parser) parsePower() (Number, error) {
	return p.parseLevel(powerOps, p.parseUnary)
}

func (p *parser) parseLevel(ops map[TokenType]binaryOp, operand func() (Number, error)) (Number, error) {
	left, err := operand()
	if err != nil {
		return Number{}, err
	}

	for {
		op, ok := ops[p.peek()]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return Number{}, err
		}
		left, err = op(left, right)
		if err != nil {
			return Number{}, err
		}
	}
}

// parseUnary handles prefix - and ~, which may stack.
func (p *parser) parseUnary() (Number, error) {
	switch p.peek() {
	case TOKEN_MINUS:
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return Number{}, err
		}
		return negate(v), nil
	case TOKEN_COMPLEMENT:
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return Number{}, err
		}
		return complement(v)
	default:
		return p.parsePrimary()
	}
}

// parsePrimary handles literals, parentheses, function calls, pi and variables.
func (p *parser) parsePrimary() (Number, error) {
	switch tok := p.next(); tok {
	case TOKEN_NUMBER:
		v := p.nextPayload()
		if !v.set {
			return Number{}, unassignedError("ans")
		}
		return v.num, nil

	case TOKEN_LPAREN:
		res, err := p.parseSum()
		if err != nil {
			return Number{}, err
		}
		if p.next() != TOKEN_RPAREN {
			return Number{}, syntaxError("missing closing parenthesis")
		}
		return res, nil

	case TOKEN_SQRT, TOKEN_SIN, TOKEN_COS, TOKEN_EXP:
		return p.parseCall(tok)

	case TOKEN_PI:
		return Float(math.Pi), nil

	case TOKEN_IDENT:
		name := p.nextPayload().name
		v, ok := p.sess.Symbols().Lookup(name)
		if !ok {
			return Number{}, unassignedError(name)
		}
		return v, nil

	default:
		return Number{}, syntaxError("unexpected %s", describe(tok))
	}
}

// parseCall handles sqrt(x), sin(x), cos(x) and exp(x).
func (p *parser) parseCall(fn TokenType) (Number, error) {
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return Number{}, err
	}
	arg, err := p.parseSum()
	if err != nil {
		return Number{}, err
	}
	if p.next() != TOKEN_RPAREN {
		return Number{}, syntaxError("missing closing parenthesis after %s argument", fn)
	}
	return mathFunc(fn, arg)
}
