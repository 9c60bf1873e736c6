package calc

import "math"

// Binary operators. An integer pair stays integral (wrapping at 64 bits);
// a fractional operand on either side makes the result fractional.

func add(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Int(a.i + b.i), nil
	}
	return Float(a.Float64() + b.Float64()), nil
}

func sub(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Int(a.i - b.i), nil
	}
	return Float(a.Float64() - b.Float64()), nil
}

func mul(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Int(a.i * b.i), nil
	}
	return Float(a.Float64() * b.Float64()), nil
}

// div always produces a fraction, even for two integers.
func div(a, b Number) (Number, error) {
	if b.Float64() == 0 {
		return Number{}, newError(MathError, "division by zero")
	}
	return Float(a.Float64() / b.Float64()), nil
}

// mod takes the sign of the divisor.
func mod(a, b Number) (Number, error) {
	if b.Float64() == 0 {
		return Number{}, newError(MathError, "modulo by zero")
	}
	if a.IsInt() && b.IsInt() {
		r := a.i % b.i
		if r != 0 && (r < 0) != (b.i < 0) {
			r += b.i
		}
		return Int(r), nil
	}
	x, y := a.Float64(), b.Float64()
	r := math.Mod(x, y)
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return Float(r), nil
}

func pow(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() && b.i >= 0 {
		return Int(intPow(a.i, b.i)), nil
	}
	x, y := a.Float64(), b.Float64()
	if x == 0 && y < 0 {
		return Number{}, newError(MathError, "zero cannot be raised to a negative power")
	}
	if x < 0 && y != math.Trunc(y) {
		return Number{}, newError(MathError, "math domain error")
	}
	r := math.Pow(x, y)
	if math.IsInf(r, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
		return Number{}, newError(MathError, "numerical result out of range")
	}
	return Float(r), nil
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func bitOr(a, b Number) (Number, error) {
	if !a.IsInt() || !b.IsInt() {
		return Number{}, operandTypeError("|", a, b)
	}
	return Int(a.i | b.i), nil
}

func bitAnd(a, b Number) (Number, error) {
	if !a.IsInt() || !b.IsInt() {
		return Number{}, operandTypeError("&", a, b)
	}
	return Int(a.i & b.i), nil
}

func bitXor(a, b Number) (Number, error) {
	if !a.IsInt() || !b.IsInt() {
		return Number{}, operandTypeError("^", a, b)
	}
	return Int(a.i ^ b.i), nil
}

func shiftLeft(a, b Number) (Number, error) {
	if !a.IsInt() || !b.IsInt() {
		return Number{}, operandTypeError("<<", a, b)
	}
	if b.i < 0 {
		return Number{}, newError(TypeError, "negative shift count")
	}
	return Int(a.i << uint64(b.i)), nil
}

// shiftRight is arithmetic: negative values stay negative.
func shiftRight(a, b Number) (Number, error) {
	if !a.IsInt() || !b.IsInt() {
		return Number{}, operandTypeError(">>", a, b)
	}
	if b.i < 0 {
		return Number{}, newError(TypeError, "negative shift count")
	}
	return Int(a.i >> uint64(b.i)), nil
}

func negate(a Number) Number {
	if a.IsInt() {
		return Int(-a.i)
	}
	return Float(-a.f)
}

func complement(a Number) (Number, error) {
	if !a.IsInt() {
		return Number{}, newError(TypeError, "bad operand type for ~: float")
	}
	return Int(^a.i), nil
}

// mathFunc applies one of the unary functions reachable from the grammar.
func mathFunc(tok TokenType, a Number) (Number, error) {
	x := a.Float64()
	switch tok {
	case TOKEN_SQRT:
		if x < 0 {
			return Number{}, newError(MathError, "math domain error")
		}
		return Float(math.Sqrt(x)), nil
	case TOKEN_SIN, TOKEN_COS:
		if math.IsInf(x, 0) {
			return Number{}, newError(MathError, "math domain error")
		}
		if tok == TOKEN_SIN {
			return Float(math.Sin(x)), nil
		}
		return Float(math.Cos(x)), nil
	case TOKEN_EXP:
		r := math.Exp(x)
		if math.IsInf(r, 1) && !math.IsInf(x, 1) {
			return Number{}, newError(MathError, "math range error")
		}
		return Float(r), nil
	}
	return Number{}, syntaxError("%s is not a function", tok)
}
