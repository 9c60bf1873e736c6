package calc

import (
	"math"
	"strconv"
	"strings"
)

// Number is a value that is either integral or fractional. The zero value is
// the integer 0.
type Number struct {
	isFloat bool
	i       int64
	f       float64
}

// Int returns an integral Number.
func Int(v int64) Number {
	return Number{i: v}
}

// Float returns a fractional Number.
func Float(v float64) Number {
	return Number{isFloat: true, f: v}
}

// IsInt reports whether n is integral.
func (n Number) IsInt() bool {
	return !n.isFloat
}

// Int64 returns n as an integer, truncating a fractional value.
func (n Number) Int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

// Float64 returns n as a float.
func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n Number) typeName() string {
	if n.isFloat {
		return "float"
	}
	return "int"
}

// String formats integers in decimal and floats in their shortest
// round-trip form, always with a fractional part or exponent so the two
// kinds stay distinguishable ("2" vs "2.0").
func (n Number) String() string {
	if !n.isFloat {
		return strconv.FormatInt(n.i, 10)
	}
	return formatFloat(n.f)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Binary formats an integer as 0b..., with a leading minus for negatives.
func (n Number) Binary() (string, error) {
	return n.radix(2, "0b", "bin")
}

// Hex formats an integer as 0x..., with a leading minus for negatives.
func (n Number) Hex() (string, error) {
	return n.radix(16, "0x", "hex")
}

func (n Number) radix(base int, prefix, cmd string) (string, error) {
	if n.isFloat {
		return "", newError(TypeError, "%s requires an integer, got float", cmd)
	}
	u := uint64(n.i)
	sign := ""
	if n.i < 0 {
		u = -u
		sign = "-"
	}
	return sign + prefix + strconv.FormatUint(u, base), nil
}
