package formula

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/zephyrtronium/bigfloat"
)

// Kind identifies the variant held by a Value.
type Kind int8

const (
	KindNumber Kind = iota
	KindRational
	KindPercent
	KindVector
	KindMatrix
	KindBool
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindRational:
		return "rational"
	case KindPercent:
		return "percent"
	case KindVector:
		return "vector"
	case KindMatrix:
		return "matrix"
	case KindBool:
		return "boolean"
	case KindFunc:
		return "function"
	default:
		return "invalid"
	}
}

// Value is the result of evaluating an expression. The zero Value is the
// Number 0.
type Value struct {
	kind Kind

	// num holds a Number, or the raw fraction of a Percent (25% is 0.25).
	num float64
	rat *big.Rat
	vec []Value
	mat [][]Value
	b   bool
	fn  *Operator
}

// Number creates a floating-point Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Rational creates an exact rational Value. The result is always reduced.
// Panics if d is zero.
func Rational(n, d int64) Value {
	return Value{kind: KindRational, rat: big.NewRat(n, d)}
}

func ratValue(r *big.Rat) Value {
	return Value{kind: KindRational, rat: r}
}

// Percent creates a percentage Value from percentage points, so Percent(25)
// renders as "25%" and holds the raw fraction 0.25.
func Percent(points float64) Value {
	return Value{kind: KindPercent, num: points / 100}
}

// Vector creates a vector Value.
func Vector(elems ...Value) Value {
	return Value{kind: KindVector, vec: elems}
}

// Matrix creates a matrix Value from its rows.
func Matrix(rows ...[]Value) Value {
	return Value{kind: KindMatrix, mat: rows}
}

// Bool creates a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func funcValue(op *Operator) Value {
	return Value{kind: KindFunc, fn: op}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// Float64 returns the scalar magnitude of v. For a Percent this is the raw
// fraction. The second result is false when v is not a scalar kind.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindNumber, KindPercent:
		return v.num, true
	case KindRational:
		f, _ := v.rat.Float64()
		return f, true
	default:
		return 0, false
	}
}

// Rat returns a copy of the exact rational held by v, or nil if v is not a
// Rational.
func (v Value) Rat() *big.Rat {
	if v.kind != KindRational {
		return nil
	}
	return new(big.Rat).Set(v.rat)
}

// Bool returns the boolean held by v. The second result is false when v is
// not a Boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Elems returns the elements of a Vector, or nil for any other kind.
func (v Value) Elems() []Value {
	if v.kind != KindVector {
		return nil
	}
	return append([]Value(nil), v.vec...)
}

// Rows returns the rows of a Matrix, or nil for any other kind.
func (v Value) Rows() [][]Value {
	if v.kind != KindMatrix {
		return nil
	}
	r := make([][]Value, len(v.mat))
	for i, row := range v.mat {
		r[i] = append([]Value(nil), row...)
	}
	return r
}

// String renders v canonically: Number as decimal, Rational as "n/d",
// Percent as "p%", Vector as "{ v1, v2, ... }", Matrix as a row-major grid
// with one row per line, Boolean as "true"/"false".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindRational:
		if v.rat.IsInt() {
			return v.rat.Num().String()
		}
		return v.rat.RatString()
	case KindPercent:
		return strconv.FormatFloat(v.num*100, 'g', -1, 64) + "%"
	case KindVector:
		var b strings.Builder
		b.WriteString("{ ")
		for i, e := range v.vec {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.String())
		}
		b.WriteString(" }")
		return b.String()
	case KindMatrix:
		var b strings.Builder
		for i, row := range v.mat {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(Value{kind: KindVector, vec: row}.String())
		}
		return b.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindFunc:
		return "<fn " + v.fn.Name() + "/" + strconv.Itoa(v.fn.Arity) + ">"
	default:
		return "<invalid>"
	}
}

// Combine applies one of the arithmetic operators '+', '-', '*', '/', '^' to
// a pair of values, following the promotion table. Every pairwise combination
// of kinds either yields a value of a deterministic kind or fails with an
// explicit error; Combine never panics on value kinds.
func Combine(a Value, op rune, b Value) (Value, error) {
	switch {
	case a.kind == KindFunc || b.kind == KindFunc:
		return Value{}, &ArgumentError{Op: string(op), Msg: "cannot combine function values"}
	case a.kind == KindBool || b.kind == KindBool:
		return Value{}, &ArgumentError{Op: string(op), Msg: "cannot combine boolean values"}
	case a.kind == KindMatrix || b.kind == KindMatrix:
		return combineMatrix(a, op, b)
	case a.kind == KindVector || b.kind == KindVector:
		return combineVector(a, op, b)
	case b.kind == KindPercent:
		return combinePercent(a, op, b)
	case a.kind == KindPercent:
		// Percent on the left of a non-Percent demotes to its raw fraction.
		return Combine(Number(a.num), op, b)
	case a.kind == KindRational && b.kind == KindRational:
		return combineRat(a, op, b)
	default:
		// Number with Number or Rational: the rational demotes.
		x, _ := a.Float64()
		y, _ := b.Float64()
		return combineNumber(x, op, y)
	}
}

// combineNumber is plain IEEE arithmetic. Division by zero is not an error
// here; it propagates infinity or NaN.
func combineNumber(x float64, op rune, y float64) (Value, error) {
	switch op {
	case '+':
		return Number(x + y), nil
	case '-':
		return Number(x - y), nil
	case '*':
		return Number(x * y), nil
	case '/':
		return Number(x / y), nil
	case '^':
		return Number(math.Pow(x, y)), nil
	default:
		return Value{}, &ArgumentError{Op: string(op), Msg: "unknown arithmetic operator"}
	}
}

func combineRat(a Value, op rune, b Value) (Value, error) {
	switch op {
	case '+':
		return ratValue(new(big.Rat).Add(a.rat, b.rat)), nil
	case '-':
		return ratValue(new(big.Rat).Sub(a.rat, b.rat)), nil
	case '*':
		return ratValue(new(big.Rat).Mul(a.rat, b.rat)), nil
	case '/':
		// Unlike Number, dividing a Rational by zero is an error.
		if b.rat.Sign() == 0 {
			return Value{}, &ArgumentError{Op: "/", Msg: "rational division by zero"}
		}
		return ratValue(new(big.Rat).Quo(a.rat, b.rat)), nil
	case '^':
		return ratPow(a.rat, b.rat)
	default:
		return Value{}, &ArgumentError{Op: string(op), Msg: "unknown arithmetic operator"}
	}
}

// ratPow raises a rational to a rational power. Integer exponents stay exact;
// anything else demotes to Number, computed at 128-bit precision before
// rounding.
func ratPow(a, b *big.Rat) (Value, error) {
	if b.IsInt() && b.Num().IsInt64() {
		e := b.Num().Int64()
		neg := e < 0
		if neg {
			if a.Sign() == 0 {
				return Value{}, &ArgumentError{Op: "^", Msg: "zero to a negative power"}
			}
			e = -e
		}
		r := big.NewRat(1, 1)
		p := new(big.Rat).Set(a)
		for ; e > 0; e >>= 1 {
			if e&1 == 1 {
				r.Mul(r, p)
			}
			p.Mul(p, p)
		}
		if neg {
			r.Inv(r)
		}
		return ratValue(r), nil
	}
	x := new(big.Float).SetPrec(128).SetRat(a)
	if x.Signbit() {
		// bigfloat.Pow rejects negative bases; fall back to IEEE semantics.
		xf, _ := a.Float64()
		yf, _ := b.Float64()
		return Number(math.Pow(xf, yf)), nil
	}
	y := new(big.Float).SetPrec(128).SetRat(b)
	z := bigfloat.Pow(new(big.Float).SetPrec(128), x, y)
	f, _ := z.Float64()
	return Number(f), nil
}

// combinePercent applies percentage-of semantics with the Percent on the
// right: add and subtract scale by 1±p, while multiply, divide, and power use
// the raw fraction p. The asymmetry is deliberate source behavior.
func combinePercent(a Value, op rune, b Value) (Value, error) {
	x, _ := a.Float64()
	p := b.num
	var r float64
	switch op {
	case '+':
		r = x * (1 + p)
	case '-':
		r = x * (1 - p)
	case '*':
		r = x * p
	case '/':
		r = x / p
	case '^':
		r = math.Pow(x, p)
	default:
		return Value{}, &ArgumentError{Op: string(op), Msg: "unknown arithmetic operator"}
	}
	if a.kind == KindPercent {
		return Value{kind: KindPercent, num: r}, nil
	}
	// A Rational left operand demotes to Number: p is inherently inexact.
	return Number(r), nil
}

func combineVector(a Value, op rune, b Value) (Value, error) {
	switch {
	case a.kind == KindVector && b.kind == KindVector:
		// Mismatched lengths pad the shorter operand with zeros.
		n := len(a.vec)
		if len(b.vec) > n {
			n = len(b.vec)
		}
		out := make([]Value, n)
		for i := 0; i < n; i++ {
			x, y := Number(0), Number(0)
			if i < len(a.vec) {
				x = a.vec[i]
			}
			if i < len(b.vec) {
				y = b.vec[i]
			}
			r, err := Combine(x, op, y)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Vector(out...), nil
	case a.kind == KindVector:
		out := make([]Value, len(a.vec))
		for i, e := range a.vec {
			r, err := Combine(e, op, b)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Vector(out...), nil
	default:
		out := make([]Value, len(b.vec))
		for i, e := range b.vec {
			r, err := Combine(a, op, e)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Vector(out...), nil
	}
}

// matShape reports the row and column counts of a matrix value, treating
// ragged rows as wide as their longest row.
func matShape(m [][]Value) (rows, cols int) {
	rows = len(m)
	for _, r := range m {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return rows, cols
}

func matAt(m [][]Value, i, j int) Value {
	if i < len(m) && j < len(m[i]) {
		return m[i][j]
	}
	return Number(0)
}

func combineMatrix(a Value, op rune, b Value) (Value, error) {
	if a.kind == KindVector || b.kind == KindVector {
		return Value{}, &ArgumentError{Op: string(op), Msg: "cannot combine vector and matrix"}
	}
	switch {
	case a.kind == KindMatrix && b.kind == KindMatrix:
		if op == '*' {
			return matMul(a.mat, b.mat)
		}
		ar, ac := matShape(a.mat)
		br, bc := matShape(b.mat)
		rows, cols := ar, ac
		if br > rows {
			rows = br
		}
		if bc > cols {
			cols = bc
		}
		out := make([][]Value, rows)
		for i := range out {
			out[i] = make([]Value, cols)
			for j := range out[i] {
				r, err := Combine(matAt(a.mat, i, j), op, matAt(b.mat, i, j))
				if err != nil {
					return Value{}, err
				}
				out[i][j] = r
			}
		}
		return Matrix(out...), nil
	case a.kind == KindMatrix:
		out := make([][]Value, len(a.mat))
		for i, row := range a.mat {
			out[i] = make([]Value, len(row))
			for j, e := range row {
				r, err := Combine(e, op, b)
				if err != nil {
					return Value{}, err
				}
				out[i][j] = r
			}
		}
		return Matrix(out...), nil
	default:
		out := make([][]Value, len(b.mat))
		for i, row := range b.mat {
			out[i] = make([]Value, len(row))
			for j, e := range row {
				r, err := Combine(a, op, e)
				if err != nil {
					return Value{}, err
				}
				out[i][j] = r
			}
		}
		return Matrix(out...), nil
	}
}

// matMul is true matrix multiplication. Both operands must be square with
// equal dimensions.
func matMul(a, b [][]Value) (Value, error) {
	ar, ac := matShape(a)
	br, bc := matShape(b)
	if ar != ac || br != bc || ar != br {
		return Value{}, &DimensionMismatchError{Op: "*", ARows: ar, ACols: ac, BRows: br, BCols: bc}
	}
	n := ar
	out := make([][]Value, n)
	for i := 0; i < n; i++ {
		out[i] = make([]Value, n)
		for j := 0; j < n; j++ {
			acc := Value{}
			for k := 0; k < n; k++ {
				p, err := Combine(matAt(a, i, k), '*', matAt(b, k, j))
				if err != nil {
					return Value{}, err
				}
				if k == 0 {
					acc = p
					continue
				}
				acc, err = Combine(acc, '+', p)
				if err != nil {
					return Value{}, err
				}
			}
			out[i][j] = acc
		}
	}
	return Matrix(out...), nil
}

// negValue negates a value without routing through Combine, so that a
// Percent stays a Percent.
func negValue(v Value) (Value, error) {
	switch v.kind {
	case KindNumber:
		return Number(-v.num), nil
	case KindPercent:
		return Value{kind: KindPercent, num: -v.num}, nil
	case KindRational:
		return ratValue(new(big.Rat).Neg(v.rat)), nil
	case KindVector:
		out := make([]Value, len(v.vec))
		for i, e := range v.vec {
			r, err := negValue(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Vector(out...), nil
	case KindMatrix:
		out := make([][]Value, len(v.mat))
		for i, row := range v.mat {
			out[i] = make([]Value, len(row))
			for j, e := range row {
				r, err := negValue(e)
				if err != nil {
					return Value{}, err
				}
				out[i][j] = r
			}
		}
		return Matrix(out...), nil
	default:
		return Value{}, &ArgumentError{Op: "-", Msg: "cannot negate " + v.kind.String()}
	}
}

// scalarOf reduces a value to a comparable magnitude. A Vector compares as
// the sum of its elements, not pointwise.
func scalarOf(v Value) (float64, error) {
	switch v.kind {
	case KindNumber, KindRational, KindPercent:
		f, _ := v.Float64()
		return f, nil
	case KindVector:
		sum := 0.0
		for _, e := range v.vec {
			f, err := scalarOf(e)
			if err != nil {
				return 0, err
			}
			sum += f
		}
		return sum, nil
	default:
		return 0, &ArgumentError{Msg: "cannot compare " + v.kind.String()}
	}
}
