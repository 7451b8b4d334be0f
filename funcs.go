package formula

import (
	"math"
	"strconv"
)

// builtins returns the operator set installed into every new registry.
func builtins() []*Operator {
	ops := []*Operator{
		{Aliases: []string{"^", "pow"}, Prec: PrecPow, Arity: 2, Builtin: true, Eval: arith('^')},

		{Aliases: []string{"neg"}, Prec: PrecUnary, Arity: 1, Builtin: true, Eval: negRule},
		{Aliases: []string{"not"}, Prec: PrecUnary, Arity: 1, Builtin: true, Eval: notRule},

		{Aliases: []string{"*", "times", "mul"}, Prec: PrecMulDiv, Arity: 2, Builtin: true, Eval: arith('*')},
		{Aliases: []string{"/", "div"}, Prec: PrecMulDiv, Arity: 2, Builtin: true, Eval: arith('/')},
		{Aliases: []string{"mod", "m"}, Prec: PrecMulDiv, Arity: 2, Builtin: true, Eval: modRule},

		{Aliases: []string{"+", "add", "plus"}, Prec: PrecAddSub, Arity: 2, Builtin: true, Eval: arith('+')},
		{Aliases: []string{"-", "sub", "minus"}, Prec: PrecAddSub, Arity: 2, Builtin: true, Eval: arith('-')},

		{Aliases: []string{"%of"}, Prec: PrecPctOf, Arity: 2, Builtin: true, Eval: pctOfRule},

		{Aliases: []string{"<"}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: compare(func(c int) bool { return c < 0 })},
		{Aliases: []string{"<="}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: compare(func(c int) bool { return c <= 0 })},
		{Aliases: []string{">"}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: compare(func(c int) bool { return c > 0 })},
		{Aliases: []string{">="}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: compare(func(c int) bool { return c >= 0 })},
		{Aliases: []string{"=="}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: equal(false)},
		{Aliases: []string{"!="}, Prec: PrecCmp, Arity: 2, Builtin: true, Eval: equal(true)},

		{Aliases: []string{"and"}, Prec: PrecLogic, Arity: 2, Builtin: true, Eval: logic(func(a, b bool) bool { return a && b })},
		{Aliases: []string{"or"}, Prec: PrecLogic, Arity: 2, Builtin: true, Eval: logic(func(a, b bool) bool { return a || b })},
		{Aliases: []string{"xor"}, Prec: PrecLogic, Arity: 2, Builtin: true, Eval: logic(func(a, b bool) bool { return a != b })},

		{Aliases: []string{"sum"}, Prec: PrecUnary, Arity: 1, NAry: true, Builtin: true, Eval: sumRule},
		{Aliases: []string{"avg"}, Prec: PrecUnary, Arity: 1, NAry: true, Builtin: true, Eval: avgRule},
		{Aliases: []string{"min"}, Prec: PrecUnary, Arity: 1, NAry: true, Builtin: true, Eval: extremum(func(c int) bool { return c < 0 })},
		{Aliases: []string{"max"}, Prec: PrecUnary, Arity: 1, NAry: true, Builtin: true, Eval: extremum(func(c int) bool { return c > 0 })},
		{Aliases: []string{"select"}, Prec: PrecUnary, Arity: 1, NAry: true, Builtin: true, Eval: selectRule},
	}
	for name, f := range mathFuncs {
		ops = append(ops, &Operator{
			Aliases: []string{name},
			Prec:    PrecUnary,
			Arity:   1,
			Builtin: true,
			Eval:    mapScalar(name, f),
		})
	}
	return ops
}

var mathFuncs = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"asinh": math.Asinh,
	"acosh": math.Acosh,
	"atanh": math.Atanh,
	"ln":    math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"sign": func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	},
}

func arith(op rune) EvalRule {
	return func(_ *Context, args []Value) (Value, error) {
		return Combine(args[0], op, args[1])
	}
}

func negRule(_ *Context, args []Value) (Value, error) {
	return negValue(args[0])
}

func notRule(_ *Context, args []Value) (Value, error) {
	b, ok := args[0].Bool()
	if !ok {
		return Value{}, &ArgumentError{Op: "not", Msg: "operand is not a boolean"}
	}
	return Bool(!b), nil
}

func modRule(_ *Context, args []Value) (Value, error) {
	x, okx := args[0].Float64()
	y, oky := args[1].Float64()
	if !okx || !oky {
		return Value{}, &ArgumentError{Op: "mod", Msg: "operands must be scalar"}
	}
	return Number(math.Mod(x, y)), nil
}

// pctOfRule implements "a %of b": the left operand is read as percentage
// points (or as its raw fraction when it is already a Percent) and applied
// to the right operand, broadcasting over vectors and matrices.
func pctOfRule(_ *Context, args []Value) (Value, error) {
	a, b := args[0], args[1]
	var p float64
	switch a.Kind() {
	case KindPercent:
		p, _ = a.Float64()
	case KindNumber, KindRational:
		f, _ := a.Float64()
		p = f / 100
	default:
		return Value{}, &ArgumentError{Op: "%of", Msg: "left operand must be scalar"}
	}
	return Combine(Number(p), '*', b)
}

// compare builds a comparison rule. Operands reduce through scalarOf, so a
// vector compares as the sum of its elements.
func compare(ok func(cmp int) bool) EvalRule {
	return func(_ *Context, args []Value) (Value, error) {
		x, err := scalarOf(args[0])
		if err != nil {
			return Value{}, err
		}
		y, err := scalarOf(args[1])
		if err != nil {
			return Value{}, err
		}
		c := 0
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
		return Bool(ok(c)), nil
	}
}

func equal(negate bool) EvalRule {
	return func(_ *Context, args []Value) (Value, error) {
		a, b := args[0], args[1]
		if a.Kind() == KindBool && b.Kind() == KindBool {
			return Bool((a.b == b.b) != negate), nil
		}
		x, err := scalarOf(a)
		if err != nil {
			return Value{}, err
		}
		y, err := scalarOf(b)
		if err != nil {
			return Value{}, err
		}
		return Bool((x == y) != negate), nil
	}
}

func logic(f func(a, b bool) bool) EvalRule {
	return func(_ *Context, args []Value) (Value, error) {
		a, oka := args[0].Bool()
		b, okb := args[1].Bool()
		if !oka || !okb {
			return Value{}, &ArgumentError{Msg: "logical operand is not a boolean"}
		}
		return Bool(f(a, b)), nil
	}
}

// mapScalar lifts a float function over scalars, vectors, and matrices.
func mapScalar(name string, f func(float64) float64) EvalRule {
	var apply func(v Value) (Value, error)
	apply = func(v Value) (Value, error) {
		switch v.Kind() {
		case KindNumber, KindRational, KindPercent:
			x, _ := v.Float64()
			return Number(f(x)), nil
		case KindVector:
			out := make([]Value, len(v.vec))
			for i, e := range v.vec {
				r, err := apply(e)
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
					r, err := apply(e)
					if err != nil {
						return Value{}, err
					}
					out[i][j] = r
				}
			}
			return Matrix(out...), nil
		default:
			return Value{}, &ArgumentError{Op: name, Msg: "operand is not numeric"}
		}
	}
	return func(_ *Context, args []Value) (Value, error) {
		return apply(args[0])
	}
}

// vectorArg checks the single operand of an n-ary builtin.
func vectorArg(name string, v Value) ([]Value, error) {
	if v.Kind() != KindVector {
		return nil, &ArgumentError{Op: name, Msg: "operand must be a vector"}
	}
	return v.vec, nil
}

func sumRule(_ *Context, args []Value) (Value, error) {
	elems, err := vectorArg("sum", args[0])
	if err != nil {
		return Value{}, err
	}
	acc := Number(0)
	for i, e := range elems {
		if i == 0 {
			acc = e
			continue
		}
		acc, err = Combine(acc, '+', e)
		if err != nil {
			return Value{}, err
		}
	}
	return acc, nil
}

func avgRule(ctx *Context, args []Value) (Value, error) {
	elems, err := vectorArg("avg", args[0])
	if err != nil {
		return Value{}, err
	}
	if len(elems) == 0 {
		return Value{}, &ArgumentError{Op: "avg", Msg: "empty vector"}
	}
	s, err := sumRule(ctx, args)
	if err != nil {
		return Value{}, err
	}
	return Combine(s, '/', Number(float64(len(elems))))
}

func extremum(better func(cmp int) bool) EvalRule {
	return func(_ *Context, args []Value) (Value, error) {
		elems, err := vectorArg("extremum", args[0])
		if err != nil {
			return Value{}, err
		}
		if len(elems) == 0 {
			return Value{}, &ArgumentError{Msg: "empty vector"}
		}
		best := elems[0]
		bx, err := scalarOf(best)
		if err != nil {
			return Value{}, err
		}
		for _, e := range elems[1:] {
			x, err := scalarOf(e)
			if err != nil {
				return Value{}, err
			}
			c := 0
			switch {
			case x < bx:
				c = -1
			case x > bx:
				c = 1
			}
			if better(c) {
				best, bx = e, x
			}
		}
		return best, nil
	}
}

// selectRule picks the k-th (1-based) of the remaining elements, where k is
// the vector's first element.
func selectRule(_ *Context, args []Value) (Value, error) {
	elems, err := vectorArg("select", args[0])
	if err != nil {
		return Value{}, err
	}
	if len(elems) < 2 {
		return Value{}, &ArgumentError{Op: "select", Msg: "need an index and at least one choice"}
	}
	f, err := scalarOf(elems[0])
	if err != nil {
		return Value{}, err
	}
	k := int(f)
	if float64(k) != f || k < 1 || k > len(elems)-1 {
		return Value{}, &ArgumentError{Op: "select", Msg: "index " + strconv.FormatFloat(f, 'g', -1, 64) + " out of range"}
	}
	return elems[k], nil
}
