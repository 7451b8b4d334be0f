package formula_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ashkell/formula"
)

func num(f float64) formula.Value { return formula.Number(f) }

func vec(fs ...float64) formula.Value {
	elems := make([]formula.Value, len(fs))
	for i, f := range fs {
		elems[i] = formula.Number(f)
	}
	return formula.Vector(elems...)
}

func mat(rows ...[]float64) formula.Value {
	vr := make([][]formula.Value, len(rows))
	for i, row := range rows {
		vr[i] = make([]formula.Value, len(row))
		for j, f := range row {
			vr[i][j] = formula.Number(f)
		}
	}
	return formula.Matrix(vr...)
}

// TestCombineKinds checks that every ordered pair of the seven value kinds
// under every arithmetic operator either produces a value of the expected
// kind or fails with an explicit error.
func TestCombineKinds(t *testing.T) {
	fn, err := formula.EvalString("id(t) := t", formula.NewRegistry(), formula.NewContext())
	if err != nil {
		t.Fatal("failed to build a function value:", err)
	}
	samples := map[byte]formula.Value{
		'N': num(6),
		'R': formula.Rational(3, 2),
		'P': formula.Percent(50),
		'V': vec(1, 2),
		'M': mat([]float64{1, 2}, []float64{3, 4}),
		'B': formula.Bool(true),
		'F': fn,
	}
	kinds := map[byte]formula.Kind{
		'N': formula.KindNumber,
		'R': formula.KindRational,
		'P': formula.KindPercent,
		'V': formula.KindVector,
		'M': formula.KindMatrix,
		'B': formula.KindBool,
		'F': formula.KindFunc,
	}
	const order = "NRPVMBF"
	// Result kind per left kind, one column per right kind; 'e' is an error.
	table := map[byte]string{
		'N': "NNNVMee",
		'R': "NRNVMee",
		'P': "NNPVMee",
		'V': "VVVVeee",
		'M': "MMMeMee",
		'B': "eeeeeee",
		'F': "eeeeeee",
	}
	for _, op := range "+-*/^" {
		for i := 0; i < len(order); i++ {
			for j := 0; j < len(order); j++ {
				a, b := order[i], order[j]
				want := table[a][j]
				if op == '^' && a == 'R' && b == 'R' {
					// A non-integer rational exponent demotes to Number.
					want = 'N'
				}
				name := fmt.Sprintf("%c%c%c", a, op, b)
				t.Run(name, func(t *testing.T) {
					r, err := formula.Combine(samples[a], op, samples[b])
					if want == 'e' {
						if err == nil {
							t.Errorf("combined to %v (%v), want error", r, r.Kind())
						}
						return
					}
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					if r.Kind() != kinds[want] {
						t.Errorf("got kind %v, want %v", r.Kind(), kinds[want])
					}
				})
			}
		}
	}
}

func TestPercentArithmetic(t *testing.T) {
	cases := []struct {
		name string
		a    formula.Value
		op   rune
		b    formula.Value
		want string
	}{
		{"add", num(200), '+', formula.Percent(25), "250"},
		{"sub", num(200), '-', formula.Percent(25), "150"},
		{"mul", num(200), '*', formula.Percent(25), "50"},
		{"div", num(200), '/', formula.Percent(50), "400"},
		{"pow", num(2), '^', formula.Percent(100), "2"},
		{"pct-add-pct", formula.Percent(10), '+', formula.Percent(100), "20%"},
		{"pct-mul-pct", formula.Percent(50), '*', formula.Percent(50), "25%"},
		{"pct-left-demotes", formula.Percent(50), '+', num(1), "1.5"},
		{"rat-demotes", formula.Rational(1, 2), '*', formula.Percent(50), "0.25"},
		{"vector-scales", vec(100, 200), '-', formula.Percent(10), "{ 90, 180 }"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := formula.Combine(c.a, c.op, c.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.String() != c.want {
				t.Errorf("got %v, want %v", r, c.want)
			}
		})
	}
}

func TestRationalArithmetic(t *testing.T) {
	cases := []struct {
		name string
		a    formula.Value
		op   rune
		b    formula.Value
		want string
		kind formula.Kind
	}{
		{"add", formula.Rational(1, 8), '+', formula.Rational(3, 8), "1/2", formula.KindRational},
		{"sub", formula.Rational(1, 2), '-', formula.Rational(1, 3), "1/6", formula.KindRational},
		{"mul", formula.Rational(2, 3), '*', formula.Rational(3, 4), "1/2", formula.KindRational},
		{"div", formula.Rational(1, 2), '/', formula.Rational(3, 2), "1/3", formula.KindRational},
		{"pow-int", formula.Rational(2, 3), '^', formula.Rational(2, 1), "4/9", formula.KindRational},
		{"pow-neg", formula.Rational(2, 1), '^', formula.Rational(-2, 1), "1/4", formula.KindRational},
		{"pow-frac", formula.Rational(4, 1), '^', formula.Rational(1, 2), "2", formula.KindNumber},
		{"mixed-demotes", formula.Rational(1, 2), '+', num(1), "1.5", formula.KindNumber},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := formula.Combine(c.a, c.op, c.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Kind() != c.kind {
				t.Errorf("got kind %v, want %v", r.Kind(), c.kind)
			}
			if r.String() != c.want {
				t.Errorf("got %v, want %v", r, c.want)
			}
		})
	}
}

// TestDivisionByZero checks the divergence between the float and rational
// towers: floats follow IEEE 754, rationals refuse.
func TestDivisionByZero(t *testing.T) {
	r, err := formula.Combine(num(1), '/', num(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := r.Float64(); !math.IsInf(f, 1) {
		t.Errorf("1/0 = %v, want +Inf", r)
	}
	r, err = formula.Combine(num(0), '/', num(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := r.Float64(); !math.IsNaN(f) {
		t.Errorf("0/0 = %v, want NaN", r)
	}
	_, err = formula.Combine(formula.Rational(1, 2), '/', formula.Rational(0, 1))
	var argErr *formula.ArgumentError
	if !errors.As(err, &argErr) {
		t.Errorf("rational division by zero: got %v, want ArgumentError", err)
	}
}

func TestVectorPadding(t *testing.T) {
	cases := []struct {
		name string
		a, b formula.Value
		op   rune
		want string
	}{
		{"longer-left", vec(1, 2, 3), vec(10, 20), '+', "{ 11, 22, 3 }"},
		{"longer-right", vec(1), vec(5, 5), '-', "{ -4, -5 }"},
		{"equal", vec(1, 2), vec(3, 4), '*', "{ 3, 8 }"},
		{"broadcast-right", vec(1, 2, 3), num(5), '+', "{ 6, 7, 8 }"},
		{"broadcast-left", num(10), vec(1, 2), '-', "{ 9, 8 }"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := formula.Combine(c.a, c.op, c.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.String() != c.want {
				t.Errorf("got %v, want %v", r, c.want)
			}
		})
	}
}

func TestMatrixArithmetic(t *testing.T) {
	a := mat([]float64{1, 2}, []float64{3, 4})
	b := mat([]float64{5, 6}, []float64{7, 8})
	r, err := formula.Combine(a, '*', b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "{ 19, 22 }\n{ 43, 50 }"; r.String() != want {
		t.Errorf("got %v, want %v", r, want)
	}
	r, err = formula.Combine(a, '+', b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "{ 6, 8 }\n{ 10, 12 }"; r.String() != want {
		t.Errorf("got %v, want %v", r, want)
	}
	r, err = formula.Combine(a, '-', num(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "{ 0, 1 }\n{ 2, 3 }"; r.String() != want {
		t.Errorf("got %v, want %v", r, want)
	}
}

func TestMatrixMulDimensions(t *testing.T) {
	a := mat([]float64{1, 2}, []float64{3, 4})
	b := mat([]float64{1, 2})
	_, err := formula.Combine(a, '*', b)
	var dimErr *formula.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("got %v, want DimensionMismatchError", err)
	}
	if dimErr.ARows != 2 || dimErr.ACols != 2 || dimErr.BRows != 1 || dimErr.BCols != 2 {
		t.Errorf("shapes %dx%d and %dx%d, want 2x2 and 1x2",
			dimErr.ARows, dimErr.ACols, dimErr.BRows, dimErr.BCols)
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		name string
		v    formula.Value
		want string
	}{
		{"zero", formula.Value{}, "0"},
		{"number", num(3.5), "3.5"},
		{"rational", formula.Rational(1, 2), "1/2"},
		{"rational-int", formula.Rational(4, 2), "2"},
		{"rational-neg", formula.Rational(-3, 9), "-1/3"},
		{"percent", formula.Percent(25), "25%"},
		{"vector", vec(1, 2, 3), "{ 1, 2, 3 }"},
		{"matrix", mat([]float64{1, 2}, []float64{3, 4}), "{ 1, 2 }\n{ 3, 4 }"},
		{"bool", formula.Bool(true), "true"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.String(); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}
