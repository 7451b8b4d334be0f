package formula_test

import (
	"testing"

	"github.com/ashkell/formula"
)

// FuzzParse checks that anything that parses renders to a canonical form
// that parses again to the same canonical form. The differentiation engine
// relies on that round trip.
func FuzzParse(f *testing.F) {
	f.Add("4+3")
	f.Add("1/8 + 3/8")
	f.Add("{1, 2, 3}+5")
	f.Add("[{1,2},{3,4}]")
	f.Add("sin x")
	f.Add("sum {1,2,3}")
	f.Add("25 %of 200")
	f.Add("25% * 2")
	f.Add("-x^2")
	f.Add("f(x) := x^2+1")
	f.Add("a := 4")
	f.Add("a<=b or c>d")
	f.Fuzz(func(t *testing.T, s string) {
		reg := formula.NewRegistry()
		e, err := formula.Parse(s, reg)
		if err != nil {
			return
		}
		canon := e.String()
		e2, err := formula.Parse(canon, reg)
		if err != nil {
			t.Fatalf("canonical form %q of %q does not re-parse: %v", canon, s, err)
		}
		if again := e2.String(); again != canon {
			t.Errorf("canonical form is not stable: %q re-rendered as %q", canon, again)
		}
	})
}

// FuzzDiff checks that differentiation either fails cleanly or produces
// simplified text that is a rewrite fixpoint.
func FuzzDiff(f *testing.F) {
	f.Add("x^2 + 8*x + 12")
	f.Add("sin(x)/x")
	f.Add("e^x")
	f.Add("sqrt(x+1)")
	f.Add("x*y-2")
	f.Add("ln(x)^2")
	f.Fuzz(func(t *testing.T, s string) {
		reg := formula.NewRegistry()
		e, err := formula.Parse(s, reg)
		if err != nil {
			return
		}
		de, text, err := e.Diff("x")
		if err != nil {
			return
		}
		if de == nil {
			t.Fatalf("d/dx %q: nil expression without error", s)
		}
		if again := formula.Simplify(text); again != text {
			t.Errorf("d/dx %q = %q, which simplifies further to %q", s, text, again)
		}
	})
}

// FuzzSimplify checks termination and fixpoint stability of the rewriter on
// arbitrary strings, parseable or not.
func FuzzSimplify(f *testing.F) {
	f.Add("2*x^1*1+8*1")
	f.Add("((x))")
	f.Add("x+-y")
	f.Add("(((((1*1*1)))))")
	f.Add("-----1")
	f.Fuzz(func(t *testing.T, s string) {
		r := formula.Simplify(s)
		if again := formula.Simplify(r); again != r {
			t.Errorf("Simplify(%q) = %q, not a fixpoint: %q", s, r, again)
		}
	})
}
