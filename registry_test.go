package formula_test

import (
	"errors"
	"testing"

	"github.com/ashkell/formula"
)

func TestLookup(t *testing.T) {
	reg := formula.NewRegistry()
	op, err := reg.Lookup("sin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Name() != "sin" || op.Arity != 1 {
		t.Errorf("got %v/%d, want sin/1", op.Name(), op.Arity)
	}
	// Aliases are case-insensitive, and each resolves to its operator.
	for _, alias := range []string{"SIN", "Pow", "times", "M", "%of"} {
		if _, err := reg.Lookup(alias); err != nil {
			t.Errorf("Lookup(%q): %v", alias, err)
		}
	}
	_, err = reg.Lookup("nope")
	var unkErr *formula.UnknownOperatorError
	if !errors.As(err, &unkErr) {
		t.Errorf("got %v, want UnknownOperatorError", err)
	}
}

func TestRegisterBinaryOperator(t *testing.T) {
	reg := formula.NewRegistry()
	ctx := formula.NewContext()
	avg2 := &formula.Operator{
		Aliases: []string{"@"},
		Prec:    formula.PrecMulDiv,
		Arity:   2,
		Eval: func(_ *formula.Context, args []formula.Value) (formula.Value, error) {
			s, err := formula.Combine(args[0], '+', args[1])
			if err != nil {
				return formula.Value{}, err
			}
			return formula.Combine(s, '/', formula.Number(2))
		},
	}
	if err := reg.Register(avg2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := formula.EvalString("4 @ 8", reg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "6" {
		t.Errorf("4 @ 8 = %v, want 6", r)
	}
	// Custom operators respect precedence: @ binds like * here.
	r, err = formula.EvalString("1 + 4 @ 8", reg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "7" {
		t.Errorf("1 + 4 @ 8 = %v, want 7", r)
	}
}

// TestResolveLongestAlias checks that resolution takes the longest registered
// alias at a position, independent of registration order.
func TestResolveLongestAlias(t *testing.T) {
	mk := func(alias string, f float64) *formula.Operator {
		return &formula.Operator{
			Aliases: []string{alias},
			Prec:    formula.PrecMulDiv,
			Arity:   2,
			Eval: func(_ *formula.Context, _ []formula.Value) (formula.Value, error) {
				return formula.Number(f), nil
			},
		}
	}
	orders := [][]*formula.Operator{
		{mk("@", 1), mk("@@", 2)},
		{mk("@@", 2), mk("@", 1)},
	}
	for _, ops := range orders {
		reg := formula.NewRegistry()
		for _, op := range ops {
			if err := reg.Register(op); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		ctx := formula.NewContext()
		r, err := formula.EvalString("1 @@ 2", reg, ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.String() != "2" {
			t.Errorf("1 @@ 2 = %v, want the two-rune operator", r)
		}
		r, err = formula.EvalString("1 @ 2", reg, ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.String() != "1" {
			t.Errorf("1 @ 2 = %v, want the one-rune operator", r)
		}
	}
}

// TestResolveWordWhole checks that word aliases only match complete words.
func TestResolveWordWhole(t *testing.T) {
	reg := formula.NewRegistry()
	ctx := formula.NewContext()
	r, err := formula.EvalString("10 mod 3", reg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "1" {
		t.Errorf("10 mod 3 = %v, want 1", r)
	}
	r, err = formula.EvalString("10 m 3", reg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "1" {
		t.Errorf("10 m 3 = %v, want 1", r)
	}
	if _, err := formula.EvalString("10 mody 3", reg, ctx); err == nil {
		t.Error("10 mody 3 parsed, want error")
	}
}

func TestRegisterBuiltinCollision(t *testing.T) {
	reg := formula.NewRegistry()
	err := reg.Register(&formula.Operator{
		Aliases: []string{"shadow", "+"},
		Prec:    formula.PrecAddSub,
		Arity:   2,
	})
	if err == nil {
		t.Fatal("re-registering \"+\" succeeded, want error")
	}
	// The failed registration must not have claimed any alias.
	if _, err := reg.Lookup("shadow"); err == nil {
		t.Error("alias from a rejected registration is resolvable")
	}
}

func TestUserAliasReplacement(t *testing.T) {
	reg := formula.NewRegistry()
	ctx := formula.NewContext()
	for _, src := range []string{"f(x) := x+1", "f(x) := x*10"} {
		if _, err := formula.Parse(src, reg); err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
	}
	r, err := formula.EvalString("f(2)", reg, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.String() != "20" {
		t.Errorf("f(2) = %v, want the later definition's 20", r)
	}
}

func TestCloneIsolation(t *testing.T) {
	reg := formula.NewRegistry()
	clone := reg.Clone()
	if _, err := formula.Parse("f(x) := x*2", clone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := formula.Parse("f(3)", clone); err != nil {
		t.Errorf("f is not resolvable through the clone: %v", err)
	}
	if _, err := formula.Parse("f(3)", reg); err == nil {
		t.Error("definition in the clone leaked into the original")
	}
}
