package formula

import (
	"strings"
	"unicode"
)

// EvalRule computes an operator's result from its evaluated operands. Rules
// for built-in operators ignore ctx; rules for user-defined functions use it
// to bind call arguments in a child scope.
type EvalRule func(ctx *Context, args []Value) (Value, error)

// Operator describes one registered operator: its accepted spellings, its
// binding strength, its arity, and how it evaluates.
type Operator struct {
	// Aliases are the accepted spellings, matched case-insensitively. The
	// first alias is the canonical name.
	Aliases []string
	// Prec is the precedence rank. Smaller binds tighter. Collecting an
	// operand for an operator stops at any operator whose rank is not
	// smaller, which makes equal ranks left-associative by construction.
	Prec int
	// Arity is 1 or 2.
	Arity int
	// NAry marks built-ins such as sum and select that take exactly one
	// operand which must evaluate to a vector.
	NAry bool
	// Builtin distinguishes built-ins from user-defined operators. Aliases
	// of built-ins cannot be re-registered.
	Builtin bool
	// Eval is the evaluation rule.
	Eval EvalRule

	// params and body carry a user-defined function's definition, used by
	// the differentiation engine for one-level textual expansion.
	params []string
	body   *node
}

// Name returns the operator's canonical name, its first alias.
func (op *Operator) Name() string {
	return op.Aliases[0]
}

// Registry owns the alias to operator lookup table. Each engine instance
// owns its own Registry; user definitions registered into one are never
// visible through another. A Registry is not safe for concurrent use.
type Registry struct {
	// aliases maps each lower-cased alias to its operator. Every alias maps
	// to exactly one operator at any time.
	aliases map[string]*Operator
	// order records aliases in first-registration order, which breaks ties
	// among equal-length matches during resolution.
	order []string
}

// NewRegistry creates a registry with all built-in operators installed.
func NewRegistry() *Registry {
	r := &Registry{aliases: make(map[string]*Operator)}
	for _, op := range builtins() {
		if err := r.Register(op); err != nil {
			panic("formula: duplicate builtin alias: " + err.Error())
		}
	}
	return r
}

// Clone creates an independent copy of the registry. Registrations into the
// clone are not visible through the original, and vice versa.
func (r *Registry) Clone() *Registry {
	n := &Registry{
		aliases: make(map[string]*Operator, len(r.aliases)),
		order:   append([]string(nil), r.order...),
	}
	for k, v := range r.aliases {
		n.aliases[k] = v
	}
	return n
}

// Register inserts all of an operator's aliases. Re-registering an alias
// owned by a built-in fails; re-registering a user-defined alias replaces
// the prior mapping, last-registered wins.
func (r *Registry) Register(op *Operator) error {
	for _, a := range op.Aliases {
		key := strings.ToLower(a)
		if prev, ok := r.aliases[key]; ok && prev.Builtin {
			return &ArgumentError{Op: a, Msg: "cannot redefine built-in operator"}
		}
	}
	for _, a := range op.Aliases {
		key := strings.ToLower(a)
		if _, ok := r.aliases[key]; !ok {
			r.order = append(r.order, key)
		}
		r.aliases[key] = op
	}
	return nil
}

// Lookup finds the operator registered under an alias.
func (r *Registry) Lookup(alias string) (*Operator, error) {
	op, ok := r.aliases[strings.ToLower(alias)]
	if !ok {
		return nil, &UnknownOperatorError{Name: alias}
	}
	return op, nil
}

// Resolve returns the longest registered alias matching src at pos, along
// with its operator. Ties among equal-length matches go to the alias
// registered first. A word (a maximal run of letters, digits, and
// underscores) only matches whole: "mod" resolves inside "mod y" but not
// inside "mody".
func (r *Registry) Resolve(src []rune, pos int) (alias string, op *Operator, ok bool) {
	if pos >= len(src) {
		return "", nil, false
	}
	if isWordRune(src[pos]) {
		end := pos
		for end < len(src) && isWordRune(src[end]) {
			end++
		}
		word := string(src[pos:end])
		o, found := r.aliases[strings.ToLower(word)]
		if !found {
			return "", nil, false
		}
		return word, o, true
	}
	rest := src[pos:]
	for _, key := range r.order {
		if len(key) <= len(alias) {
			continue
		}
		if matchFold(rest, key) {
			alias = string(rest[:len([]rune(key))])
			op = r.aliases[key]
		}
	}
	return alias, op, op != nil
}

// matchFold reports whether src begins with the alias, case-insensitively.
func matchFold(src []rune, alias string) bool {
	i := 0
	for _, ar := range alias {
		if i >= len(src) {
			return false
		}
		if src[i] != ar && unicode.ToLower(src[i]) != unicode.ToLower(ar) {
			return false
		}
		i++
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
