package formula

import "strconv"

// The differentiation engine works textually: the tree is linearized into a
// flat item list, per-operator rules emit derivative strings, the combined
// string is simplified to a fixpoint, and the result is re-parsed through
// the same registry. The round trip through text is deliberate.

// diffItem is one element of a linearized expression: a leaf token or an
// operator marker referencing its operand items.
type diffItem struct {
	kind nodeKind
	// text is the canonical rendering of this item's whole subexpression.
	text string
	op   *Operator
	args []int
}

// Diff symbolically differentiates the expression with respect to a
// variable. The result is the re-parsed derivative together with its
// simplified text. Operators without an entry in the derivative rule table
// fail with UnsupportedOperatorError.
func (e *Expr) Diff(variable string) (*Expr, string, error) {
	var items []diffItem
	root, err := linearize(e.n, &items)
	if err != nil {
		return nil, "", err
	}
	d := &differ{items: items, v: variable, reg: e.reg}
	s, err := d.derive(root)
	if err != nil {
		return nil, "", err
	}
	s = Simplify(s)
	ne, err := Parse(s, e.reg)
	if err != nil {
		return nil, "", err
	}
	return ne, s, nil
}

// linearize flattens a tree into items, children before parents, and
// returns the root's index. Structural flattening only; nothing is
// evaluated.
func linearize(n *node, items *[]diffItem) (int, error) {
	it := diffItem{kind: n.kind, text: n.exprString(), op: n.op}
	switch n.kind {
	case nodeNum, nodeRat, nodePct, nodeName:
		// leaves
	case nodeCall:
		for _, c := range n.list {
			k, err := linearize(c, items)
			if err != nil {
				return 0, err
			}
			it.args = append(it.args, k)
		}
	case nodeVector:
		return 0, &UnsupportedOperatorError{Name: "vector literal"}
	case nodeMatrix:
		return 0, &UnsupportedOperatorError{Name: "matrix literal"}
	case nodeBool:
		return 0, &UnsupportedOperatorError{Name: "boolean literal"}
	default:
		return 0, &UnsupportedOperatorError{Name: "declaration"}
	}
	*items = append(*items, it)
	return len(*items) - 1, nil
}

type differ struct {
	items []diffItem
	v     string
	reg   *Registry
	// expanded marks a differ running over the one-level textual expansion
	// of a user-defined function; user calls are not expanded again.
	expanded bool
}

func (d *differ) derive(i int) (string, error) {
	it := d.items[i]
	switch it.kind {
	case nodeNum, nodeRat, nodePct:
		return "0", nil
	case nodeName:
		switch it.text {
		case d.v:
			return "1", nil
		case "pi", "e":
			return "0", nil
		}
		// Any other bare identifier stays as an unresolved marker.
		return "d" + it.text + "/d" + d.v, nil
	}
	if it.op.body != nil {
		return d.deriveUser(it)
	}
	if len(it.args) == 1 {
		return d.deriveUnary(it)
	}
	return d.deriveBinary(it)
}

func (d *differ) deriveUnary(it diffItem) (string, error) {
	du, err := d.derive(it.args[0])
	if err != nil {
		return "", err
	}
	name := it.op.Name()
	if name == "neg" {
		switch du {
		case "0":
			return "0", nil
		case "1":
			return "-1", nil
		}
		return "-" + paren(du), nil
	}
	rule, ok := derivTable[name]
	if !ok {
		return "", &UnsupportedOperatorError{Name: name}
	}
	if du == "0" {
		return "0", nil
	}
	return rule(d.items[it.args[0]].text, du), nil
}

func (d *differ) deriveBinary(it diffItem) (string, error) {
	u := d.items[it.args[0]].text
	v := d.items[it.args[1]].text
	du, err := d.derive(it.args[0])
	if err != nil {
		return "", err
	}
	dv, err := d.derive(it.args[1])
	if err != nil {
		return "", err
	}
	switch it.op.Name() {
	case "+":
		switch {
		case du == "0" && dv == "0":
			return "0", nil
		case du == "0":
			return dv, nil
		case dv == "0":
			return du, nil
		}
		return du + "+" + dv, nil
	case "-":
		switch {
		case du == "0" && dv == "0":
			return "0", nil
		case du == "0":
			return "-" + paren(dv), nil
		case dv == "0":
			return du, nil
		}
		return du + "-" + paren(dv), nil
	case "*":
		switch {
		case du == "0" && dv == "0":
			return "0", nil
		case du == "0":
			return paren(u) + "*" + paren(dv), nil
		case dv == "0":
			return paren(du) + "*" + paren(v), nil
		}
		return paren(u) + "*" + paren(dv) + "+" + paren(du) + "*" + paren(v), nil
	case "/":
		switch {
		case du == "0" && dv == "0":
			return "0", nil
		case dv == "0":
			return paren(du) + "/" + paren(v), nil
		case du == "0":
			return "-" + paren(u) + "*" + paren(dv) + "/" + paren(v) + "^2", nil
		}
		return "(" + paren(du) + "*" + paren(v) + "-" + paren(u) + "*" + paren(dv) + ")/" + paren(v) + "^2", nil
	case "^":
		switch {
		case du == "0" && dv == "0":
			return "0", nil
		case dv == "0":
			// power rule: v*u^(v-1)*du
			exp := "(" + v + "-1)"
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				exp = strconv.FormatFloat(f-1, 'g', -1, 64)
			}
			return paren(v) + "*" + paren(u) + "^" + exp + "*" + paren(du), nil
		case du == "0":
			// exponential rule: dv*u^v*ln(u), ln omitted for base e
			r := paren(dv) + "*" + paren(u) + "^" + paren(v)
			if u != "e" {
				r += "*ln(" + u + ")"
			}
			return r, nil
		}
		return paren(v) + "*" + paren(u) + "^(" + v + "-1)*" + paren(du) +
			"+" + paren(u) + "^" + paren(v) + "*ln(" + u + ")*" + paren(dv), nil
	default:
		return "", &UnsupportedOperatorError{Name: it.op.Name()}
	}
}

// deriveUser differentiates a call to a user-defined operator by
// substituting the argument texts into the body's canonical text, exactly
// once. User calls remaining after that expansion are not expanded further.
func (d *differ) deriveUser(it diffItem) (string, error) {
	if d.expanded {
		return "", &UnsupportedOperatorError{Name: it.op.Name()}
	}
	body := it.op.body.exprString()
	for k, p := range it.op.params {
		body = substWord(body, p, "("+d.items[it.args[k]].text+")")
	}
	e, err := Parse(body, d.reg)
	if err != nil {
		return "", err
	}
	var items []diffItem
	root, err := linearize(e.n, &items)
	if err != nil {
		return "", err
	}
	sub := &differ{items: items, v: d.v, reg: d.reg, expanded: true}
	return sub.derive(root)
}

// derivTable maps a unary function name to its chain-rule template over the
// inner expression u and its derivative du.
var derivTable = map[string]func(u, du string) string{
	"sin":   func(u, du string) string { return "cos(" + u + ")*" + paren(du) },
	"cos":   func(u, du string) string { return "-sin(" + u + ")*" + paren(du) },
	"tan":   func(u, du string) string { return paren(du) + "/cos(" + u + ")^2" },
	"ln":    func(u, du string) string { return paren(du) + "/" + paren(u) },
	"log10": func(u, du string) string { return paren(du) + "/(" + u + "*ln(10))" },
	"exp":   func(u, du string) string { return "exp(" + u + ")*" + paren(du) },
	"sqrt":  func(u, du string) string { return paren(du) + "/(2*sqrt(" + u + "))" },
	"abs":   func(u, du string) string { return "sign(" + u + ")*" + paren(du) },
	"sign":  func(u, du string) string { return "0" },
	"asin":  func(u, du string) string { return paren(du) + "/sqrt(1-" + paren(u) + "^2)" },
	"acos":  func(u, du string) string { return "-" + paren(du) + "/sqrt(1-" + paren(u) + "^2)" },
	"atan":  func(u, du string) string { return paren(du) + "/(1+" + paren(u) + "^2)" },
	"sinh":  func(u, du string) string { return "cosh(" + u + ")*" + paren(du) },
	"cosh":  func(u, du string) string { return "sinh(" + u + ")*" + paren(du) },
	"tanh":  func(u, du string) string { return paren(du) + "/cosh(" + u + ")^2" },
	"asinh": func(u, du string) string { return paren(du) + "/sqrt(" + paren(u) + "^2+1)" },
	"acosh": func(u, du string) string { return paren(du) + "/sqrt(" + paren(u) + "^2-1)" },
	"atanh": func(u, du string) string { return paren(du) + "/(1-" + paren(u) + "^2)" },
}

// paren wraps a fragment unless it is already self-delimiting.
func paren(s string) string {
	if atomicToken(s) {
		return s
	}
	if len(s) >= 2 && s[0] == '(' && matchParen(s, 0) == len(s)-1 {
		return s
	}
	return "(" + s + ")"
}

// substWord replaces whole-word occurrences of name in s.
func substWord(s, name, repl string) string {
	var out []byte
	for i := 0; i < len(s); {
		if s[i] == byte(name[0]) && i+len(name) <= len(s) && s[i:i+len(name)] == name {
			before := i == 0 || !isWordRune(rune(s[i-1]))
			after := i+len(name) == len(s) || !isWordRune(rune(s[i+len(name)]))
			if before && after {
				out = append(out, repl...)
				i += len(name)
				continue
			}
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}
