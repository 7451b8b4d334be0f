package formula

import "math"

// maxCallDepth bounds user-defined function recursion.
const maxCallDepth = 100

// Context holds variable bindings for evaluation. Variables persist across
// evaluations until removed or the context is discarded. A Context is not
// safe for concurrent use, and a := declaration evaluated through one is
// visible to every later evaluation with the same context.
type Context struct {
	vars   map[string]Value
	parent *Context
	calls  int
}

// NewContext creates an evaluation context with the constants pi and e
// predefined.
func NewContext() *Context {
	return &Context{vars: map[string]Value{
		"pi": Number(math.Pi),
		"e":  Number(math.E),
	}}
}

// Set binds a variable. Returns ctx for chaining.
func (ctx *Context) Set(name string, v Value) *Context {
	ctx.vars[name] = v
	return ctx
}

// Lookup finds a variable, searching enclosing call scopes.
func (ctx *Context) Lookup(name string) (Value, bool) {
	for c := ctx; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Delete removes a variable binding from this scope.
func (ctx *Context) Delete(name string) {
	delete(ctx.vars, name)
}

// child creates a call scope. Bindings made in it are discarded when the
// call returns and never leak into the outer context.
func (ctx *Context) child() *Context {
	return &Context{vars: make(map[string]Value), parent: ctx, calls: ctx.calls + 1}
}

// Eval evaluates the expression against a context.
func (e *Expr) Eval(ctx *Context) (Value, error) {
	return evalNode(e.n, ctx)
}

// EvalString is a shortcut to parse and evaluate a formula.
func EvalString(src string, reg *Registry, ctx *Context) (Value, error) {
	e, err := Parse(src, reg)
	if err != nil {
		return Value{}, err
	}
	return e.Eval(ctx)
}

func evalNode(n *node, ctx *Context) (Value, error) {
	switch n.kind {
	case nodeNum, nodeRat, nodePct, nodeBool:
		return n.val, nil
	case nodeName:
		v, ok := ctx.Lookup(n.text)
		if !ok {
			return Value{}, &NameError{Name: n.text}
		}
		return v, nil
	case nodeVector:
		elems := make([]Value, len(n.list))
		for i, c := range n.list {
			v, err := evalNode(c, ctx)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Vector(elems...), nil
	case nodeMatrix:
		rows := make([][]Value, len(n.list))
		for i, rn := range n.list {
			row := make([]Value, len(rn.list))
			for j, c := range rn.list {
				v, err := evalNode(c, ctx)
				if err != nil {
					return Value{}, err
				}
				row[j] = v
			}
			rows[i] = row
		}
		return Matrix(rows...), nil
	case nodeCall:
		args := make([]Value, len(n.list))
		for i, c := range n.list {
			v, err := evalNode(c, ctx)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return n.op.Eval(ctx, args)
	case nodeFuncDef:
		// Defining a function evaluates to a callable value; the
		// registration already happened at parse time.
		return funcValue(n.op), nil
	case nodeAssign:
		v, err := evalNode(n.list[0], ctx)
		if err != nil {
			return Value{}, err
		}
		ctx.Set(n.text, v)
		return v, nil
	default:
		return Value{}, &ArgumentError{Msg: "invalid AST node"}
	}
}

// userRule builds the evaluation rule for a user-defined operator: bind the
// call-site arguments to the parameters in a fresh call scope and evaluate
// the body.
func userRule(op *Operator) EvalRule {
	return func(ctx *Context, args []Value) (Value, error) {
		if ctx.calls >= maxCallDepth {
			return Value{}, &ArgumentError{Op: op.Name(), Msg: "call depth exceeded"}
		}
		c := ctx.child()
		for i, p := range op.params {
			c.vars[p] = args[i]
		}
		return evalNode(op.body, c)
	}
}
