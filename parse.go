package formula

import (
	"math/big"
	"strconv"
	"strings"
)

// Expr is a parsed formula that can be evaluated with a context or
// symbolically differentiated. It is immutable after parsing.
type Expr struct {
	// n is the root node of the expression.
	n *node
	// reg is the registry the expression was parsed against.
	reg *Registry
}

// node is a node in the abstract syntax tree of a formula.
type node struct {
	kind nodeKind

	// text is the literal's source text, the variable or function name, or
	// the operator alias as written.
	text string
	// val is the pre-built value of a literal node.
	val Value
	// op is the resolved operator of a call node.
	op *Operator
	// list holds operands, vector elements, matrix rows, or a declaration
	// body.
	list []*node
	// params holds a function definition's parameter names.
	params []string
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum  // number literal
	nodeRat  // rational literal, e.g. 1/8
	nodePct  // percent literal, e.g. 25%
	nodeBool // true or false
	nodeName // variable reference

	nodeVector // { a, b, c }
	nodeMatrix // [ {..}, {..} ], rows of vector literals

	nodeCall    // operator application; list is the operands
	nodeFuncDef // name(params) := body
	nodeAssign  // name := body
)

// Operator precedence ranks. Smaller binds tighter. Registered operators may
// use any positive rank below 1<<7; these are the ranks of the built-ins.
const (
	PrecPow    = 1
	PrecUnary  = 2
	PrecMulDiv = 3
	PrecAddSub = 4
	PrecPctOf  = 5
	PrecCmp    = 6
	PrecLogic  = 7

	// precLoosest is the rank used to collect a whole subexpression.
	precLoosest = 1 << 7
)

// maxParseDepth bounds bracket nesting; maxParseNodes bounds total tree
// size, which also caps the height of the left-deep trees that flat chains
// like 1+1+... build without recursing in the parser. Every tree reaching
// the evaluator, renderer, or differentiator comes from Parse, so both
// limits together keep those recursive walks within a bounded stack.
const (
	maxParseDepth = 200
	maxParseNodes = 8192
)

type parser struct {
	src   []rune
	pos   int
	reg   *Registry
	depth int
	nodes int
}

func (p *parser) countNode() error {
	p.nodes++
	if p.nodes > maxParseNodes {
		return &SyntaxError{Col: p.pos + 1, Msg: "expression too large"}
	}
	return nil
}

// Parse parses a formula against a registry. The declaration form
// name(params) := body registers a user-defined operator into reg as a side
// effect, but only after the whole declaration has parsed; a failed parse
// leaves the registry untouched.
func Parse(src string, reg *Registry) (*Expr, error) {
	runes := []rune(src)
	if at := declSplit(runes); at >= 0 {
		return parseDecl(runes, at, reg)
	}
	p := &parser{src: runes, reg: reg}
	n, err := p.parseExpr(precLoosest)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, &SyntaxError{Col: p.pos + 1, Msg: "unmatched " + strconv.Quote(string(p.src[p.pos]))}
	}
	return &Expr{n: n, reg: reg}, nil
}

// declSplit finds a top-level ":=" and returns the index of the colon, or -1.
func declSplit(src []rune) int {
	depth := 0
	for i, r := range src {
		switch r {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		case ':':
			if depth == 0 && i+1 < len(src) && src[i+1] == '=' {
				return i
			}
		}
	}
	return -1
}

func parseDecl(src []rune, at int, reg *Registry) (*Expr, error) {
	lhs := strings.TrimSpace(string(src[:at]))
	rhs := src[at+2:]
	if strings.TrimSpace(string(rhs)) == "" {
		return nil, &SyntaxError{Col: at + 3, Msg: "missing declaration body"}
	}
	p := &parser{src: rhs, reg: reg}
	body, err := p.parseExpr(precLoosest)
	if err != nil {
		if pe, ok := err.(PosError); ok {
			return nil, &SyntaxError{Col: at + 2 + pe.Pos(), Msg: err.Error()}
		}
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, &SyntaxError{Col: at + 3 + p.pos, Msg: "unmatched " + strconv.Quote(string(p.src[p.pos]))}
	}

	open := strings.IndexRune(lhs, '(')
	if open < 0 {
		// name := body assigns a persistent variable at evaluation time.
		if !validIdent(lhs) {
			return nil, &SyntaxError{Col: 1, Msg: "invalid assignment target " + strconv.Quote(lhs)}
		}
		n := &node{kind: nodeAssign, text: lhs, list: []*node{body}}
		return &Expr{n: n, reg: reg}, nil
	}

	if !strings.HasSuffix(lhs, ")") {
		return nil, &SyntaxError{Col: len(lhs), Msg: "malformed parameter list"}
	}
	name := strings.TrimSpace(lhs[:open])
	if !validIdent(name) {
		return nil, &SyntaxError{Col: 1, Msg: "invalid function name " + strconv.Quote(name)}
	}
	var params []string
	for _, f := range strings.Split(lhs[open+1:len(lhs)-1], ",") {
		f = strings.TrimSpace(f)
		if !validIdent(f) {
			return nil, &SyntaxError{Col: open + 1, Msg: "invalid parameter " + strconv.Quote(f)}
		}
		params = append(params, f)
	}

	op := &Operator{
		Aliases: []string{strings.ToLower(name)},
		Prec:    PrecUnary,
		Arity:   len(params),
		params:  params,
		body:    body,
	}
	op.Eval = userRule(op)
	if err := reg.Register(op); err != nil {
		return nil, &SyntaxError{Col: 1, Msg: err.Error()}
	}
	n := &node{kind: nodeFuncDef, text: name, params: params, op: op, list: []*node{body}}
	return &Expr{n: n, reg: reg}, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !isWordRune(r) {
			return false
		}
		if i == 0 && r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(r rune, what string) error {
	p.skipSpace()
	if p.eof() || p.src[p.pos] != r {
		return &SyntaxError{Col: p.pos + 1, Msg: "unclosed " + what + ": expected " + strconv.Quote(string(r))}
	}
	p.pos++
	return nil
}

// parseExpr collects operands and binary operators until it meets an
// operator whose precedence rank is >= limit, which fixes the operand
// boundary. Equal ranks are therefore left-associative by construction.
func (p *parser) parseExpr(limit int) (*node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxParseDepth {
		return nil, &SyntaxError{Col: p.pos + 1, Msg: "expression too deeply nested"}
	}
	n, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.eof() {
			return n, nil
		}
		switch p.peek() {
		case ')', ']', '}', ',':
			return n, nil
		}
		alias, op, ok := p.reg.Resolve(p.src, p.pos)
		if !ok {
			return nil, &SyntaxError{Col: p.pos + 1, Msg: "unresolved operator at " + strconv.Quote(remainder(p.src, p.pos))}
		}
		if op.Arity != 2 || op.NAry || op.body != nil {
			return nil, &SyntaxError{Col: p.pos + 1, Msg: strconv.Quote(alias) + " is not a binary operator"}
		}
		if op.Prec >= limit {
			return n, nil
		}
		p.pos += len([]rune(alias))
		if err := p.countNode(); err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr(op.Prec)
		if err != nil {
			return nil, err
		}
		n = &node{kind: nodeCall, text: alias, op: op, list: []*node{n, rhs}}
	}
}

// remainder is a short prefix of the unparsed input, for error messages.
func remainder(src []rune, pos int) string {
	end := pos + 8
	if end > len(src) {
		end = len(src)
	}
	return string(src[pos:end])
}

// parseOperand parses the first component of a term. Bracketed operands are
// parsed eagerly into sub-trees (the recursive strategy); plain literal and
// name runs are scanned flat, deferring node construction until the run's
// boundary is known.
func (p *parser) parseOperand() (*node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, &SyntaxError{Col: p.pos + 1, Msg: "missing operand"}
	}
	if err := p.countNode(); err != nil {
		return nil, err
	}
	switch r := p.peek(); {
	case r == '(':
		p.pos++
		n, err := p.parseExpr(precLoosest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(')', "group"); err != nil {
			return nil, err
		}
		return n, nil
	case r == '{':
		return p.parseVector()
	case r == '[':
		return p.parseMatrix()
	case r == '-':
		p.pos++
		neg, err := p.reg.Lookup("neg")
		if err != nil {
			return nil, err
		}
		arg, err := p.parseExpr(PrecUnary)
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeCall, text: "-", op: neg, list: []*node{arg}}, nil
	case r == '+':
		p.pos++
		return p.parseExpr(PrecUnary)
	case r >= '0' && r <= '9', r == '.':
		return p.scanNumber()
	case isWordRune(r):
		return p.parseWord()
	default:
		return nil, &SyntaxError{Col: p.pos + 1, Msg: "unexpected character " + strconv.Quote(string(r))}
	}
}

func (p *parser) parseWord() (*node, error) {
	start := p.pos
	for !p.eof() && isWordRune(p.peek()) {
		p.pos++
	}
	word := string(p.src[start:p.pos])
	switch word {
	case "true":
		return &node{kind: nodeBool, text: word, val: Bool(true)}, nil
	case "false":
		return &node{kind: nodeBool, text: word, val: Bool(false)}, nil
	}
	op, err := p.reg.Lookup(word)
	if err != nil {
		// A maximal word run that is not an operator alias is a bare
		// variable reference.
		return &node{kind: nodeName, text: word}, nil
	}
	if op.Arity == 2 && op.body == nil && !op.NAry {
		return nil, &SyntaxError{Col: start + 1, Msg: strconv.Quote(word) + " needs a left operand"}
	}
	return p.parseCall(word, op, start)
}

// parseCall parses the argument(s) of a named operator: a built-in unary or
// n-ary operator takes one operand, bare or parenthesized; a user-defined
// function takes a parenthesized list of exactly its arity.
func (p *parser) parseCall(word string, op *Operator, start int) (*node, error) {
	if op.body != nil {
		if err := p.expect('(', "argument list"); err != nil {
			return nil, &SyntaxError{Col: p.pos + 1, Msg: strconv.Quote(word) + " expects an argument list"}
		}
		var args []*node
		for {
			a, err := p.parseExpr(precLoosest)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			break
		}
		if err := p.expect(')', "argument list"); err != nil {
			return nil, err
		}
		if len(args) != op.Arity {
			return nil, &SyntaxError{
				Col: start + 1,
				Msg: strconv.Quote(word) + " expects " + strconv.Itoa(op.Arity) + " arguments, got " + strconv.Itoa(len(args)),
			}
		}
		return &node{kind: nodeCall, text: word, op: op, list: args}, nil
	}
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		arg, err := p.parseExpr(precLoosest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(')', "argument list"); err != nil {
			return nil, err
		}
		return &node{kind: nodeCall, text: word, op: op, list: []*node{arg}}, nil
	}
	arg, err := p.parseExpr(op.Prec)
	if err != nil {
		return nil, err
	}
	return &node{kind: nodeCall, text: word, op: op, list: []*node{arg}}, nil
}

func (p *parser) parseVector() (*node, error) {
	open := p.pos
	p.pos++ // consume {
	n := &node{kind: nodeVector}
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return n, nil
	}
	for {
		e, err := p.parseExpr(precLoosest)
		if err != nil {
			return nil, err
		}
		n.list = append(n.list, e)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return n, nil
		default:
			return nil, &SyntaxError{Col: open + 1, Msg: "unclosed vector literal"}
		}
	}
}

func (p *parser) parseMatrix() (*node, error) {
	open := p.pos
	p.pos++ // consume [
	n := &node{kind: nodeMatrix}
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return n, nil
	}
	for {
		p.skipSpace()
		if p.peek() != '{' {
			return nil, &SyntaxError{Col: p.pos + 1, Msg: "matrix rows must be vector literals"}
		}
		row, err := p.parseVector()
		if err != nil {
			return nil, err
		}
		n.list = append(n.list, row)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return n, nil
		default:
			return nil, &SyntaxError{Col: open + 1, Msg: "unclosed matrix literal"}
		}
	}
}

// scanNumber scans a numeric literal: a decimal with optional fraction and
// exponent, an int/int rational, or a number immediately followed by % as a
// percent literal.
func (p *parser) scanNumber() (*node, error) {
	start := p.pos
	integral := true
	for !p.eof() {
		switch r := p.peek(); {
		case r >= '0' && r <= '9':
			p.pos++
		case r == '.':
			integral = false
			p.pos++
		case r == 'e' || r == 'E':
			integral = false
			p.pos++
			if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
				p.pos++
			}
		default:
			goto scanned
		}
	}
scanned:
	text := string(p.src[start:p.pos])
	if integral && p.peek() == '/' {
		if n, ok := p.scanRational(text); ok {
			return n, nil
		}
	}
	if p.peek() == '%' {
		// A % immediately followed by a letter begins an operator alias such
		// as %of, not a percent literal.
		if p.pos+1 >= len(p.src) || !isWordRune(p.src[p.pos+1]) {
			p.pos++
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Col: start + 1, Msg: "invalid number " + strconv.Quote(text)}
			}
			return &node{kind: nodePct, text: text + "%", val: Value{kind: KindPercent, num: f / 100}}, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Col: start + 1, Msg: "invalid number " + strconv.Quote(text)}
	}
	return &node{kind: nodeNum, text: text, val: Number(f)}, nil
}

// scanRational tries to extend an integer literal over '/' into an exact
// rational. It declines, leaving the cursor before the slash, when the
// denominator is not a plain nonzero integer; "1/8.5" and "1/0" stay
// ordinary divisions.
func (p *parser) scanRational(num string) (*node, bool) {
	mark := p.pos
	p.pos++ // consume /
	dstart := p.pos
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	den := string(p.src[dstart:p.pos])
	bad := den == "" || p.peek() == '.' || p.peek() == 'e' || p.peek() == 'E'
	if !bad {
		if z, err := strconv.ParseInt(den, 10, 64); err != nil || z == 0 {
			bad = true
		}
	}
	if bad {
		p.pos = mark
		return nil, false
	}
	text := num + "/" + den
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		p.pos = mark
		return nil, false
	}
	return &node{kind: nodeRat, text: text, val: ratValue(r)}, true
}

// String renders the expression canonically. The rendering re-parses to an
// equivalent tree; the differentiation engine depends on that round trip.
func (e *Expr) String() string {
	var b strings.Builder
	e.n.fmt(&b)
	return b.String()
}

func (n *node) exprString() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

func (n *node) fmt(b *strings.Builder) {
	switch n.kind {
	case nodeNum, nodeRat, nodePct, nodeBool, nodeName:
		b.WriteString(n.text)
	case nodeVector:
		b.WriteByte('{')
		for i, e := range n.list {
			if i > 0 {
				b.WriteString(", ")
			}
			e.fmt(b)
		}
		b.WriteByte('}')
	case nodeMatrix:
		b.WriteByte('[')
		for i, row := range n.list {
			if i > 0 {
				b.WriteString(", ")
			}
			row.fmt(b)
		}
		b.WriteByte(']')
	case nodeCall:
		n.fmtCall(b)
	case nodeFuncDef:
		b.WriteString(n.text)
		b.WriteByte('(')
		b.WriteString(strings.Join(n.params, ", "))
		b.WriteString(") := ")
		n.list[0].fmt(b)
	case nodeAssign:
		b.WriteString(n.text)
		b.WriteString(" := ")
		n.list[0].fmt(b)
	default:
		b.WriteString("<invalid>")
	}
}

func (n *node) fmtCall(b *strings.Builder) {
	if len(n.list) == 1 {
		if n.text == "-" {
			b.WriteByte('-')
			n.fmtOperand(b, n.list[0], false)
			return
		}
		b.WriteString(n.text)
		b.WriteByte('(')
		n.list[0].fmt(b)
		b.WriteByte(')')
		return
	}
	if len(n.list) > 2 || n.op.body != nil {
		// user-defined call
		b.WriteString(n.text)
		b.WriteByte('(')
		for i, a := range n.list {
			if i > 0 {
				b.WriteString(", ")
			}
			a.fmt(b)
		}
		b.WriteByte(')')
		return
	}
	n.fmtOperand(b, n.list[0], false)
	if r := []rune(n.text)[0]; isWordRune(r) || r == '%' {
		b.WriteByte(' ')
		b.WriteString(n.text)
		b.WriteByte(' ')
	} else {
		b.WriteString(n.text)
	}
	n.fmtOperand(b, n.list[1], true)
}

// fmtOperand parenthesizes a child when its operator binds no tighter than
// the parent, or, on the right side, when it binds equally (the scan is
// left-associative).
func (n *node) fmtOperand(b *strings.Builder, child *node, right bool) {
	wrap := false
	if child.kind == nodeCall && child.op != nil && len(child.list) == 2 && child.op.body == nil {
		switch {
		case child.op.Prec > n.op.Prec:
			wrap = true
		case right && child.op.Prec == n.op.Prec:
			wrap = true
		}
	}
	if n.text == "-" && len(n.list) == 1 && child.kind == nodeCall && len(child.list) == 2 && child.op.Prec > PrecUnary {
		wrap = true
	}
	if wrap {
		b.WriteByte('(')
		child.fmt(b)
		b.WriteByte(')')
		return
	}
	child.fmt(b)
}
