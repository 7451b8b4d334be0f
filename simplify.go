package formula

import "strings"

// Simplify rewrites a formula string with elementary identity removals until
// a full pass makes no change. Every rewrite strictly shortens the string,
// so the loop terminates.
func Simplify(s string) string {
	for {
		t := simplifyPass(s)
		if t == s {
			return s
		}
		s = t
	}
}

// simplifyPass applies at most one rewrite from each rule family. The
// fixpoint loop in Simplify reruns it until nothing applies.
func simplifyPass(s string) string {
	s = collapseSigns(s)
	s = dropUnits(s)
	s = collapseDoubleParens(s)
	s = stripAtomParens(s)
	s = stripWholeParens(s)
	return s
}

// collapseSigns rewrites the first "--" into "+" (or removes it entirely at
// the start of a subexpression) and the first "+-" into "-".
func collapseSigns(s string) string {
	for i := 0; i+1 < len(s); i++ {
		switch s[i : i+2] {
		case "--":
			if i == 0 || s[i-1] == '(' || s[i-1] == '{' || s[i-1] == '[' || s[i-1] == ',' {
				return s[:i] + s[i+2:]
			}
			return s[:i] + "+" + s[i+2:]
		case "+-":
			return s[:i] + "-" + s[i+2:]
		}
	}
	return s
}

// dropUnits removes the first neutral "^1", "*1", or "1*" found at a token
// boundary.
func dropUnits(s string) string {
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) && (s[i] == '^' || s[i] == '*') && s[i+1] == '1' && unitAfter(s, i+2) {
			return s[:i] + s[i+2:]
		}
		if s[i] == '1' && i+1 < len(s) && s[i+1] == '*' && coeffBefore(s, i) {
			return s[:i] + s[i+2:]
		}
	}
	return s
}

// unitAfter reports whether position j ends the "1" token: the 1 must not
// continue into a longer number or name, begin a call, or bind to a tighter
// exponent.
func unitAfter(s string, j int) bool {
	if j >= len(s) {
		return true
	}
	r := rune(s[j])
	return !isWordRune(r) && r != '.' && r != '%' && r != '(' && r != '^' && r != '/'
}

// coeffBefore reports whether the "1" at position i starts a factor: only
// then is "1*" a neutral coefficient. A 1 following '/' or '^' is a
// denominator or exponent and must stay.
func coeffBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	switch s[i-1] {
	case '(', '{', '[', ',', ' ', '+', '-', '*':
		return true
	}
	return false
}

// collapseDoubleParens rewrites the first "((X))" into "(X)".
func collapseDoubleParens(s string) string {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '(' || s[i+1] != '(' {
			continue
		}
		j := matchParen(s, i+1)
		if j < 0 || j+1 >= len(s) || s[j+1] != ')' {
			continue
		}
		if matchParen(s, i) != j+1 {
			continue
		}
		return s[:i] + s[i+1:j+1] + s[j+2:]
	}
	return s
}

// stripAtomParens removes the first pair of parentheses wrapping a single
// atomic token or function call, such as "(x)" or "(cos(x))". Parentheses
// preceded by a word rune are a call's own argument list and stay.
func stripAtomParens(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '(' {
			continue
		}
		if i > 0 && isWordRune(rune(s[i-1])) {
			continue
		}
		j := matchParen(s, i)
		if j < 0 {
			continue
		}
		if atomicToken(s[i+1 : j]) {
			return s[:i] + s[i+1:j] + s[j+1:]
		}
	}
	return s
}

// stripWholeParens unwraps a string that is one parenthesized expression.
func stripWholeParens(s string) string {
	if len(s) >= 2 && s[0] == '(' && matchParen(s, 0) == len(s)-1 {
		return s[1 : len(s)-1]
	}
	return s
}

// atomicToken reports whether s is a bare name or number, or a single
// function call spanning the whole string.
func atomicToken(s string) bool {
	if s == "" {
		return false
	}
	plain := true
	for _, r := range s {
		if !isWordRune(r) && r != '.' && r != '%' {
			plain = false
			break
		}
	}
	if plain {
		return true
	}
	i := strings.IndexByte(s, '(')
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if !isWordRune(r) {
			return false
		}
	}
	return matchParen(s, i) == len(s)-1
}

// matchParen returns the index of the close paren matching the open paren at
// i, or -1 if unbalanced.
func matchParen(s string, i int) int {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}
