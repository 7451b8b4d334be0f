package formula

import "strconv"

// SyntaxError indicates malformed input: unmatched brackets, an unresolved
// operator at a position where one is required, or a wrong operand count.
// It implements PosError.
type SyntaxError struct {
	// Col is the rune column of the offending input.
	Col int
	// Msg describes the failure.
	Msg string
}

func (err *SyntaxError) Error() string {
	return errpos(err.Col, err.Msg)
}

func (err *SyntaxError) Pos() int {
	return err.Col
}

// UnknownOperatorError indicates a lookup of an alias that is not registered.
type UnknownOperatorError struct {
	// Name is the alias that was looked up.
	Name string
}

func (err *UnknownOperatorError) Error() string {
	return "unknown operator " + strconv.Quote(err.Name)
}

// ArgumentError indicates that an operator's evaluation rule received operand
// kinds it cannot combine.
type ArgumentError struct {
	// Op is the operator that rejected its operands.
	Op string
	// Msg describes the rejection.
	Msg string
}

func (err *ArgumentError) Error() string {
	if err.Op == "" {
		return err.Msg
	}
	return err.Op + ": " + err.Msg
}

// DimensionMismatchError indicates matrix operands with incompatible shapes.
type DimensionMismatchError struct {
	// Op is the operator that was applied.
	Op string
	// ARows, ACols, BRows, BCols are the operand shapes.
	ARows, ACols, BRows, BCols int
}

func (err *DimensionMismatchError) Error() string {
	return err.Op + ": dimension mismatch: " +
		strconv.Itoa(err.ARows) + "x" + strconv.Itoa(err.ACols) + " and " +
		strconv.Itoa(err.BRows) + "x" + strconv.Itoa(err.BCols)
}

// UnsupportedOperatorError indicates an operator with no entry in the
// derivative rule table.
type UnsupportedOperatorError struct {
	// Name is the operator or construct that cannot be differentiated.
	Name string
}

func (err *UnsupportedOperatorError) Error() string {
	return "cannot differentiate " + err.Name
}

// NameError is an error from a lookup for a variable that is missing from the
// evaluation context.
type NameError struct {
	// Name is the name that was missing.
	Name string
}

func (err *NameError) Error() string {
	return "undefined variable: " + strconv.Quote(err.Name)
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// PosError is an error with position information. Errors resulting from
// invalid input text implement PosError.
type PosError interface {
	error
	// Pos returns the position of the error as the number of runes up to and
	// including the start of the input that caused the error.
	Pos() int
}

var (
	_ PosError = (*SyntaxError)(nil)
)
