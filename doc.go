// Package formula implements an embeddable mathematical expression language.
//
// Formulas are parsed into immutable expression trees and evaluated over a
// small numeric tower: floating-point numbers, exact rationals, percentages,
// vectors, matrices, and booleans. Operators are looked up through a
// per-instance Registry, so user-defined functions declared with the
// name(args) := body form never leak between engine instances. Expressions
// can also be symbolically differentiated; the derivative is produced as a
// formula string, simplified to a fixpoint, and re-parsed into a fresh
// expression.
package formula
