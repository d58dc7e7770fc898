// Package registry implements the variable registry: the fixed table
// of named runtime-tunable behavior parameters.
//
// The set of variables is closed at build time. Setters parse text
// permissively (leading-integer parse, clamped to the variable's type
// range, 0 when no digits are present) so the upstream handler only
// distinguishes known from unknown names.
package registry
