package model

import (
	"math"
	"strconv"
	"strings"
)

type patchOp uint8

const (
	patchKeep patchOp = iota
	patchSet
	patchClear
)

// Patch is an edit to one field: keep the current value, replace it, or
// clear it. The zero value keeps.
type Patch[T any] struct {
	op    patchOp
	value T
}

// Set returns a patch that replaces the field with v.
func Set[T any](v T) Patch[T] { return Patch[T]{op: patchSet, value: v} }

// Clear returns a patch that unsets the field.
func Clear[T any]() Patch[T] { return Patch[T]{op: patchClear} }

// Keep returns a patch that leaves the field untouched.
func Keep[T any]() Patch[T] { return Patch[T]{} }

// IsKeep reports whether the patch leaves the field untouched.
func (p Patch[T]) IsKeep() bool { return p.op == patchKeep }

// IsSet reports whether the patch replaces the field.
func (p Patch[T]) IsSet() bool { return p.op == patchSet }

// IsClear reports whether the patch unsets the field.
func (p Patch[T]) IsClear() bool { return p.op == patchClear }

// Value returns the replacement value when the patch is a Set.
func (p Patch[T]) Value() (T, bool) {
	return p.value, p.op == patchSet
}

// ApplyTo merges the patch into an optional field.
func (p Patch[T]) ApplyTo(dst **T) {
	switch p.op {
	case patchSet:
		v := p.value
		*dst = &v
	case patchClear:
		*dst = nil
	}
}

// Merge returns the patched value of a required field. Clear resets it to
// the zero value.
func (p Patch[T]) Merge(cur T) T {
	switch p.op {
	case patchSet:
		return p.value
	case patchClear:
		var zero T
		return zero
	default:
		return cur
	}
}

// SetFloat is Set for numeric fields: non-finite values become Clear so a
// NaN never reaches the model.
func SetFloat(v float64) Patch[float64] {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Clear[float64]()
	}
	return Set(v)
}

// ApplyFloat merges a numeric patch, treating a non-finite Set as Clear.
func ApplyFloat(dst **float64, p Patch[float64]) {
	if v, ok := p.Value(); ok {
		SetFloat(v).ApplyTo(dst)
		return
	}
	p.ApplyTo(dst)
}

// ParseOptionalFloat converts raw form input into a numeric patch. Empty
// input clears the field.
func ParseOptionalFloat(field, raw string) (Patch[float64], error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Clear[float64](), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Patch[float64]{}, NewValidationError(field, "%q is not a number", raw)
	}
	return Set(v), nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
