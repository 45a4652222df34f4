package override

import "fmt"

// FieldOp identifies how a Field affects the value it patches.
type FieldOp uint8

const (
	// FieldKeep leaves the target value untouched.
	FieldKeep FieldOp = iota
	// FieldUnset removes the target value.
	FieldUnset
	// FieldSet replaces the target value, including with the empty string.
	FieldSet
)

func (op FieldOp) String() string {
	switch op {
	case FieldKeep:
		return "keep"
	case FieldUnset:
		return "unset"
	case FieldSet:
		return "set"
	default:
		return fmt.Sprintf("FieldOp(%d)", uint8(op))
	}
}

// Field is a single optional string that distinguishes "no change", "remove"
// and "set to value". Stored overrides only ever hold FieldUnset or FieldSet;
// FieldKeep is meaningful inside a Patch.
type Field struct {
	op    FieldOp
	value string
}

// Keep returns a field that leaves its target untouched.
func Keep() Field { return Field{op: FieldKeep} }

// Unset returns a field that removes its target.
func Unset() Field { return Field{op: FieldUnset} }

// SetTo returns a field holding value.
func SetTo(value string) Field { return Field{op: FieldSet, value: value} }

// Op reports the field operation.
func (f Field) Op() FieldOp { return f.op }

// IsSet reports whether the field carries a value.
func (f Field) IsSet() bool { return f.op == FieldSet }

// IsKeep reports whether the field leaves its target untouched.
func (f Field) IsKeep() bool { return f.op == FieldKeep }

// Value returns the carried value and whether one is present.
func (f Field) Value() (string, bool) {
	if f.op != FieldSet {
		return "", false
	}
	return f.value, true
}

// ValueOr returns the carried value, or fallback when the field is not set.
func (f Field) ValueOr(fallback string) string {
	if f.op != FieldSet {
		return fallback
	}
	return f.value
}

// Truthy reports whether the field is set to a non-empty value.
func (f Field) Truthy() bool {
	return f.op == FieldSet && f.value != ""
}

// Blank reports whether the field is unset or set to the empty string.
func (f Field) Blank() bool {
	return f.op != FieldSet || f.value == ""
}

// Equal reports whether two fields carry the same operation and value.
func (f Field) Equal(other Field) bool {
	if f.op != other.op {
		return false
	}
	return f.op != FieldSet || f.value == other.value
}

// Stored normalizes a field for storage: FieldKeep collapses to FieldUnset.
func (f Field) Stored() Field {
	if f.op == FieldSet {
		return f
	}
	return Unset()
}

func (f Field) String() string {
	if f.op == FieldSet {
		return fmt.Sprintf("set(%q)", f.value)
	}
	return f.op.String()
}
