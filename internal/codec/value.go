package codec

import "sort"

// Value is a sealed interface over the value types the canonical codec can
// encode: integers, strings, booleans, ordered arrays, and key-sorted
// objects. There is deliberately no float variant — the Truth Engine does
// all arithmetic in exact integer cents, and a canonical codec that admitted
// floats would reopen the door to platform-dependent formatting.
type Value interface {
	value()
}

// Int is a signed integer value, encoded in decimal with no leading zeros.
type Int int64

func (Int) value() {}

// String is a UTF-8 text value, encoded with standard JSON escaping.
type String string

func (String) value() {}

// Bool is a boolean value, encoded as the fixed literals true/false.
type Bool bool

func (Bool) value() {}

// Array is an ordered sequence of values. Order is part of the encoding —
// callers must not rely on canonical sorting inside an Array.
type Array []Value

func (Array) value() {}

// Object is a key-value mapping. Keys are sorted lexicographically by byte
// value at encoding time; iteration order of the underlying map never
// leaks into the canonical form.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns the object's keys in the order the canonical codec
// writes them: plain lexicographic (byte-wise) order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StringArray builds an Array of String values, the common case for
// ordered string sequences (audit flags, seen-event-id sets).
func StringArray(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}
