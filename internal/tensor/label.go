package tensor

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the value type carried by a Label.
type Kind uint8

const (
	// KindInt is an integer label (cell numbers, voxel positions, groups).
	KindInt Kind = iota + 1

	// KindFloat is a floating point label (bin boundaries).
	KindFloat

	// KindString is a string label (nuclide or material names).
	KindString

	// KindTuple is a composite label made of integers.
	KindTuple
)

// Label is a comparable axis label.
//
// Labels are value types and can be used as map keys. Two labels are equal
// when they have the same kind and the same value, so Int(1) and Float(1)
// are distinct labels.
type Label struct {
	kind Kind
	n    int64
	f    float64
	s    string
}

// Int returns an integer label.
func Int(v int) Label { return Label{kind: KindInt, n: int64(v)} }

// Float returns a floating point label. NaN is not a valid label.
func Float(v float64) Label { return Label{kind: KindFloat, f: v} }

// Str returns a string label.
func Str(v string) Label { return Label{kind: KindString, s: v} }

// Tuple returns a composite label of integers.
func Tuple(vs ...int) Label {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return Label{kind: KindTuple, s: strings.Join(parts, ",")}
}

// Ints converts integers to labels.
func Ints(vs ...int) []Label {
	out := make([]Label, len(vs))
	for i, v := range vs {
		out[i] = Int(v)
	}
	return out
}

// Range returns integer labels 0..n-1.
func Range(n int) []Label {
	out := make([]Label, n)
	for i := range out {
		out[i] = Int(i)
	}
	return out
}

// Floats converts floats to labels.
func Floats(vs ...float64) []Label {
	out := make([]Label, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}
	return out
}

// Strs converts strings to labels.
func Strs(vs ...string) []Label {
	out := make([]Label, len(vs))
	for i, v := range vs {
		out[i] = Str(v)
	}
	return out
}

// Kind returns the label kind. The zero Label has kind 0.
func (l Label) Kind() Kind { return l.kind }

// AsInt returns the integer value of an integer label.
func (l Label) AsInt() (int, bool) {
	if l.kind != KindInt {
		return 0, false
	}
	return int(l.n), true
}

// AsFloat returns the numeric value of an integer or float label.
func (l Label) AsFloat() (float64, bool) {
	switch l.kind {
	case KindFloat:
		return l.f, true
	case KindInt:
		return float64(l.n), true
	}
	return 0, false
}

// AsString returns the value of a string label.
func (l Label) AsString() (string, bool) {
	if l.kind != KindString {
		return "", false
	}
	return l.s, true
}

// AsTuple returns the components of a tuple label.
func (l Label) AsTuple() ([]int, bool) {
	if l.kind != KindTuple {
		return nil, false
	}
	if l.s == "" {
		return []int{}, true
	}
	parts := strings.Split(l.s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// String formats the label for logs and file names.
func (l Label) String() string {
	switch l.kind {
	case KindInt:
		return strconv.FormatInt(l.n, 10)
	case KindFloat:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	case KindString:
		return l.s
	case KindTuple:
		return "(" + l.s + ")"
	}
	return "<nil>"
}

// GoString implements fmt.GoStringer.
func (l Label) GoString() string {
	switch l.kind {
	case KindString:
		return fmt.Sprintf("Str(%q)", l.s)
	case KindInt:
		return fmt.Sprintf("Int(%d)", l.n)
	case KindFloat:
		return fmt.Sprintf("Float(%g)", l.f)
	case KindTuple:
		return "Tuple" + l.String()
	}
	return "Label{}"
}

// Compare orders labels by kind, then by value.
func Compare(a, b Label) int {
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	switch a.kind {
	case KindInt:
		return cmp.Compare(a.n, b.n)
	case KindFloat:
		return cmp.Compare(a.f, b.f)
	case KindTuple:
		at, _ := a.AsTuple()
		bt, _ := b.AsTuple()
		for i := 0; i < len(at) && i < len(bt); i++ {
			if c := cmp.Compare(at[i], bt[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(at), len(bt))
	}
	return cmp.Compare(a.s, b.s)
}

// MaxArity is the largest number of axes a Key can address.
const MaxArity = 8

// Key is a fixed-length, comparable tuple of labels addressing one entry.
type Key struct {
	n      uint8
	labels [MaxArity]Label
}

// K builds a key from labels. It panics if more than MaxArity labels are given.
func K(labels ...Label) Key {
	if len(labels) > MaxArity {
		panic(fmt.Sprintf("tensor: key arity %d exceeds %d", len(labels), MaxArity))
	}
	var k Key
	k.n = uint8(len(labels))
	copy(k.labels[:], labels)
	return k
}

// Len returns the number of labels in the key.
func (k Key) Len() int { return int(k.n) }

// At returns the i-th label.
func (k Key) At(i int) Label { return k.labels[i] }

// Labels returns the labels as a slice.
func (k Key) Labels() []Label {
	out := make([]Label, k.n)
	copy(out, k.labels[:k.n])
	return out
}

// String formats the key as a parenthesized tuple.
func (k Key) String() string {
	parts := make([]string, k.n)
	for i := range parts {
		parts[i] = k.labels[i].String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
