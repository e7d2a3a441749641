// Package tensor implements an immutable, multi-axis sparse tensor whose axes
// carry names and ordered label lists.
//
// Operations align operands by axis NAME and by label VALUE, never by
// position: two tensors whose shared axis lists the same labels in a
// different order contract and multiply correctly. Every operation validates
// its operands before any arithmetic and returns a new tensor.
package tensor

import (
	"fmt"
	"slices"
)

// Tensor is a labeled sparse tensor. The zero value is not usable; build
// tensors with FromEntries or FromDense.
type Tensor struct {
	axes    []string
	labels  [][]Label
	pos     []map[Label]int
	shape   []int
	strides []int

	// data maps row-major flat offsets to non-zero values.
	data map[int]float64
}

// Replacement describes the new name and labels of a replaced axis.
type Replacement struct {
	Name   string
	Labels []Label
}

func newTensor(axes []string, labels [][]Label) (*Tensor, error) {
	if len(axes) != len(labels) {
		return nil, shapeErr("%d axes but %d label lists", len(axes), len(labels))
	}
	if len(axes) > MaxArity {
		return nil, shapeErr("%d axes exceeds the maximum of %d", len(axes), MaxArity)
	}

	n := len(axes)
	t := &Tensor{
		axes:    slices.Clone(axes),
		labels:  make([][]Label, n),
		pos:     make([]map[Label]int, n),
		shape:   make([]int, n),
		strides: make([]int, n),
		data:    make(map[int]float64),
	}

	seen := make(map[string]bool, n)
	for a, name := range axes {
		if seen[name] {
			return nil, shapeErr("duplicate axis name %q", name)
		}
		seen[name] = true

		ls := slices.Clone(labels[a])
		m := make(map[Label]int, len(ls))
		for p, l := range ls {
			if _, dup := m[l]; dup {
				return nil, shapeErr("duplicate label %s on axis %q", l, name)
			}
			m[l] = p
		}
		t.labels[a] = ls
		t.pos[a] = m
		t.shape[a] = len(ls)
	}

	stride := 1
	for a := n - 1; a >= 0; a-- {
		t.strides[a] = stride
		stride *= t.shape[a]
	}
	return t, nil
}

// FromEntries builds a tensor from a mapping of label tuples to values. Every
// key must have one label per axis, each declared on its axis. Zero values
// are not stored.
func FromEntries(axes []string, labels [][]Label, entries map[Key]float64) (*Tensor, error) {
	t, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}
	for k, v := range entries {
		if k.Len() != len(axes) {
			return nil, labelErr("entry %s has %d labels, want %d", k, k.Len(), len(axes))
		}
		off := 0
		for a := range axes {
			p, ok := t.pos[a][k.At(a)]
			if !ok {
				return nil, labelErr("label %s is not declared on axis %q", k.At(a), axes[a])
			}
			off += p * t.strides[a]
		}
		if v != 0 {
			t.data[off] = v
		}
	}
	return t, nil
}

// FromDense builds a tensor from row-major dense values.
func FromDense(axes []string, labels [][]Label, values []float64) (*Tensor, error) {
	t, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}
	if size := t.size(); len(values) != size {
		return nil, shapeErr("%d values for shape %v (%d elements)", len(values), t.shape, size)
	}
	for off, v := range values {
		if v != 0 {
			t.data[off] = v
		}
	}
	return t, nil
}

// Scalar returns a tensor with no axes holding v.
func Scalar(v float64) *Tensor {
	t, _ := newTensor(nil, nil)
	if v != 0 {
		t.data[0] = v
	}
	return t
}

func (t *Tensor) size() int {
	size := 1
	for _, s := range t.shape {
		size *= s
	}
	return size
}

func (t *Tensor) coords(off int) []int {
	c := make([]int, len(t.shape))
	for a := range t.shape {
		c[a] = off / t.strides[a]
		off %= t.strides[a]
	}
	return c
}

func (t *Tensor) offsets() []int {
	offs := make([]int, 0, len(t.data))
	for off := range t.data {
		offs = append(offs, off)
	}
	slices.Sort(offs)
	return offs
}

// NDim returns the number of axes.
func (t *Tensor) NDim() int { return len(t.axes) }

// Axes returns the axis names in order.
func (t *Tensor) Axes() []string { return slices.Clone(t.axes) }

// Shape returns the label count of each axis.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// NNZ returns the number of stored (non-zero) values.
func (t *Tensor) NNZ() int { return len(t.data) }

// AxisIndex returns the position of the named axis, or -1.
func (t *Tensor) AxisIndex(name string) int {
	return slices.Index(t.axes, name)
}

// Labels returns the labels of axis a.
func (t *Tensor) Labels(a int) []Label { return slices.Clone(t.labels[a]) }

// AxisLabels returns the labels of the named axis.
func (t *Tensor) AxisLabels(name string) ([]Label, bool) {
	a := t.AxisIndex(name)
	if a < 0 {
		return nil, false
	}
	return t.Labels(a), true
}

// Label returns the label at position p of axis a.
func (t *Tensor) Label(a, p int) Label { return t.labels[a][p] }

// Get returns the value at the given labels, zero when nothing is stored.
func (t *Tensor) Get(labels ...Label) (float64, error) {
	if len(labels) != len(t.axes) {
		return 0, labelErr("got %d labels for %d axes", len(labels), len(t.axes))
	}
	off := 0
	for a, l := range labels {
		p, ok := t.pos[a][l]
		if !ok {
			return 0, labelErr("label %s is not declared on axis %q", l, t.axes[a])
		}
		off += p * t.strides[a]
	}
	return t.data[off], nil
}

// Each calls fn for every stored value in row-major order. pos holds the
// label position on each axis and must not be retained.
func (t *Tensor) Each(fn func(pos []int, v float64)) {
	for _, off := range t.offsets() {
		fn(t.coords(off), t.data[off])
	}
}

// Entries returns a copy of the stored values keyed by label tuple.
func (t *Tensor) Entries() map[Key]float64 {
	out := make(map[Key]float64, len(t.data))
	for off, v := range t.data {
		c := t.coords(off)
		k := Key{n: uint8(len(c))}
		for a, p := range c {
			k.labels[a] = t.labels[a][p]
		}
		out[k] = v
	}
	return out
}

// Sum returns the sum of all stored values.
func (t *Tensor) Sum() float64 {
	var s float64
	for _, off := range t.offsets() {
		s += t.data[off]
	}
	return s
}

// TensorDot contracts t and o over every axis name they share. Shared axes
// must carry the same label set; contraction pairs equal labels regardless
// of their position. The result's axes are t's remaining axes followed by
// o's remaining axes. Contracting every axis yields a scalar tensor.
func (t *Tensor) TensorDot(o *Tensor) (*Tensor, error) {
	var shared, oShared []int
	for a, name := range t.axes {
		if b := o.AxisIndex(name); b >= 0 {
			shared = append(shared, a)
			oShared = append(oShared, b)
		}
	}
	if len(shared) == 0 {
		return nil, shapeErr("no coincident axes between %v and %v", t.axes, o.axes)
	}

	// remap[s][p] is t's position of the label at o's position p on shared axis s.
	remap := make([][]int, len(shared))
	for s := range shared {
		a, b := shared[s], oShared[s]
		if t.shape[a] != o.shape[b] {
			return nil, shapeErr("axis %q has %d labels on the left and %d on the right",
				t.axes[a], t.shape[a], o.shape[b])
		}
		remap[s] = make([]int, o.shape[b])
		for p, l := range o.labels[b] {
			q, ok := t.pos[a][l]
			if !ok {
				return nil, shapeErr("axis %q: label %s is missing on the left", t.axes[a], l)
			}
			remap[s][p] = q
		}
	}

	var tRest, oRest []int
	var axes []string
	var labels [][]Label
	for a := range t.axes {
		if !slices.Contains(shared, a) {
			tRest = append(tRest, a)
			axes = append(axes, t.axes[a])
			labels = append(labels, t.labels[a])
		}
	}
	for b := range o.axes {
		if !slices.Contains(oShared, b) {
			oRest = append(oRest, b)
			axes = append(axes, o.axes[b])
			labels = append(labels, o.labels[b])
		}
	}
	res, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}

	type part struct {
		off int
		v   float64
	}
	groups := make(map[int][]part)
	for _, off := range o.offsets() {
		c := o.coords(off)
		ck := 0
		for s := range shared {
			ck = ck*t.shape[shared[s]] + remap[s][c[oShared[s]]]
		}
		ro := 0
		for r, b := range oRest {
			ro += c[b] * res.strides[len(tRest)+r]
		}
		groups[ck] = append(groups[ck], part{ro, o.data[off]})
	}

	for _, off := range t.offsets() {
		c := t.coords(off)
		ck := 0
		for _, a := range shared {
			ck = ck*t.shape[a] + c[a]
		}
		parts, ok := groups[ck]
		if !ok {
			continue
		}
		lo := 0
		for r, a := range tRest {
			lo += c[a] * res.strides[r]
		}
		v := t.data[off]
		for _, p := range parts {
			res.data[lo+p.off] += v * p.v
		}
	}
	res.prune()
	return res, nil
}

// Multiply returns the element-wise product of t and o. The operand whose
// axes are a subset of the other's is broadcast over the missing axes,
// whatever the order of its axes. The result has the superset operand's axes
// and labels.
func (t *Tensor) Multiply(o *Tensor) (*Tensor, error) {
	big, small := t, o
	if !containsAll(t.axes, o.axes) {
		if !containsAll(o.axes, t.axes) {
			return nil, shapeErr("cannot broadcast %v against %v", t.axes, o.axes)
		}
		big, small = o, t
	}

	at := make([]int, len(small.axes))
	remap := make([][]int, len(small.axes))
	for s, name := range small.axes {
		b := big.AxisIndex(name)
		if big.shape[b] != small.shape[s] {
			return nil, shapeErr("axis %q has %d and %d labels", name, big.shape[b], small.shape[s])
		}
		at[s] = b
		remap[s] = make([]int, big.shape[b])
		for p, l := range big.labels[b] {
			q, ok := small.pos[s][l]
			if !ok {
				return nil, shapeErr("axis %q: label %s is missing in one operand", name, l)
			}
			remap[s][p] = q
		}
	}

	res := big.emptyLike()
	for off, v := range big.data {
		c := big.coords(off)
		so := 0
		for s := range small.axes {
			so += remap[s][c[at[s]]] * small.strides[s]
		}
		w, ok := small.data[so]
		if !ok {
			continue
		}
		if p := v * w; p != 0 {
			res.data[off] = p
		}
	}
	return res, nil
}

// ReplaceAxes renames axes and replaces their labels without touching the
// values. A new label list must have the old length, or one more label to
// turn bin positions into bin boundaries.
func (t *Tensor) ReplaceAxes(repl map[string]Replacement) (*Tensor, error) {
	axes := slices.Clone(t.axes)
	labels := slices.Clone(t.labels)
	for old, r := range repl {
		a := t.AxisIndex(old)
		if a < 0 {
			return nil, shapeErr("unknown axis %q", old)
		}
		if n := len(r.Labels); n != t.shape[a] && n != t.shape[a]+1 {
			return nil, shapeErr("axis %q has %d labels, replacement has %d", old, t.shape[a], n)
		}
		axes[a] = r.Name
		labels[a] = r.Labels
	}
	res, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}
	for off, v := range t.data {
		c := t.coords(off)
		res.data[res.offset(c)] = v
	}
	return res, nil
}

// Scale multiplies every value by the factor of its label on axis. Labels
// without a factor scale to zero.
func (t *Tensor) Scale(axis string, factors map[Label]float64) (*Tensor, error) {
	a := t.AxisIndex(axis)
	if a < 0 {
		return nil, shapeErr("unknown axis %q", axis)
	}
	res := t.emptyLike()
	for off, v := range t.data {
		p := (off / t.strides[a]) % t.shape[a]
		if s := v * factors[t.labels[a][p]]; s != 0 {
			res.data[off] = s
		}
	}
	return res, nil
}

// Transpose reorders the axes. axes must be a permutation of t's axes.
func (t *Tensor) Transpose(axes ...string) (*Tensor, error) {
	if len(axes) != len(t.axes) || !containsAll(axes, t.axes) {
		return nil, shapeErr("%v is not a permutation of %v", axes, t.axes)
	}
	perm := make([]int, len(axes))
	labels := make([][]Label, len(axes))
	for i, name := range axes {
		perm[i] = t.AxisIndex(name)
		labels[i] = t.labels[perm[i]]
	}
	res, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}
	nc := make([]int, len(axes))
	for off, v := range t.data {
		c := t.coords(off)
		for i, a := range perm {
			nc[i] = c[a]
		}
		res.data[res.offset(nc)] = v
	}
	return res, nil
}

// Slice fixes axis to label and drops it.
func (t *Tensor) Slice(axis string, label Label) (*Tensor, error) {
	a := t.AxisIndex(axis)
	if a < 0 {
		return nil, shapeErr("unknown axis %q", axis)
	}
	p, ok := t.pos[a][label]
	if !ok {
		return nil, labelErr("label %s is not declared on axis %q", label, axis)
	}
	axes := slices.Delete(slices.Clone(t.axes), a, a+1)
	labels := slices.Delete(slices.Clone(t.labels), a, a+1)
	res, err := newTensor(axes, labels)
	if err != nil {
		return nil, err
	}
	for off, v := range t.data {
		c := t.coords(off)
		if c[a] != p {
			continue
		}
		res.data[res.offset(slices.Delete(c, a, a+1))] = v
	}
	return res, nil
}

// String summarizes the tensor for logs.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(axes=%v, shape=%v, nnz=%d)", t.axes, t.shape, len(t.data))
}

func (t *Tensor) offset(c []int) int {
	off := 0
	for a, p := range c {
		off += p * t.strides[a]
	}
	return off
}

func (t *Tensor) emptyLike() *Tensor {
	return &Tensor{
		axes:    t.axes,
		labels:  t.labels,
		pos:     t.pos,
		shape:   t.shape,
		strides: t.strides,
		data:    make(map[int]float64, len(t.data)),
	}
}

func (t *Tensor) prune() {
	for off, v := range t.data {
		if v == 0 {
			delete(t.data, off)
		}
	}
}

func containsAll(set, sub []string) bool {
	for _, s := range sub {
		if !slices.Contains(set, s) {
			return false
		}
	}
	return true
}
