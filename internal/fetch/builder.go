package fetch

import (
	"fmt"
	"slices"

	"github.com/roach88/r2s/internal/tensor"
)

// Builder accumulates tensor entries whose label sets are not known in
// advance. Labels seen on each axis are collected as entries are added.
type Builder struct {
	axes    []string
	seen    []map[tensor.Label]struct{}
	entries map[tensor.Key]float64
}

// NewBuilder returns an empty builder for the named axes.
func NewBuilder(axes ...string) *Builder {
	b := &Builder{
		axes:    slices.Clone(axes),
		seen:    make([]map[tensor.Label]struct{}, len(axes)),
		entries: make(map[tensor.Key]float64),
	}
	for a := range b.seen {
		b.seen[a] = make(map[tensor.Label]struct{})
	}
	return b
}

// Add adds v at the coordinate given by one label per axis. Values at the
// same coordinate are summed.
func (b *Builder) Add(v float64, labels ...tensor.Label) error {
	if len(labels) != len(b.axes) {
		return fmt.Errorf("%w: %d labels for axes %v", tensor.ErrLabel, len(labels), b.axes)
	}
	for a, l := range labels {
		b.seen[a][l] = struct{}{}
	}
	b.entries[tensor.K(labels...)] += v
	return nil
}

// Len returns the number of coordinates added.
func (b *Builder) Len() int { return len(b.entries) }

// Labels returns the sorted labels seen on axis.
func (b *Builder) Labels(axis string) []tensor.Label {
	a := slices.Index(b.axes, axis)
	if a < 0 {
		return nil
	}
	out := make([]tensor.Label, 0, len(b.seen[a]))
	for l := range b.seen[a] {
		out = append(out, l)
	}
	slices.SortFunc(out, tensor.Compare)
	return out
}

// Build creates the tensor. Axes listed in fixed take those labels, the
// others the sorted labels seen.
func (b *Builder) Build(fixed map[string][]tensor.Label) (*tensor.Tensor, error) {
	labels := make([][]tensor.Label, len(b.axes))
	for a, name := range b.axes {
		if ls, ok := fixed[name]; ok {
			labels[a] = ls
			continue
		}
		labels[a] = b.Labels(name)
	}
	return tensor.FromEntries(b.axes, labels, b.entries)
}
