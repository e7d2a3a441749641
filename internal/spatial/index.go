// Package spatial maps (cell, i, j, k) intersections of model cells and mesh
// voxels to flat positions, and stores per-time results over those positions.
package spatial

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrOutOfRange is returned for flat positions outside the index.
var ErrOutOfRange = errors.New("spatial: index out of range")

// Key identifies the intersection of a cell with a mesh voxel.
type Key struct {
	Cell int `json:"cell"`
	I    int `json:"i"`
	J    int `json:"j"`
	K    int `json:"k"`
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", k.Cell, k.I, k.J, k.K)
}

// Voxel returns the voxel part of the key.
func (k Key) Voxel() [3]int { return [3]int{k.I, k.J, k.K} }

// CompareKeys orders keys lexicographically by (cell, i, j, k).
func CompareKeys(a, b Key) int {
	if c := cmp.Compare(a.Cell, b.Cell); c != 0 {
		return c
	}
	if c := cmp.Compare(a.I, b.I); c != 0 {
		return c
	}
	if c := cmp.Compare(a.J, b.J); c != 0 {
		return c
	}
	return cmp.Compare(a.K, b.K)
}

// Filter selects index positions. A nil field does not filter; zero is a
// valid filter value.
type Filter struct {
	Cell *int
	I    *int
	J    *int
	K    *int
}

// Eq returns a filter value.
func Eq(v int) *int { return &v }

// Index is an immutable bijection between keys and flat positions
// 0..Len()-1. Positions follow the sorted key order.
type Index struct {
	keys []Key
	flat map[Key]int

	byCell map[int][]int
	byI    map[int][]int
	byJ    map[int][]int
	byK    map[int][]int
}

// NewIndex builds an index over the keys with a positive volume.
func NewIndex(volumes map[Key]float64) *Index {
	keys := make([]Key, 0, len(volumes))
	for k, v := range volumes {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	return NewIndexFromKeys(keys)
}

// NewIndexFromKeys builds an index over distinct keys.
func NewIndexFromKeys(keys []Key) *Index {
	keys = slices.Clone(keys)
	slices.SortFunc(keys, CompareKeys)
	keys = slices.Compact(keys)

	x := &Index{
		keys:   keys,
		flat:   make(map[Key]int, len(keys)),
		byCell: make(map[int][]int),
		byI:    make(map[int][]int),
		byJ:    make(map[int][]int),
		byK:    make(map[int][]int),
	}
	for q, k := range keys {
		x.flat[k] = q
		x.byCell[k.Cell] = append(x.byCell[k.Cell], q)
		x.byI[k.I] = append(x.byI[k.I], q)
		x.byJ[k.J] = append(x.byJ[k.J], q)
		x.byK[k.K] = append(x.byK[k.K], q)
	}
	return x
}

// Len returns the number of keys.
func (x *Index) Len() int { return len(x.keys) }

// Label returns the key at a flat position.
func (x *Index) Label(flat int) (Key, error) {
	if flat < 0 || flat >= len(x.keys) {
		return Key{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, flat, len(x.keys))
	}
	return x.keys[flat], nil
}

// Flat returns the flat position of a key.
func (x *Index) Flat(k Key) (int, bool) {
	q, ok := x.flat[k]
	return q, ok
}

// Keys returns all keys in flat order.
func (x *Index) Keys() []Key { return slices.Clone(x.keys) }

// Indices returns the sorted flat positions matching every non-nil field of f.
func (x *Index) Indices(f Filter) []int {
	var sets [][]int
	for _, c := range []struct {
		v  *int
		by map[int][]int
	}{{f.Cell, x.byCell}, {f.I, x.byI}, {f.J, x.byJ}, {f.K, x.byK}} {
		if c.v != nil {
			sets = append(sets, c.by[*c.v])
		}
	}

	if len(sets) == 0 {
		all := make([]int, len(x.keys))
		for q := range all {
			all[q] = q
		}
		return all
	}

	out := []int{}
	for _, q := range sets[0] {
		keep := true
		for _, s := range sets[1:] {
			if _, found := slices.BinarySearch(s, q); !found {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, q)
		}
	}
	return out
}

// Cells returns the distinct cells in ascending order.
func (x *Index) Cells() []int {
	cells := make([]int, 0, len(x.byCell))
	for c := range x.byCell {
		cells = append(cells, c)
	}
	slices.Sort(cells)
	return cells
}

// Voxels returns the distinct voxels in order of first appearance.
func (x *Index) Voxels() [][3]int {
	seen := make(map[[3]int]bool)
	var out [][3]int
	for _, k := range x.keys {
		v := k.Voxel()
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
