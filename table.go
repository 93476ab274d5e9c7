// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package treebitmap

import (
	"iter"
	"net/netip"

	"github.com/lpmtrie/treebitmap/internal/trie"
)

// Table is a fast IPv4 and IPv6 longest-prefix-match lookup table with
// payload V, backed by two independent Tree Bitmap tries.
//
// The zero value is ready to use.
//
// Table is safe for concurrent reads, but concurrent reads and writes, or
// concurrent writes, must be protected by an external lock; see SyncTable
// for a wrapper that does this.
type Table[V any] struct {
	root4 *trie.Tree[V]
	root6 *trie.Tree[V]
}

// New returns an empty Table with no preallocated capacity.
func New[V any]() *Table[V] {
	return &Table[V]{root4: trie.New[V](), root6: trie.New[V]()}
}

// NewWithOptions returns an empty Table, applying opts over the package
// defaults (see WithDefaults).
func NewWithOptions[V any](opts Options) (*Table[V], error) {
	merged, err := WithDefaults(&opts)
	if err != nil {
		return nil, err
	}
	return &Table[V]{
		root4: trie.WithCapacity[V](merged.PreallocIPv4),
		root6: trie.WithCapacity[V](merged.PreallocIPv6),
	}, nil
}

func (t *Table[V]) tree(is4 bool) *trie.Tree[V] {
	if t.root4 == nil || t.root6 == nil {
		panic("treebitmap: Table used without New/NewWithOptions")
	}
	if is4 {
		return t.root4
	}
	return t.root6
}

// Len returns the total number of prefixes stored, across both families.
func (t *Table[V]) Len() int {
	if t.root4 == nil {
		return 0
	}
	return t.root4.Len() + t.root6.Len()
}

// IsEmpty reports whether the table holds no prefixes.
func (t *Table[V]) IsEmpty() bool {
	return t.Len() == 0
}

// MemUsage returns (nodeBytes, resultBytes) summed across the IPv4 and
// IPv6 tries.
func (t *Table[V]) MemUsage() (nodeBytes, resultBytes int) {
	if t.root4 == nil {
		return 0, 0
	}
	n4, r4 := t.root4.MemUsage()
	n6, r6 := t.root6.MemUsage()
	return n4 + n6, r4 + r6
}

// Insert adds value for pfx, returning the previous value and true if the
// exact prefix already existed. pfx is masked before insertion, so bits
// set to the right of pfx.Bits() are ignored rather than rejected.
func (t *Table[V]) Insert(pfx netip.Prefix, value V) (old V, existed bool) {
	if t.root4 == nil {
		*t = *New[V]()
	}
	ns, bits := prefixNibbles(pfx)
	return t.tree(pfx.Addr().Is4()).Insert(ns, bits, value)
}

// Remove deletes the exact prefix pfx, returning its value if it existed.
func (t *Table[V]) Remove(pfx netip.Prefix) (val V, ok bool) {
	if t.root4 == nil {
		return val, false
	}
	ns, bits := prefixNibbles(pfx)
	return t.tree(pfx.Addr().Is4()).Remove(ns, bits)
}

// ExactMatch reports whether the exact prefix pfx was inserted, and if so
// returns its value.
func (t *Table[V]) ExactMatch(pfx netip.Prefix) (val V, ok bool) {
	if t.root4 == nil {
		return val, false
	}
	ns, bits := prefixNibbles(pfx)
	return t.tree(pfx.Addr().Is4()).ExactMatch(ns, bits)
}

// LongestMatch returns the most specific prefix covering addr, its value,
// and the covering prefix itself (masked to the matched length).
func (t *Table[V]) LongestMatch(addr netip.Addr) (pfx netip.Prefix, val V, ok bool) {
	if t.root4 == nil {
		return pfx, val, false
	}
	ns := nibbles(addr)
	bitsMatched, val, ok := t.tree(addr.Is4()).LongestMatch(ns)
	if !ok {
		return pfx, val, false
	}
	masked := fromNibbles(ns, addr.Is4())
	pfx = netip.PrefixFrom(masked, int(bitsMatched)).Masked()
	return pfx, val, true
}

// Entry is one (prefix, value) pair yielded by All.
type Entry[V any] struct {
	Prefix netip.Prefix
	Value  V
}

// All returns an in-order (trie-order, not numeric-address-order)
// iterator over every stored prefix, IPv4 entries before IPv6.
func (t *Table[V]) All() iter.Seq[Entry[V]] {
	return func(yield func(Entry[V]) bool) {
		if t.root4 == nil {
			return
		}
		for e := range t.root4.All() {
			addr := fromNibbles(e.Nibbles, true)
			if !yield(Entry[V]{Prefix: netip.PrefixFrom(addr, int(e.Bits)), Value: e.Value}) {
				return
			}
		}
		for e := range t.root6.All() {
			addr := fromNibbles(e.Nibbles, false)
			if !yield(Entry[V]{Prefix: netip.PrefixFrom(addr, int(e.Bits)), Value: e.Value}) {
				return
			}
		}
	}
}

// AllMut returns an in-order iterator over pointers to every stored value,
// IPv4 entries before IPv6, for in-place mutation (e.g. bumping a hit
// counter) without a Remove/Insert round-trip. The pointers are only valid
// until the next Insert or Remove on t.
func (t *Table[V]) AllMut() iter.Seq[*V] {
	return func(yield func(*V) bool) {
		if t.root4 == nil {
			return
		}
		for v := range t.root4.AllMut() {
			if !yield(v) {
				return
			}
		}
		for v := range t.root6.AllMut() {
			if !yield(v) {
				return
			}
		}
	}
}

// IntoValues drains t, yielding every stored value exactly once, IPv4
// entries before IPv6, and removing it from the table as it is yielded; t
// is empty once the iteration runs to completion. Breaking out of a range
// early leaves the remaining, not-yet-yielded entries in place.
func (t *Table[V]) IntoValues() iter.Seq[V] {
	return func(yield func(V) bool) {
		if t.root4 == nil {
			return
		}
		for v := range t.root4.IntoValues() {
			if !yield(v) {
				return
			}
		}
		for v := range t.root6.IntoValues() {
			if !yield(v) {
				return
			}
		}
	}
}
