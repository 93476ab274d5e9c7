// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package trie implements the Tree Bitmap multibit trie: insert, remove,
// exact match, longest match and in-order iteration over a nibble-indexed
// key space, on top of an internal/arena-backed internal/bitmap.Node
// store. It knows nothing about IP addresses; callers supply MSB-first
// 4-bit nibble sequences (see address.go in the root package) and a bit
// length.
package trie

import (
	"iter"
	"math/bits"

	"github.com/lpmtrie/treebitmap/internal/arena"
	"github.com/lpmtrie/treebitmap/internal/bitmap"
)

// Tree is the Tree Bitmap core: one arena of nodes, one arena of values,
// rooted at a single node allocated at construction time.
type Tree[V any] struct {
	nodes   *arena.Allocator[bitmap.Node]
	results *arena.Allocator[V]
	length  int
}

// New returns an empty Tree with no preallocated capacity.
func New[V any]() *Tree[V] {
	return WithCapacity[V](0)
}

// WithCapacity returns an empty Tree whose node and value arenas are each
// preallocated to hold cap elements per bucket.
func WithCapacity[V any](cap int) *Tree[V] {
	t := &Tree[V]{
		nodes:   arena.WithCapacity[bitmap.Node](cap),
		results: arena.WithCapacity[V](cap),
	}
	hdl := t.nodes.Alloc(0)
	t.nodes.Insert(&hdl, 0, bitmap.Node{})
	// The very first allocation out of a fresh Allocator always lands at
	// offset 0 in bucket 0, and inserting the first element never crosses
	// a bucket boundary (chooseBucket(0) == chooseBucket(1) == 0), so the
	// root's handle is always {Len: 1, Offset: 0}.
	return t
}

func (t *Tree[V]) rootHandle() arena.Handle {
	return arena.Handle{Len: 1, Offset: 0}
}

// Len returns the number of prefixes currently stored.
func (t *Tree[V]) Len() int {
	return t.length
}

// IsEmpty reports whether the tree holds no prefixes.
func (t *Tree[V]) IsEmpty() bool {
	return t.length == 0
}

// MemUsage returns (nodeBytes, resultBytes): the memory held by the node
// arena and the value arena respectively.
func (t *Tree[V]) MemUsage() (nodeBytes, resultBytes int) {
	return t.nodes.MemUsage(), t.results.MemUsage()
}

func min4(bitsLeft uint32) uint32 {
	if bitsLeft < 4 {
		return bitsLeft
	}
	return 4
}

func nibbleAt(nibbles []uint8, i int) uint8 {
	if i < len(nibbles) {
		return nibbles[i]
	}
	return 0
}

// LongestMatch walks nibbles from the root, returning the number of bits
// matched and the value of the most specific covering prefix.
func (t *Tree[V]) LongestMatch(nibbles []uint8) (bitsMatched uint32, val V, ok bool) {
	curHdl := t.rootHandle()
	curIndex := uint32(0)
	bitsSearched := uint32(0)

	var bestHdl arena.Handle
	var bestIndex uint32
	found := false

	for _, nibble := range nibbles {
		curNode := t.nodes.Get(curHdl, curIndex)
		mm := bitmap.MatchMask(nibble)

		if mr := curNode.MatchInternal(mm); mr.Kind == bitmap.MatchedResult {
			bitsMatched = bitsSearched + bitmap.BitMatch[mr.BitIndex]
			bestHdl, bestIndex = mr.Handle, mr.Index
			found = true
		}

		if curNode.IsEndnode() {
			break
		}

		mr := curNode.MatchExternal(mm)
		if mr.Kind != bitmap.MatchedChild {
			break
		}
		bitsSearched += 4
		curHdl, curIndex = mr.Handle, mr.Index
	}

	if !found {
		return 0, val, false
	}
	return bitsMatched, t.results.Get(bestHdl, bestIndex), true
}

// ExactMatch reports whether the exact prefix (nibbles masked to masklen
// bits) was inserted, and if so returns its value.
func (t *Tree[V]) ExactMatch(nibbles []uint8, masklen uint32) (val V, ok bool) {
	curHdl := t.rootHandle()
	curIndex := uint32(0)
	bitsLeft := masklen

	for i := 0; ; i++ {
		nibble := nibbleAt(nibbles, i)
		curNode := t.nodes.Get(curHdl, curIndex)
		bm := bitmap.GenBitmap(nibble, min4(bitsLeft)) & bitmap.EndBitMask

		if (curNode.IsEndnode() && bitsLeft <= 4) || bitsLeft <= 3 {
			mr := curNode.MatchInternal(bm)
			if mr.Kind != bitmap.MatchedResult {
				return val, false
			}
			return t.results.Get(mr.Handle, mr.Index), true
		}

		mr := curNode.MatchExternal(bm)
		if mr.Kind != bitmap.MatchedChild {
			return val, false
		}
		bitsLeft -= 4
		curHdl, curIndex = mr.Handle, mr.Index
	}
}

// Insert adds value at the prefix (nibbles masked to masklen bits),
// returning the previous value if the exact prefix already existed.
func (t *Tree[V]) Insert(nibbles []uint8, masklen uint32, value V) (old V, existed bool) {
	curHdl := t.rootHandle()
	curIndex := uint32(0)
	bitsLeft := masklen

	for i := 0; ; i++ {
		nibble := nibbleAt(nibbles, i)
		curNode := t.nodes.Get(curHdl, curIndex)

		if mr := curNode.MatchSegment(nibble); mr.Kind == bitmap.MatchedChild && bitsLeft >= 4 {
			bitsLeft -= 4
			curHdl, curIndex = mr.Handle, mr.Index
			continue
		}

		bm := bitmap.GenBitmap(nibble, min4(bitsLeft))

		if (curNode.IsEndnode() && bitsLeft <= 4) || bitsLeft <= 3 {
			// Final node: the value belongs here.
			dataBit := bm & bitmap.EndBitMask
			var resultHdl arena.Handle
			if curNode.ResultCount() == 0 {
				resultHdl = t.results.Alloc(0)
			} else {
				resultHdl = curNode.ResultHandle()
			}
			resultIndex := uint32(bits.OnesCount32(curNode.Internal() >> bits.TrailingZeros32(dataBit)))

			if curNode.Internal()&dataBit != 0 {
				old = t.results.Replace(resultHdl, resultIndex-1, value)
				existed = true
			} else {
				curNode.SetInternal(dataBit)
				t.results.Insert(&resultHdl, resultIndex, value)
				t.length++
			}
			curNode.ResultPtr = resultHdl.Offset
			t.nodes.Set(curHdl, curIndex, curNode)
			return old, existed
		}

		// Need a branch.
		if curNode.IsEndnode() {
			t.pushDown(&curNode)
		}
		extBit := bm & bitmap.EndBitMask

		var childHdl arena.Handle
		if curNode.ChildCount() == 0 {
			childHdl = t.nodes.Alloc(0)
		} else {
			childHdl = curNode.ChildHandle()
		}

		childIndex := uint32(bits.OnesCount32(curNode.External() >> bits.TrailingZeros32(extBit)))

		if curNode.External()&extBit == 0 {
			curNode.SetExternal(extBit)
			var childNode bitmap.Node
			childNode.MakeEndnode()
			t.nodes.Insert(&childHdl, childIndex, childNode)
			curNode.ChildPtr = childHdl.Offset
			t.nodes.Set(curHdl, curIndex, curNode)

			bitsLeft -= 4
			curHdl, curIndex = childHdl, childIndex
			continue
		}

		// Existing branch; persist any push-down and follow it.
		t.nodes.Set(curHdl, curIndex, curNode)
		mr := curNode.MatchExternal(extBit)
		bitsLeft -= 4
		curHdl, curIndex = mr.Handle, mr.Index
	}
}

// pushDown converts node (which must be an endnode with no children) into
// a normal node, moving its length-4 internal prefixes into fresh
// single-prefix endnode children.
func (t *Tree[V]) pushDown(node *bitmap.Node) {
	if !node.IsEndnode() || node.ChildPtr != 0 {
		panic("trie: pushDown: not a childless endnode")
	}

	removeAt := uint32(bits.OnesCount32(node.Internal() & 0xffff_0000))
	toPushDown := uint32(bits.OnesCount32(node.Internal() & 0x0000_ffff))

	if toPushDown > 0 {
		resultHdl := node.ResultHandle()
		childNodeHdl := t.nodes.Alloc(0)

		for i := uint32(0); i < toPushDown; i++ {
			childResultHdl := t.results.Alloc(0)
			value := t.results.Remove(&resultHdl, removeAt)
			t.results.Insert(&childResultHdl, 0, value)

			var childNode bitmap.Node
			childNode.MakeEndnode()
			childNode.SetInternal(bitmap.Wildcard)
			childNode.ResultPtr = childResultHdl.Offset

			t.nodes.Insert(&childNodeHdl, childNodeHdl.Len, childNode)
		}

		node.ResultPtr = resultHdl.Offset
		node.ChildPtr = childNodeHdl.Offset
		if resultHdl.Len == 0 {
			t.results.Free(&resultHdl)
			node.ResultPtr = 0
		}
	}

	node.MakeNormalnode()
}

// Remove deletes the exact prefix (nibbles masked to masklen bits),
// returning its value if it existed. As it unwinds it prunes emptied child
// nodes, turns a parent left with no children back into an endnode, and
// frees arena storage that is no longer used.
func (t *Tree[V]) Remove(nibbles []uint8, masklen uint32) (val V, ok bool) {
	val, ok, _ = t.removeAt(t.rootHandle(), 0, nibbles, masklen, 0)
	return val, ok
}

func (t *Tree[V]) removeAt(hdl arena.Handle, index uint32, nibbles []uint8, bitsLeft uint32, depth int) (val V, ok bool, emptied bool) {
	node := t.nodes.Get(hdl, index)
	nibble := nibbleAt(nibbles, depth)
	bm := bitmap.GenBitmap(nibble, min4(bitsLeft)) & bitmap.EndBitMask

	if (node.IsEndnode() && bitsLeft <= 4) || bitsLeft <= 3 {
		mr := node.MatchInternal(bm)
		if mr.Kind != bitmap.MatchedResult {
			return val, false, false
		}

		resultHdl := node.ResultHandle()
		removed := t.results.Remove(&resultHdl, mr.Index)
		node.UnsetInternal(bm)
		node.ResultPtr = resultHdl.Offset
		if resultHdl.Len == 0 {
			t.results.Free(&resultHdl)
			node.ResultPtr = 0
		}

		t.nodes.Set(hdl, index, node)
		t.length--
		return removed, true, node.IsEmpty()
	}

	mr := node.MatchExternal(bm)
	if mr.Kind != bitmap.MatchedChild {
		return val, false, false
	}

	childVal, childOk, childEmptied := t.removeAt(mr.Handle, mr.Index, nibbles, bitsLeft-4, depth+1)
	if !childOk {
		return val, false, false
	}
	if !childEmptied {
		return childVal, true, false
	}

	childHdl := node.ChildHandle()
	t.nodes.Remove(&childHdl, mr.Index)
	node.UnsetExternal(bm)
	node.ChildPtr = childHdl.Offset
	if childHdl.Len == 0 {
		t.nodes.Free(&childHdl)
		node.ChildPtr = 0
	}

	if node.ChildCount() == 0 && !node.IsEndnode() {
		node.MakeEndnode()
	}

	t.nodes.Set(hdl, index, node)
	return childVal, true, node.IsEmpty()
}

// Entry is one (prefix, value) pair yielded by All.
type Entry[V any] struct {
	Nibbles []uint8
	Bits    uint32
	Value   V
}

// All returns an in-order (trie-order, not numeric-address-order)
// iterator over every stored prefix.
func (t *Tree[V]) All() iter.Seq[Entry[V]] {
	return func(yield func(Entry[V]) bool) {
		t.walk(t.rootHandle(), 0, nil, yield)
	}
}

// AllMut returns an in-order iterator over pointers to every stored value,
// letting the caller mutate values in place without a Remove/Insert
// round-trip. The pointers are only valid until the next structural change
// to t (Insert or Remove).
func (t *Tree[V]) AllMut() iter.Seq[*V] {
	return func(yield func(*V) bool) {
		t.walkMut(t.rootHandle(), 0, yield)
	}
}

func (t *Tree[V]) walkMut(hdl arena.Handle, index uint32, yield func(*V) bool) bool {
	node := t.nodes.Get(hdl, index)
	resultHdl := node.ResultHandle()

	internal := node.Internal()
	for internal != 0 {
		bitIdx := bits.TrailingZeros32(internal)
		resultIndex := uint32(bits.OnesCount32(node.Internal() >> (bitIdx + 1)))
		if !yield(t.results.GetPtr(resultHdl, resultIndex)) {
			return false
		}
		internal &^= 1 << uint(bitIdx)
	}

	if node.IsEndnode() {
		return true
	}

	childHdl := node.ChildHandle()
	external := node.External()
	for external != 0 {
		bitIdx := bits.TrailingZeros32(external)
		childIndex := uint32(bits.OnesCount32(node.External() >> (bitIdx + 1)))
		if !t.walkMut(childHdl, childIndex, yield) {
			return false
		}
		external &^= 1 << uint(bitIdx)
	}
	return true
}

// IntoValues drains t, yielding every stored value exactly once in trie
// order and removing it from the tree as it is yielded; t is empty once the
// iteration runs to completion. Breaking out of a range early leaves the
// remaining, not-yet-yielded entries in place.
func (t *Tree[V]) IntoValues() iter.Seq[V] {
	return func(yield func(V) bool) {
		type key struct {
			nibbles []uint8
			bits    uint32
		}
		keys := make([]key, 0, t.Len())
		for e := range t.All() {
			keys = append(keys, key{e.Nibbles, e.Bits})
		}
		for _, k := range keys {
			val, ok := t.Remove(k.nibbles, k.bits)
			if !ok {
				continue
			}
			if !yield(val) {
				return
			}
		}
	}
}

func (t *Tree[V]) walk(hdl arena.Handle, index uint32, prefix []uint8, yield func(Entry[V]) bool) bool {
	node := t.nodes.Get(hdl, index)
	resultHdl := node.ResultHandle()

	internal := node.Internal()
	for internal != 0 {
		bitIdx := bits.TrailingZeros32(internal)
		bp := bitmap.BitToPrefix(bitIdx)
		resultIndex := uint32(bits.OnesCount32(node.Internal() >> (bitIdx + 1)))

		entryNibbles := append(append([]uint8(nil), prefix...), bp.Nibble)
		if bp.Bits == 0 {
			entryNibbles = prefix
		}
		entry := Entry[V]{
			Nibbles: entryNibbles,
			Bits:    uint32(len(prefix))*4 + uint32(bp.Bits),
			Value:   t.results.Get(resultHdl, resultIndex),
		}
		if !yield(entry) {
			return false
		}
		internal &^= 1 << uint(bitIdx)
	}

	if node.IsEndnode() {
		return true
	}

	childHdl := node.ChildHandle()
	external := node.External()
	for external != 0 {
		bitIdx := bits.TrailingZeros32(external)
		bp := bitmap.BitToPrefix(bitIdx)
		childIndex := uint32(bits.OnesCount32(node.External() >> (bitIdx + 1)))

		childPrefix := append(append([]uint8(nil), prefix...), bp.Nibble)
		if !t.walk(childHdl, childIndex, childPrefix, yield) {
			return false
		}
		external &^= 1 << uint(bitIdx)
	}
	return true
}
