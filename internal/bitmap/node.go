// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitmap implements the trie node: a 32-bit bitmap plus two base
// offsets, and the constant-time match primitives that turn a 4-bit nibble
// into a result index or a child index.
package bitmap

import (
	"math/bits"

	"github.com/lpmtrie/treebitmap/internal/arena"
)

const (
	intMask    uint32 = 0xffff_0000
	extMask    uint32 = 0x0000_ffff
	endBit     uint32 = 1 << 16
	endBitMask uint32 = ^endBit
	msb        uint32 = 1 << 31
)

// internalLookupTable[masklen][nibble] is the single bit that gen_bitmap
// sets for a prefix of masklen bits (0..4) starting with the given 4-bit
// nibble. Row 4 additionally carries the endnode flag, since a length-4
// prefix only ever lives in an endnode's low 16 bits.
var internalLookupTable = [5][16]uint32{
	{1 << 31, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1 << 30, 0, 0, 0, 0, 0, 0, 0, 1 << 29, 0, 0, 0, 0, 0, 0, 0},
	{1 << 28, 0, 0, 0, 1 << 27, 0, 0, 0, 1 << 26, 0, 0, 0, 1 << 25, 0, 0, 0},
	{1 << 24, 0, 1 << 23, 0, 1 << 22, 0, 1 << 21, 0, 1 << 20, 0, 1 << 19, 0, 1 << 18, 0, 1 << 17, 0},
	{
		endBit | 1<<15, endBit | 1<<14, endBit | 1<<13, endBit | 1<<12,
		endBit | 1<<11, endBit | 1<<10, endBit | 1<<9, endBit | 1<<8,
		endBit | 1<<7, endBit | 1<<6, endBit | 1<<5, endBit | 1<<4,
		endBit | 1<<3, endBit | 1<<2, endBit | 1<<1, endBit | 1,
	},
}

// genBitmap returns the single bit encoding a prefix of masklen bits
// (0..4) starting with nibble (0..15).
func genBitmap(nibble uint8, masklen uint32) uint32 {
	return internalLookupTable[masklen][nibble]
}

// matchMasks[nibble] enumerates, for a 4-bit segment value, every internal
// slot that a prefix ending within this node could occupy: the node-wide
// wildcard, and the nibble's length-1, length-2, length-3 and length-4
// prefixes, all mapped into bit positions shared by the internal and
// external halves of the bitmap. ANDing a node's internal() or external()
// against matchMasks[nibble] and taking the lowest surviving set bit
// (longer prefixes sit at lower bit positions, since the encoding runs
// MSB-first) is the whole of longest-prefix matching within one node.
var matchMasks = [16]uint32{
	msb | msb>>1 | msb>>3 | msb>>7 | msb>>16,
	msb | msb>>1 | msb>>3 | msb>>7 | msb>>17,
	msb | msb>>1 | msb>>3 | msb>>8 | msb>>18,
	msb | msb>>1 | msb>>3 | msb>>8 | msb>>19,
	msb | msb>>1 | msb>>4 | msb>>9 | msb>>20,
	msb | msb>>1 | msb>>4 | msb>>9 | msb>>21,
	msb | msb>>1 | msb>>4 | msb>>10 | msb>>22,
	msb | msb>>1 | msb>>4 | msb>>10 | msb>>23,
	msb | msb>>2 | msb>>5 | msb>>11 | msb>>24,
	msb | msb>>2 | msb>>5 | msb>>11 | msb>>25,
	msb | msb>>2 | msb>>5 | msb>>12 | msb>>26,
	msb | msb>>2 | msb>>5 | msb>>12 | msb>>27,
	msb | msb>>2 | msb>>6 | msb>>13 | msb>>28,
	msb | msb>>2 | msb>>6 | msb>>13 | msb>>29,
	msb | msb>>2 | msb>>6 | msb>>14 | msb>>30,
	msb | msb>>2 | msb>>6 | msb>>14 | msb>>31,
}

// BitMatch maps a matched bit index (as returned in MatchResult.BitIndex)
// to the number of bits of the nibble it matched: 0 for the node-wide `*`,
// up to 3 for internal slots, and 4 for any bit in an endnode's low half.
var BitMatch = [32]uint32{
	0, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3, 3, 0,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
}

// Node is the 12-byte trie node: a 32-bit bitmap (internal half in bits
// 31..16, external half in bits 15..0, endnode flag at bit 16) plus base
// offsets into the child and result arenas. It carries no pointers of its
// own; ChildPtr/ResultPtr only become meaningful together with the
// popcount-derived length, via ChildHandle/ResultHandle.
type Node struct {
	bitmap    uint32
	ChildPtr  uint32
	ResultPtr uint32
}

// IsBlank reports whether n is entirely zeroed, denoting absence.
func (n Node) IsBlank() bool {
	return n.bitmap == 0 && n.ChildPtr == 0 && n.ResultPtr == 0
}

// IsEmpty reports whether n carries no bits at all other than possibly the
// endnode flag; an empty node should be pruned by its parent.
func (n Node) IsEmpty() bool {
	return n.bitmap&endBitMask == 0
}

// IsEndnode reports whether the endnode flag is set.
func (n Node) IsEndnode() bool {
	return n.bitmap&endBit != 0
}

// Internal returns the internal half of the bitmap, with the endnode flag
// filtered out.
func (n Node) Internal() uint32 {
	if n.IsEndnode() {
		return n.bitmap & endBitMask
	}
	return n.bitmap & intMask
}

// External returns the external half of the bitmap; always zero for an
// endnode.
func (n Node) External() uint32 {
	if n.IsEndnode() {
		return 0
	}
	return n.bitmap & extMask
}

// MakeEndnode sets the endnode flag. Panics if already an endnode or if
// external bits are set (push the children out first).
func (n *Node) MakeEndnode() {
	if n.IsEndnode() {
		panic("bitmap: MakeEndnode: already an endnode")
	}
	if n.External() != 0 {
		panic("bitmap: MakeEndnode: children present")
	}
	n.bitmap |= endBit
}

// MakeNormalnode clears the endnode flag. Panics if not currently an
// endnode.
func (n *Node) MakeNormalnode() {
	if !n.IsEndnode() {
		panic("bitmap: MakeNormalnode: not an endnode")
	}
	n.bitmap &= endBitMask
}

// ChildCount returns the number of external (child) entries.
func (n Node) ChildCount() uint32 {
	return uint32(bits.OnesCount32(n.External()))
}

// ResultCount returns the number of internal (result) entries.
func (n Node) ResultCount() uint32 {
	return uint32(bits.OnesCount32(n.Internal()))
}

// ResultHandle derives the handle to this node's result collection from
// its bitmap and ResultPtr.
func (n Node) ResultHandle() arena.Handle {
	return arena.Handle{Len: n.ResultCount(), Offset: n.ResultPtr}
}

// ChildHandle derives the handle to this node's child collection from its
// bitmap and ChildPtr.
func (n Node) ChildHandle() arena.Handle {
	return arena.Handle{Len: n.ChildCount(), Offset: n.ChildPtr}
}

// SetInternal sets a single internal bit. bit must have exactly one bit
// set, must not be the endnode bit, and (outside an endnode) must not be
// an external bit.
func (n *Node) SetInternal(bit uint32) {
	if bits.OnesCount32(bit) != 1 {
		panic("bitmap: SetInternal: bit must contain exactly one bit")
	}
	if bit&endBit != 0 {
		panic("bitmap: SetInternal: not permitted to set the endnode bit")
	}
	if n.bitmap&bit != 0 {
		panic("bitmap: SetInternal: bit already set")
	}
	if !n.IsEndnode() && bit&extMask != 0 {
		panic("bitmap: SetInternal: attempted to set external bit")
	}
	n.bitmap |= bit
}

// UnsetInternal clears a single internal bit previously set by
// SetInternal.
func (n *Node) UnsetInternal(bit uint32) {
	if bits.OnesCount32(bit) != 1 {
		panic("bitmap: UnsetInternal: bit must contain exactly one bit")
	}
	if bit&endBit != 0 {
		panic("bitmap: UnsetInternal: not permitted to unset the endnode bit")
	}
	if n.bitmap&bit != bit {
		panic("bitmap: UnsetInternal: bit already unset")
	}
	if !n.IsEndnode() && bit&extMask != 0 {
		panic("bitmap: UnsetInternal: attempted to unset external bit")
	}
	n.bitmap ^= bit
}

// SetExternal sets a single external (child) bit. Forbidden on endnodes.
func (n *Node) SetExternal(bit uint32) {
	if n.IsEndnode() {
		panic("bitmap: SetExternal: endnodes don't have external bits")
	}
	if bit&endBit != 0 {
		panic("bitmap: SetExternal: not permitted to set the endnode bit")
	}
	if n.bitmap&bit != 0 {
		panic("bitmap: SetExternal: bit already set")
	}
	if bit&intMask != 0 {
		panic("bitmap: SetExternal: not permitted to set an internal bit")
	}
	n.bitmap |= bit
}

// UnsetExternal clears a single external bit previously set by
// SetExternal.
func (n *Node) UnsetExternal(bit uint32) {
	if n.IsEndnode() {
		panic("bitmap: UnsetExternal: endnodes don't have external bits")
	}
	if bit&endBit != 0 {
		panic("bitmap: UnsetExternal: not permitted to unset the endnode bit")
	}
	if n.bitmap&bit != bit {
		panic("bitmap: UnsetExternal: bit already unset")
	}
	if bit&intMask != 0 {
		panic("bitmap: UnsetExternal: not permitted to unset an internal bit")
	}
	n.bitmap ^= bit
}

// MatchKind distinguishes the two outcomes a segment match can produce.
type MatchKind int

const (
	// NoMatch means neither an internal slot nor a child matched.
	NoMatch MatchKind = iota
	// MatchedResult means an internal slot matched; Handle/Index locate
	// the value, BitIndex locates the matched bit for BitMatch lookups.
	MatchedResult
	// MatchedChild means an external bit matched; Handle/Index locate the
	// child node to descend into.
	MatchedChild
)

// MatchResult is the outcome of MatchInternal, MatchExternal or
// MatchSegment.
type MatchResult struct {
	Kind     MatchKind
	Handle   arena.Handle
	Index    uint32
	BitIndex uint32 // only meaningful when Kind == MatchedResult
}

// MatchInternal intersects matchMask with n's internal half. If the
// intersection is non-empty, the most specific match is the bit with the
// largest index in MSB-first numbering, i.e. the rightmost (lowest
// trailing-zero-count) set bit of the intersection.
func (n Node) MatchInternal(matchMask uint32) MatchResult {
	resultMatch := n.Internal() & matchMask
	if resultMatch == 0 {
		return MatchResult{Kind: NoMatch}
	}
	bitIndex := uint32(31 - bits.TrailingZeros32(resultMatch))
	var index uint32
	if bitIndex != 0 {
		index = uint32(bits.OnesCount32(n.Internal() >> (32 - bitIndex)))
	}
	return MatchResult{
		Kind:     MatchedResult,
		Handle:   n.ResultHandle(),
		Index:    index,
		BitIndex: bitIndex,
	}
}

// MatchExternal intersects matchMask with n's external half using the same
// technique as MatchInternal.
func (n Node) MatchExternal(matchMask uint32) MatchResult {
	childMatch := n.External() & matchMask
	if childMatch == 0 {
		return MatchResult{Kind: NoMatch}
	}
	bitIndex := uint32(31 - bits.TrailingZeros32(childMatch))
	var index uint32
	if bitIndex != 0 {
		index = uint32(bits.OnesCount32(n.External() >> (32 - bitIndex)))
	}
	return MatchResult{
		Kind:   MatchedChild,
		Handle: n.ChildHandle(),
		Index:  index,
	}
}

// MatchSegment matches a 4-bit segment against n, preferring a child to
// chase over an internal result.
func (n Node) MatchSegment(segment uint8) MatchResult {
	mm := matchMasks[segment]
	if r := n.MatchExternal(mm); r.Kind != NoMatch {
		return r
	}
	return n.MatchInternal(mm)
}

// MatchMask returns the precomputed match mask for a 4-bit segment value,
// for callers (the trie walk) that need to call MatchInternal/MatchExternal
// directly instead of through MatchSegment.
func MatchMask(segment uint8) uint32 {
	return matchMasks[segment]
}

// GenBitmap returns the single bit encoding a prefix of masklen bits
// (0..4) starting with nibble (0..15).
func GenBitmap(nibble uint8, masklen uint32) uint32 {
	return genBitmap(nibble, masklen)
}

// EndBitMask is the bitmap mask with every bit set except the endnode
// flag; ANDing a GenBitmap result with it strips the flag when the caller
// only wants the data bit.
const EndBitMask = endBitMask

// Wildcard is the length-0 ("*") internal bit, the sole internal bit a
// freshly pushed-down child node is given.
const Wildcard = msb

// BitPrefix describes the nibble value and prefix length (within a single
// 4-bit stride) that a set bit in a node's bitmap represents.
type BitPrefix struct {
	Nibble uint8
	Bits   uint8
}

// bitToPrefix maps a bit index (0..31, excluding the endnode flag at 16)
// back to the (nibble, bits) pair it was produced from, for iteration: the
// inverse of internalLookupTable. Child/external bits share the same
// low-16 layout as row 4, so one table serves both purposes.
var bitToPrefix [32]BitPrefix

func init() {
	for masklen := uint32(0); masklen < 5; masklen++ {
		for nibble := uint8(0); nibble < 16; nibble++ {
			bit := internalLookupTable[masklen][nibble] &^ endBit
			if bit == 0 {
				continue
			}
			idx := bits.TrailingZeros32(bit)
			bitToPrefix[idx] = BitPrefix{Nibble: nibble, Bits: uint8(masklen)}
		}
	}
}

// BitToPrefix returns the (nibble, bits) pair bit index idx was produced
// from by GenBitmap.
func BitToPrefix(idx int) BitPrefix {
	return bitToPrefix[idx]
}
