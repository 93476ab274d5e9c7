// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package golden

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"
)

// GoldTable is a simple and slow route table, implemented as a slice of prefixes
// and values as a golden reference for Table.
type GoldTable[V any] []GoldTableItem[V]

type GoldTableItem[V any] struct {
	Pfx netip.Prefix
	Val V
}

func (g GoldTableItem[V]) String() string {
	return fmt.Sprintf("(%s, %v)", g.Pfx, g.Val)
}

func (t *GoldTable[V]) Insert(pfx netip.Prefix, val V) {
	pfx = pfx.Masked()
	for i, item := range *t {
		if item.Pfx == pfx {
			(*t)[i].Val = val // de-dupe
			return
		}
	}
	*t = append(*t, GoldTableItem[V]{pfx, val})
}

func (t *GoldTable[V]) Delete(pfx netip.Prefix) (exists bool) {
	pfx = pfx.Masked()

	for i, item := range *t {
		if item.Pfx == pfx {
			*t = slices.Delete(*t, i, i+1)
			return true
		}
	}
	return false
}

func (t GoldTable[V]) AllSorted() []netip.Prefix {
	var result []netip.Prefix

	for _, item := range t {
		result = append(result, item.Pfx)
	}
	slices.SortFunc(result, CmpPrefix)
	return result
}

func (t GoldTable[V]) Get(pfx netip.Prefix) (val V, ok bool) {
	pfx = pfx.Masked()
	for _, item := range t {
		if item.Pfx == pfx {
			return item.Val, true
		}
	}
	return val, false
}

func (t GoldTable[V]) Lookup(addr netip.Addr) (val V, ok bool) {
	bestLen := -1

	for _, item := range t {
		if item.Pfx.Contains(addr) && item.Pfx.Bits() > bestLen {
			val = item.Val
			ok = true
			bestLen = item.Pfx.Bits()
		}
	}
	return val, ok
}

// Sort, inplace by netip.Prefix, all prefixes are in normalized form
func (t *GoldTable[V]) Sort() {
	slices.SortFunc(*t, func(a, b GoldTableItem[V]) int {
		return CmpPrefix(a.Pfx, b.Pfx)
	})
}

// CmpPrefix, helper function, compare func for prefix sort,
// all cidrs are already normalized
func CmpPrefix(a, b netip.Prefix) int {
	if cmpAddr := a.Addr().Compare(b.Addr()); cmpAddr != 0 {
		return cmpAddr
	}

	return cmp.Compare(a.Bits(), b.Bits())
}
