// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package treebitmap

import (
	"iter"
	"net/netip"
	"sync"
)

// SyncTable wraps a Table with a sync.RWMutex, satisfying the "exclusive
// access for mutation, shared access for lookup" concurrency contract: any
// number of goroutines may call the read methods concurrently with each
// other, but Insert/Remove take an exclusive lock.
//
// The zero value is ready to use.
type SyncTable[V any] struct {
	mu sync.RWMutex
	t  Table[V]
}

// Insert adds value for pfx under an exclusive lock.
func (s *SyncTable[V]) Insert(pfx netip.Prefix, value V) (old V, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Insert(pfx, value)
}

// Remove deletes the exact prefix pfx under an exclusive lock.
func (s *SyncTable[V]) Remove(pfx netip.Prefix) (val V, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Remove(pfx)
}

// ExactMatch reports whether pfx was inserted, under a shared lock.
func (s *SyncTable[V]) ExactMatch(pfx netip.Prefix) (val V, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.ExactMatch(pfx)
}

// LongestMatch returns the most specific prefix covering addr, under a
// shared lock.
func (s *SyncTable[V]) LongestMatch(addr netip.Addr) (pfx netip.Prefix, val V, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.LongestMatch(addr)
}

// Len returns the total number of prefixes stored, under a shared lock.
func (s *SyncTable[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.Len()
}

// IsEmpty reports whether the table holds no prefixes, under a shared lock.
func (s *SyncTable[V]) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.IsEmpty()
}

// MemUsage returns (nodeBytes, resultBytes) under a shared lock.
func (s *SyncTable[V]) MemUsage() (nodeBytes, resultBytes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.MemUsage()
}

// All returns a snapshot iterator over every stored prefix: the entries
// are collected under a shared lock before the first value is yielded, so
// the lock is not held across the full iteration.
func (s *SyncTable[V]) All() iter.Seq[Entry[V]] {
	s.mu.RLock()
	entries := make([]Entry[V], 0, s.t.Len())
	for e := range s.t.All() {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	return func(yield func(Entry[V]) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}
}
