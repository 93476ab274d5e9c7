// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command demo exercises treebitmap.SyncTable under concurrent readers and
// a writer, in the style of a small routing-table workload: one goroutine
// keeps inserting batches of synthetic real-world prefixes, another prunes
// a slice of them, and several readers hammer LongestMatch concurrently.
package main

import (
	"log"
	"math/rand/v2"
	"net/netip"
	"sync"
	"time"

	"github.com/lpmtrie/treebitmap"
	"github.com/lpmtrie/treebitmap/internal/fixtures"
	"github.com/lpmtrie/treebitmap/internal/golden"
)

func main() {
	log.SetFlags(log.Lmicroseconds)
	prng := rand.New(rand.NewPCG(42, 42))

	var table treebitmap.SyncTable[int]

	// Dedupe before insertion the way a BGP-dump ingest would.
	// RandomRealWorldPrefixes already returns distinct prefixes, so here
	// Dedupe leaves the batch unchanged.
	initial := fixtures.Dedupe(golden.RandomRealWorldPrefixes(prng, 50_000))
	ts := time.Now()
	for i, pfx := range initial {
		table.Insert(pfx, i)
	}
	log.Printf("inserted %d prefixes in %v, Len() = %d", len(initial), time.Since(ts), table.Len())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readerPrng := rand.New(rand.NewPCG(uint64(i), 0))
			for {
				select {
				case <-stop:
					return
				default:
				}
				addr := golden.RandomAddr(readerPrng)
				table.LongestMatch(addr)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for i, pfx := range fixtures.Dedupe(golden.RandomRealWorldPrefixes(prng, 1_000)) {
				table.Insert(pfx, i)
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			var victims []netip.Prefix
			for e := range table.All() {
				victims = append(victims, e.Prefix)
				if len(victims) >= 100 {
					break
				}
			}
			for _, pfx := range victims {
				table.Remove(pfx)
			}
			time.Sleep(200 * time.Millisecond)
		}
	}()

	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		nodeBytes, resultBytes := table.MemUsage()
		log.Printf("Len() = %d, node bytes = %d, result bytes = %d", table.Len(), nodeBytes, resultBytes)
	}
	close(stop)
	wg.Wait()
}
