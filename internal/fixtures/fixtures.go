// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package fixtures loads and prepares the "real-world" prefix lists used
// by the cross-validation tests and the demo command: a gzip
// BGP-dump-style line loader and a helper that de-duplicates a prefix
// list, such as the output of internal/golden's synthetic generators.
package fixtures

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"net/netip"
	"os"
	"strings"

	set3 "github.com/TomTonic/Set3"
)

// LoadGzipPrefixes reads a gzip-compressed file of one CIDR per line (the
// format of a plain-text BGP table dump) and returns the masked prefixes.
func LoadGzipPrefixes(path string) ([]netip.Prefix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: open %s: %w", path, err)
	}
	defer file.Close()

	rgz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("fixtures: gzip reader for %s: %w", path, err)
	}
	defer rgz.Close()

	var pfxs []netip.Prefix
	scanner := bufio.NewScanner(rgz)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pfx, err := netip.ParsePrefix(line)
		if err != nil {
			return nil, fmt.Errorf("fixtures: parsing %q in %s: %w", line, path, err)
		}
		pfxs = append(pfxs, pfx.Masked())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fixtures: reading %s: %w", path, err)
	}
	return pfxs, nil
}

// Dedupe removes duplicate prefixes from pfxs, preserving the order of
// first occurrence.
func Dedupe(pfxs []netip.Prefix) []netip.Prefix {
	seen := set3.EmptyWithCapacity[netip.Prefix](uint32(len(pfxs)))
	out := make([]netip.Prefix, 0, len(pfxs))

	for _, pfx := range pfxs {
		before := seen.Size()
		seen.Add(pfx)
		if seen.Size() != before {
			out = append(out, pfx)
		}
	}
	return out
}
