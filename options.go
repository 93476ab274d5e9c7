// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package treebitmap

import "dario.cat/mergo"

// Options configures construction of a Table. The zero value of every
// field means "use the default"; WithDefaults fills them in.
type Options struct {
	// PreallocIPv4 and PreallocIPv6 hint the number of elements to
	// preallocate in each address family's node and value arenas.
	PreallocIPv4 int
	PreallocIPv6 int
}

// defaultOptions mirrors the zero-preallocation behaviour of New.
var defaultOptions = Options{
	PreallocIPv4: 0,
	PreallocIPv6: 0,
}

// WithDefaults returns a copy of opts with every zero-valued field filled
// in from defaultOptions. A nil opts is treated as an empty Options.
func WithDefaults(opts *Options) (Options, error) {
	merged := Options{}
	if opts != nil {
		merged = *opts
	}
	if err := mergo.Merge(&merged, defaultOptions); err != nil {
		return Options{}, err
	}
	return merged, nil
}
