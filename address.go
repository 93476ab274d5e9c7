// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package treebitmap

import "net/netip"

// nibbles splits addr into its MSB-first 4-bit groups: 8 nibbles for an
// IPv4 address, 32 for IPv6. addr must be a 4-in-6 unmapped, valid address.
func nibbles(addr netip.Addr) []uint8 {
	if addr.Is4() {
		b := addr.As4()
		return byteNibbles(b[:])
	}
	b := addr.As16()
	return byteNibbles(b[:])
}

func byteNibbles(bs []byte) []uint8 {
	out := make([]uint8, 0, len(bs)*2)
	for _, b := range bs {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

// fromNibbles reconstructs an address from a nibble slice, taking as many
// nibbles as fit the requested width and zero-padding the rest. is4
// selects a 4-byte (IPv4) or 16-byte (IPv6) reconstruction.
func fromNibbles(ns []uint8, is4 bool) netip.Addr {
	width := 16
	if is4 {
		width = 4
	}
	var buf [16]byte
	for i := 0; i < width*2 && i < len(ns); i++ {
		if i%2 == 0 {
			buf[i/2] = ns[i] << 4
		} else {
			buf[i/2] |= ns[i]
		}
	}
	if is4 {
		return netip.AddrFrom4([4]byte(buf[:4]))
	}
	return netip.AddrFrom16(buf)
}

// prefixNibbles returns the MSB-first nibbles of pfx's masked address and
// its bit length, ready to feed internal/trie.
func prefixNibbles(pfx netip.Prefix) ([]uint8, uint32) {
	pfx = pfx.Masked()
	return nibbles(pfx.Addr()), uint32(pfx.Bits())
}
