package trie

import (
	"net"
	"testing"
)

// nibbles expands a byte slice into MSB-first 4-bit nibbles, two per byte.
func nibbles(bs []byte) []uint8 {
	out := make([]uint8, 0, len(bs)*2)
	for _, b := range bs {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

func v4(s string) []uint8 {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		panic("bad IPv4 literal: " + s)
	}
	return nibbles(ip)
}

func v6(s string) []uint8 {
	ip := net.ParseIP(s).To16()
	if ip == nil {
		panic("bad IPv6 literal: " + s)
	}
	return nibbles(ip)
}

func TestScenario1(t *testing.T) {
	tr := New[int]()

	if _, existed := tr.Insert(v4("10.0.0.0"), 8, 1); existed {
		t.Fatal("unexpected prior value")
	}
	tr.Insert(v4("10.0.10.0"), 24, 2)
	tr.Insert(v4("10.0.10.9"), 32, 3)

	bitsMatched, val, ok := tr.LongestMatch(v4("10.0.10.10"))
	if !ok || bitsMatched != 24 || val != 2 {
		t.Fatalf("longest_match(10.0.10.10) = (%d, %d, %v), want (24, 2, true)", bitsMatched, val, ok)
	}

	bitsMatched, val, ok = tr.LongestMatch(v4("10.0.10.9"))
	if !ok || bitsMatched != 32 || val != 3 {
		t.Fatalf("longest_match(10.0.10.9) = (%d, %d, %v), want (32, 3, true)", bitsMatched, val, ok)
	}

	removed, ok := tr.Remove(v4("10.0.10.0"), 24)
	if !ok || removed != 2 {
		t.Fatalf("remove(10.0.10.0/24) = (%d, %v), want (2, true)", removed, ok)
	}

	bitsMatched, val, ok = tr.LongestMatch(v4("10.0.10.10"))
	if !ok || bitsMatched != 8 || val != 1 {
		t.Fatalf("longest_match(10.0.10.10) after remove = (%d, %d, %v), want (8, 1, true)", bitsMatched, val, ok)
	}
}

func TestScenario2InsertIdempotence(t *testing.T) {
	tr := New[int]()

	old, existed := tr.Insert(v4("10.0.0.0"), 8, 1)
	if existed {
		t.Fatalf("first insert reported existed, old=%d", old)
	}
	old, existed = tr.Insert(v4("10.0.0.0"), 8, 2)
	if !existed || old != 1 {
		t.Fatalf("second insert = (%d, %v), want (1, true)", old, existed)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
}

func TestScenario3(t *testing.T) {
	tr := New[string]()
	tr.Insert(v4("192.168.4.0"), 24, "a")
	tr.Insert(v4("192.168.4.4"), 32, "b")
	tr.Insert(v4("192.168.0.0"), 16, "c")
	tr.Insert(v4("192.95.5.64"), 27, "d")
	tr.Insert(v4("0.0.0.0"), 0, "e")

	cases := []struct {
		addr string
		want string
	}{
		{"192.168.4.20", "a"},
		{"192.168.200.182", "c"},
		{"192.95.5.96", "e"},
	}
	for _, c := range cases {
		_, val, ok := tr.LongestMatch(v4(c.addr))
		if !ok || val != c.want {
			t.Fatalf("longest_match(%s) = (%v, %v), want %q", c.addr, val, ok, c.want)
		}
	}
}

func TestScenario4NoMatch(t *testing.T) {
	tr := New[int]()
	tr.Insert(v4("10.0.0.0"), 8, 1)
	tr.Insert(v4("172.16.0.0"), 12, 2)
	tr.Insert(v4("192.168.0.0"), 16, 3)

	if _, _, ok := tr.LongestMatch(v4("200.200.200.200")); ok {
		t.Fatal("longest_match(200.200.200.200) should not match any private-space prefix")
	}
}

func TestScenario5IPv6(t *testing.T) {
	tr := New[int]()
	tr.Insert(v6("2a00:1450::"), 32, 1)

	bitsMatched, val, ok := tr.LongestMatch(v6("2a00:1450:400f:804::2004"))
	if !ok || bitsMatched != 32 || val != 1 {
		t.Fatalf("longest_match = (%d, %d, %v), want (32, 1, true)", bitsMatched, val, ok)
	}

	if _, _, ok := tr.LongestMatch(v6("2000:1000::f00")); ok {
		t.Fatal("longest_match(2000:1000::f00) should not match")
	}
}

func TestScenario6IPv6Overlapping(t *testing.T) {
	tr := New[string]()
	tr.Insert(v6("2404:6800::"), 32, "g")
	tr.Insert(v6("2404:6800:4004:800::"), 64, "h")
	tr.Insert(v6("2404:6800:4004:800:dead:beef:dead:beef"), 128, "a")

	_, val, ok := tr.LongestMatch(v6("2404:6800:4004:800:dead:beef:dead:beef"))
	if !ok || val != "a" {
		t.Fatalf("longest_match(/128 addr) = (%v, %v), want a", val, ok)
	}

	_, val, ok = tr.LongestMatch(v6("2404:6800:4004:800::1"))
	if !ok || val != "h" {
		t.Fatalf("longest_match(sibling in /64) = (%v, %v), want h", val, ok)
	}

	_, val, ok = tr.LongestMatch(v6("2404:6800:1::1"))
	if !ok || val != "g" {
		t.Fatalf("longest_match(outside /64, inside /32) = (%v, %v), want g", val, ok)
	}
}

func TestRemoveRoundTrip(t *testing.T) {
	tr := New[int]()
	tr.Insert(v4("10.0.10.9"), 32, 3)

	if _, ok := tr.ExactMatch(v4("10.0.10.9"), 32); !ok {
		t.Fatal("exact_match should find the freshly inserted prefix")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}

	val, ok := tr.Remove(v4("10.0.10.9"), 32)
	if !ok || val != 3 {
		t.Fatalf("Remove = (%d, %v), want (3, true)", val, ok)
	}
	if _, ok := tr.ExactMatch(v4("10.0.10.9"), 32); ok {
		t.Fatal("exact_match should fail after remove")
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
}

func TestRemoveNonexistent(t *testing.T) {
	tr := New[int]()
	tr.Insert(v4("10.0.0.0"), 8, 1)

	if _, ok := tr.Remove(v4("10.0.0.0"), 16); ok {
		t.Fatal("removing an unrelated masklen should fail")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
}

func TestExactMatchDistinctFromLongestMatch(t *testing.T) {
	tr := New[int]()
	tr.Insert(v4("10.0.0.0"), 8, 1)
	tr.Insert(v4("10.0.10.0"), 24, 2)

	if _, ok := tr.ExactMatch(v4("10.0.10.10"), 24); ok {
		t.Fatal("exact_match should require the exact stored prefix, not just coverage")
	}
	if val, ok := tr.ExactMatch(v4("10.0.10.0"), 24); !ok || val != 2 {
		t.Fatalf("exact_match(10.0.10.0/24) = (%d, %v), want (2, true)", val, ok)
	}
}

func TestIterCompleteness(t *testing.T) {
	tr := New[int]()
	inserted := map[string]int{}

	put := func(addr string, masklen uint32, val int) {
		tr.Insert(v4(addr), masklen, val)
		inserted[addr] = val
	}
	put("10.0.0.0", 8, 1)
	put("10.0.10.0", 24, 2)
	put("10.0.10.9", 32, 3)
	put("192.168.4.0", 24, 4)
	put("0.0.0.0", 0, 5)

	seen := map[int]int{}
	count := 0
	for e := range tr.All() {
		seen[e.Value]++
		count++
	}
	if count != tr.Len() {
		t.Fatalf("iterated %d entries, Len() = %d", count, tr.Len())
	}
	for _, val := range inserted {
		if seen[val] != 1 {
			t.Fatalf("value %d seen %d times, want 1", val, seen[val])
		}
	}

	tr.Remove(v4("10.0.10.0"), 24)
	count = 0
	for e := range tr.All() {
		if e.Value == 2 {
			t.Fatal("removed value 2 should not appear in iteration")
		}
		count++
	}
	if count != tr.Len() {
		t.Fatalf("after remove: iterated %d entries, Len() = %d", count, tr.Len())
	}
}

func TestIterEarlyStop(t *testing.T) {
	tr := New[int]()
	tr.Insert(v4("10.0.0.0"), 8, 1)
	tr.Insert(v4("10.0.10.0"), 24, 2)
	tr.Insert(v4("10.0.10.9"), 32, 3)

	n := 0
	for range tr.All() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early-stopped iteration ran %d times, want 1", n)
	}
}

func TestPushDownDeepOverlap(t *testing.T) {
	// 10.0.0.0/8 terminates as a length-4 internal entry in the endnode
	// reached after one branch. 10.16.0.0/12 shares that same node and
	// segment value but must branch past it, forcing push_down to convert
	// the endnode into a normal node with the /8's value relocated into a
	// freshly pushed-down child before the /12 can be added beneath it.
	tr := New[int]()
	tr.Insert(v4("10.0.0.0"), 8, 1)
	tr.Insert(v4("10.16.0.0"), 12, 2)

	if val, ok := tr.ExactMatch(v4("10.0.0.0"), 8); !ok || val != 1 {
		t.Fatalf("exact_match(/8) after push-down = (%d, %v), want (1, true)", val, ok)
	}
	if val, ok := tr.ExactMatch(v4("10.16.0.0"), 12); !ok || val != 2 {
		t.Fatalf("exact_match(/12) after push-down = (%d, %v), want (2, true)", val, ok)
	}

	if bitsMatched, _, ok := tr.LongestMatch(v4("10.16.5.5")); !ok || bitsMatched != 12 {
		t.Fatalf("longest_match(10.16.5.5) bits = %d, want 12", bitsMatched)
	}
	if bitsMatched, _, ok := tr.LongestMatch(v4("10.5.5.5")); !ok || bitsMatched != 8 {
		t.Fatalf("longest_match(10.5.5.5) bits = %d, want 8", bitsMatched)
	}
}

func TestDefaultRouteOnly(t *testing.T) {
	tr := New[string]()
	tr.Insert(v4("0.0.0.0"), 0, "default")

	_, val, ok := tr.LongestMatch(v4("8.8.8.8"))
	if !ok || val != "default" {
		t.Fatalf("longest_match with only a default route = (%v, %v), want default", val, ok)
	}
}
