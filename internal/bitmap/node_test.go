package bitmap

import "testing"

func TestNodeNew(t *testing.T) {
	var n Node
	if !n.IsBlank() {
		t.Fatal("zero-value Node should be blank")
	}
}

func TestMatchSegment(t *testing.T) {
	var n Node
	n.MakeEndnode()
	n.SetInternal(msb >> 2) // 1*
	n.SetInternal(msb >> 4) // 01*
	n.SetInternal(msb >> 9) // 010*

	if got := n.MatchSegment(0b1111); got.Kind != MatchedResult {
		t.Fatalf("MatchSegment(1111) kind = %v, want MatchedResult", got.Kind)
	}
	if got := n.MatchSegment(0b0011); got.Kind != NoMatch {
		t.Fatalf("MatchSegment(0011) kind = %v, want NoMatch", got.Kind)
	}

	var child Node
	child.SetExternal(msb >> 23) // 0111*

	if got := child.MatchSegment(0b0011); got.Kind != NoMatch {
		t.Fatalf("MatchSegment(0011) kind = %v, want NoMatch", got.Kind)
	}
	if got := child.MatchSegment(0b0111); got.Kind != MatchedChild {
		t.Fatalf("MatchSegment(0111) kind = %v, want MatchedChild", got.Kind)
	}
}

func TestNodeEndnodeInvariants(t *testing.T) {
	var n Node
	n.SetExternal(1 << 5)
	defer func() {
		if recover() == nil {
			t.Fatal("MakeEndnode with children present should panic")
		}
	}()
	n.MakeEndnode()
}

func TestNodePushDownBitLayout(t *testing.T) {
	var n Node
	n.MakeEndnode()
	for nibble := uint8(0); nibble < 16; nibble++ {
		bit := GenBitmap(nibble, 4) & EndBitMask
		n.SetInternal(bit)
	}
	if got := n.ResultCount(); got != 16 {
		t.Fatalf("ResultCount() = %d, want 16", got)
	}
	if got := n.Internal() & intMask; got != 0 {
		t.Fatalf("length-4 slots leaked into the high half: %032b", got)
	}
}

func TestGenBitmapMasklens(t *testing.T) {
	for masklen := uint32(0); masklen < 4; masklen++ {
		seen := uint32(0)
		for nibble := uint8(0); nibble < 16; nibble++ {
			bit := GenBitmap(nibble, masklen)
			if bit == 0 {
				continue
			}
			if seen&bit != 0 {
				t.Fatalf("masklen %d: bit collision at nibble %d", masklen, nibble)
			}
			seen |= bit
		}
	}
}
