package cascade

import (
	"math/rand"
	"testing"
)

func TestFromBitStringRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"1010101010101010",
		"111111111111111111111111111111111111111111111111111111111111111111",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			k, err := FromBitString(s)
			if err != nil {
				t.Fatalf("FromBitString(%q): %v", s, err)
			}
			if got := k.String(); got != s {
				t.Fatalf("round trip: got %q, want %q", got, s)
			}
			if k.NrBits() != uint32(len(s)) {
				t.Fatalf("NrBits() = %d, want %d", k.NrBits(), len(s))
			}
		})
	}
}

func TestFromBitStringRejectsGarbage(t *testing.T) {
	if _, err := FromBitString("1012"); err == nil {
		t.Fatal("expected an error for a non-binary string")
	}
}

func TestGetSetFlipBit(t *testing.T) {
	k := NewBitKey(10)
	for i := uint32(0); i < 10; i++ {
		if bit, err := k.GetBit(i); err != nil || bit != 0 {
			t.Fatalf("bit %d: got (%d, %v), want (0, nil)", i, bit, err)
		}
	}

	if err := k.SetBit(3, 1); err != nil {
		t.Fatalf("SetBit: %v", err)
	}
	if bit, _ := k.GetBit(3); bit != 1 {
		t.Fatalf("bit 3 = %d, want 1", bit)
	}

	if err := k.FlipBit(3); err != nil {
		t.Fatalf("FlipBit: %v", err)
	}
	if bit, _ := k.GetBit(3); bit != 0 {
		t.Fatalf("bit 3 after flip = %d, want 0", bit)
	}

	if _, err := k.GetBit(10); err == nil {
		t.Fatal("expected ErrIndexOutOfRange for bit 10 of a 10-bit key")
	}
}

func TestRangeParitySingleBitBlocks(t *testing.T) {
	k, err := FromBitString("10110")
	if err != nil {
		t.Fatalf("FromBitString: %v", err)
	}
	for i := uint32(0); i < 5; i++ {
		want, _ := k.GetBit(i)
		got, err := k.RangeParity(i, i)
		if err != nil {
			t.Fatalf("RangeParity(%d,%d): %v", i, i, err)
		}
		if got != want {
			t.Fatalf("RangeParity(%d,%d) = %d, want %d", i, i, got, want)
		}
	}
}

func TestRangeParityMatchesNaiveXOR(t *testing.T) {
	k, err := FromBitString("110100101101001011010010110100101")
	if err != nil {
		t.Fatalf("FromBitString: %v", err)
	}
	n := k.NrBits()
	for start := uint32(0); start < n; start += 3 {
		for end := start; end < n; end += 5 {
			naive := uint8(0)
			for i := start; i <= end; i++ {
				bit, _ := k.GetBit(i)
				naive ^= bit
			}
			got, err := k.RangeParity(start, end)
			if err != nil {
				t.Fatalf("RangeParity(%d,%d): %v", start, end, err)
			}
			if got != naive {
				t.Fatalf("RangeParity(%d,%d) = %d, want %d (naive)", start, end, got, naive)
			}
		}
	}
}

func TestRangeParityRejectsInvertedRange(t *testing.T) {
	k := NewBitKey(8)
	if _, err := k.RangeParity(5, 2); err == nil {
		t.Fatal("expected an error when start > end")
	}
}

func TestNrBitsDifferent(t *testing.T) {
	a, _ := FromBitString("11110000")
	b, _ := FromBitString("11111111")
	diff, err := a.NrBitsDifferent(b)
	if err != nil {
		t.Fatalf("NrBitsDifferent: %v", err)
	}
	if diff != 4 {
		t.Fatalf("NrBitsDifferent = %d, want 4", diff)
	}
}

func TestNrBitsDifferentRejectsLengthMismatch(t *testing.T) {
	a := NewBitKey(8)
	b := NewBitKey(16)
	if _, err := a.NrBitsDifferent(b); err == nil {
		t.Fatal("expected an error for mismatched key lengths")
	}
}

func TestApplyNoiseIsNoOpBelowOneExpectedError(t *testing.T) {
	k := NewBitKey(4)
	k.SetEstimatedBER(0.01) // round(0.01*4) == 0
	before := k.Clone()
	flipped := k.ApplyNoise(rand.New(rand.NewSource(1)))
	if len(flipped) != 0 {
		t.Fatalf("expected no flips, got %v", flipped)
	}
	if diff, _ := k.NrBitsDifferent(before); diff != 0 {
		t.Fatalf("key changed despite zero expected errors")
	}
}

func TestApplyNoiseFlipsExpectedCount(t *testing.T) {
	k := NewBitKey(1000)
	k.SetEstimatedBER(0.05) // round(0.05*1000) == 50
	before := k.Clone()
	flipped := k.ApplyNoise(rand.New(rand.NewSource(42)))
	if len(flipped) != 50 {
		t.Fatalf("ApplyNoise flipped %d bits, want 50", len(flipped))
	}
	diff, _ := k.NrBitsDifferent(before)
	if diff != 50 {
		t.Fatalf("NrBitsDifferent after ApplyNoise = %d, want 50", diff)
	}
	seen := make(map[uint32]bool, len(flipped))
	for _, bit := range flipped {
		if seen[bit] {
			t.Fatalf("ApplyNoise returned duplicate bit index %d", bit)
		}
		seen[bit] = true
	}
}

func BenchmarkRangeParity(b *testing.B) {
	k := NewBitKey(10000)
	rng := rand.New(rand.NewSource(7))
	k.SetEstimatedBER(0.5)
	k.ApplyNoise(rng)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.RangeParity(0, k.NrBits()-1)
	}
}
