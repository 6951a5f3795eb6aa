package devctx

import "testing"

// Known-answer vectors published with the Random123 library.
func TestPhilox4x32KnownAnswers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		counter [4]uint32
		key     [2]uint32
		want    [4]uint32
	}{
		{
			counter: [4]uint32{0, 0, 0, 0},
			key:     [2]uint32{0, 0},
			want:    [4]uint32{0x6627e8d5, 0xe169c58d, 0xbc57ac4c, 0x9b00dbd8},
		},
		{
			counter: [4]uint32{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff},
			key:     [2]uint32{0xffffffff, 0xffffffff},
			want:    [4]uint32{0x408f276d, 0x41c83b0e, 0xa20bc7c6, 0x6d5451fd},
		},
		{
			counter: [4]uint32{0x243f6a88, 0x85a308d3, 0x13198a2e, 0x03707344},
			key:     [2]uint32{0xa4093822, 0x299f31d0},
			want:    [4]uint32{0xd16cfe09, 0x94fdcceb, 0x5001e420, 0x24126ea1},
		},
	}
	for _, tc := range tests {
		if got := Philox4x32(tc.counter, tc.key); got != tc.want {
			t.Errorf("Philox4x32(%08x, %08x) = %08x, want %08x", tc.counter, tc.key, got, tc.want)
		}
	}
}

func TestNewPhiloxStateLayout(t *testing.T) {
	t.Parallel()
	const seed = 0x0000000a_0000002a
	s := NewPhiloxState(seed, 7, 0)

	if s.Key != [2]uint32{0x2a, 0x0a} {
		t.Fatalf("key = %08x", s.Key)
	}
	if s.Counter != [4]uint32{0, 0, 7, 0} {
		t.Fatalf("counter = %08x", s.Counter)
	}
	if s.State != 0 {
		t.Fatalf("state = %d", s.State)
	}
	if s.Output != Philox4x32(s.Counter, s.Key) {
		t.Fatal("output block must be generated at init")
	}
}

func TestPhiloxSubsequenceCarry(t *testing.T) {
	t.Parallel()
	s := NewPhiloxState(1, 1<<32|3, 0)
	if s.Counter[2] != 3 || s.Counter[3] != 1 {
		t.Fatalf("counter = %08x", s.Counter)
	}
}

func TestPhiloxNextWalksCounter(t *testing.T) {
	t.Parallel()
	s := NewPhiloxState(42, 0, 0)
	first := s.Output

	for i := range 4 {
		if got := s.Next(); got != first[i] {
			t.Fatalf("value %d = %08x, want %08x", i, got, first[i])
		}
	}
	next := Philox4x32([4]uint32{1, 0, 0, 0}, s.Key)
	if got := s.Next(); got != next[0] {
		t.Fatalf("value 4 = %08x, want %08x", got, next[0])
	}
}

func TestPhiloxOffsetMatchesSkippedValues(t *testing.T) {
	t.Parallel()
	for _, offset := range []uint64{1, 3, 4, 5, 11} {
		walked := NewPhiloxState(99, 2, 0)
		for range offset {
			walked.Next()
		}
		skipped := NewPhiloxState(99, 2, offset)
		for i := range 8 {
			if a, b := walked.Next(), skipped.Next(); a != b {
				t.Fatalf("offset %d value %d: walked %08x, skipped %08x", offset, i, a, b)
			}
		}
	}
}

func TestPhiloxMarshalOffsets(t *testing.T) {
	t.Parallel()
	s := NewPhiloxState(0x1122334455667788, 5, 2)
	s.BoxMullerExtraDouble = 1.5

	buf := make([]byte, PhiloxStateSize)
	s.MarshalTo(buf)
	if buf[32] != 0x88 || buf[36] != 0x44 {
		t.Fatalf("key bytes misplaced: % x", buf[32:40])
	}
	if buf[40] != 2 {
		t.Fatalf("state index misplaced: %d", buf[40])
	}
	got, err := UnmarshalPhiloxState(buf)
	if err != nil {
		t.Fatalf("UnmarshalPhiloxState: %v", err)
	}
	if got != s {
		t.Fatalf("decoded %#v, want %#v", got, s)
	}
	if _, err := UnmarshalPhiloxState(buf[:10]); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestSeedStatesIndependent(t *testing.T) {
	t.Parallel()
	raw := seedStates(7, 16)
	seen := map[[4]uint32]bool{}
	for i := range 16 {
		s, err := UnmarshalPhiloxState(raw[i*PhiloxStateSize:])
		if err != nil {
			t.Fatalf("state %d: %v", i, err)
		}
		if s.Counter[2] != uint32(i) {
			t.Fatalf("state %d has subsequence %d", i, s.Counter[2])
		}
		if seen[s.Output] {
			t.Fatalf("state %d repeats an earlier output block", i)
		}
		seen[s.Output] = true
	}
}
