package devctx

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

const (
	philoxM0 = 0xD2511F53
	philoxM1 = 0xCD9E8D57
	philoxW0 = 0x9E3779B9
	philoxW1 = 0xBB67AE85
)

// PhiloxStateSize is the device size of one state in bytes; the layout
// matches curandStatePhilox4_32_10_t.
const PhiloxStateSize = 64

// PhiloxState is one Philox4x32-10 generator state.
type PhiloxState struct {
	Counter              [4]uint32
	Output               [4]uint32
	Key                  [2]uint32
	State                uint32
	BoxMullerFlag        int32
	BoxMullerFlagDouble  int32
	BoxMullerExtra       float32
	BoxMullerExtraDouble float64
}

// Philox4x32 applies ten Philox rounds to counter under key.
func Philox4x32(counter [4]uint32, key [2]uint32) [4]uint32 {
	for i := range 10 {
		if i > 0 {
			key[0] += philoxW0
			key[1] += philoxW1
		}
		hi0, lo0 := bits.Mul32(philoxM0, counter[0])
		hi1, lo1 := bits.Mul32(philoxM1, counter[2])
		counter = [4]uint32{hi1 ^ counter[1] ^ key[0], lo1, hi0 ^ counter[3] ^ key[1], lo0}
	}
	return counter
}

// NewPhiloxState seeds a state the way curand_init(seed, subsequence, offset)
// does: subsequence selects a disjoint stream of 2^66 values, offset skips
// values within it.
func NewPhiloxState(seed, subsequence, offset uint64) PhiloxState {
	s := PhiloxState{Key: [2]uint32{uint32(seed), uint32(seed >> 32)}}
	s.skipSequence(subsequence)
	s.skip(offset)
	return s
}

func (s *PhiloxState) skipSequence(n uint64) {
	lo, hi := uint32(n), uint32(n>>32)
	s.Counter[2] += lo
	if s.Counter[2] < lo {
		hi++
	}
	s.Counter[3] += hi
}

func (s *PhiloxState) skip(offset uint64) {
	s.State += uint32(offset & 3)
	offset /= 4
	if s.State > 3 {
		offset++
		s.State -= 4
	}
	s.increment(offset)
	s.Output = Philox4x32(s.Counter, s.Key)
}

// increment adds n to the 128-bit counter.
func (s *PhiloxState) increment(n uint64) {
	lo, hi := uint32(n), uint32(n>>32)
	var carry uint32
	s.Counter[0], carry = bits.Add32(s.Counter[0], lo, 0)
	s.Counter[1], carry = bits.Add32(s.Counter[1], hi, carry)
	s.Counter[2], carry = bits.Add32(s.Counter[2], 0, carry)
	s.Counter[3], _ = bits.Add32(s.Counter[3], 0, carry)
}

// Next returns the next 32-bit value, as curand() does on the device.
func (s *PhiloxState) Next() uint32 {
	v := s.Output[s.State]
	s.State++
	if s.State == 4 {
		s.increment(1)
		s.Output = Philox4x32(s.Counter, s.Key)
		s.State = 0
	}
	return v
}

// MarshalTo writes the device layout of s into b, which must hold
// PhiloxStateSize bytes.
func (s *PhiloxState) MarshalTo(b []byte) {
	le := binary.LittleEndian
	for i, v := range s.Counter {
		le.PutUint32(b[4*i:], v)
	}
	for i, v := range s.Output {
		le.PutUint32(b[16+4*i:], v)
	}
	le.PutUint32(b[32:], s.Key[0])
	le.PutUint32(b[36:], s.Key[1])
	le.PutUint32(b[40:], s.State)
	le.PutUint32(b[44:], uint32(s.BoxMullerFlag))
	le.PutUint32(b[48:], uint32(s.BoxMullerFlagDouble))
	le.PutUint32(b[52:], math.Float32bits(s.BoxMullerExtra))
	le.PutUint64(b[56:], math.Float64bits(s.BoxMullerExtraDouble))
}

// UnmarshalPhiloxState decodes one state from its device layout.
func UnmarshalPhiloxState(b []byte) (PhiloxState, error) {
	if len(b) < PhiloxStateSize {
		return PhiloxState{}, fmt.Errorf("philox state needs %d bytes, got %d", PhiloxStateSize, len(b))
	}
	le := binary.LittleEndian
	var s PhiloxState
	for i := range s.Counter {
		s.Counter[i] = le.Uint32(b[4*i:])
	}
	for i := range s.Output {
		s.Output[i] = le.Uint32(b[16+4*i:])
	}
	s.Key[0] = le.Uint32(b[32:])
	s.Key[1] = le.Uint32(b[36:])
	s.State = le.Uint32(b[40:])
	s.BoxMullerFlag = int32(le.Uint32(b[44:]))
	s.BoxMullerFlagDouble = int32(le.Uint32(b[48:]))
	s.BoxMullerExtra = math.Float32frombits(le.Uint32(b[52:]))
	s.BoxMullerExtraDouble = math.Float64frombits(le.Uint64(b[56:]))
	return s, nil
}

// seedStates returns the device image of states [0, n) for seed.
func seedStates(seed uint64, n int) []byte {
	buf := make([]byte, n*PhiloxStateSize)
	for i := range n {
		s := NewPhiloxState(seed, uint64(i), 0)
		s.MarshalTo(buf[i*PhiloxStateSize:])
	}
	return buf
}
