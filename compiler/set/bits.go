package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64
	}

	// Bits is a set of small non-negative integer keys.
	Bits[K Key] struct {
		b []uint64
	}
)

func MakeBits[K Key](n int) Bits[K] {
	s := Bits[K]{}

	s.grow((n + 63) / 64)

	return s
}

// Fill sets all keys in [0, n).
func (s *Bits[K]) Fill(n int) {
	for k := 0; k < n; k++ {
		s.Set(K(k))
	}
}

func (s *Bits[K]) Set(k K) {
	i, j := ij(k)

	s.grow(i + 1)

	s.b[i] |= 1 << j
}

func (s *Bits[K]) Clear(k K) {
	i, j := ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s Bits[K]) IsSet(k K) bool {
	i, j := ij(k)

	if k < 0 || i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s *Bits[K]) Or(x Bits[K]) {
	s.grow(len(x.b))

	for i, w := range x.b {
		s.b[i] |= w
	}
}

func (s *Bits[K]) And(x Bits[K]) {
	for i := range s.b {
		if i < len(x.b) {
			s.b[i] &= x.b[i]
		} else {
			s.b[i] = 0
		}
	}
}

func (s Bits[K]) Equal(x Bits[K]) bool {
	n := max(len(s.b), len(x.b))

	for i := 0; i < n; i++ {
		if s.word(i) != x.word(i) {
			return false
		}
	}

	return true
}

func (s Bits[K]) Copy() Bits[K] {
	c := MakeBits[K](0)
	c.Or(s)

	return c
}

func (s Bits[K]) Size() (r int) {
	for _, w := range s.b {
		r += bits.OnesCount64(w)
	}

	return r
}

func (s Bits[K]) Range(f func(k K) bool) {
	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			w &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s Bits[K]) word(i int) uint64 {
	if i < len(s.b) {
		return s.b[i]
	}

	return 0
}

func (s *Bits[K]) grow(n int) {
	for n > len(s.b) {
		s.b = append(s.b, 0)
	}
}

func ij[K Key](k K) (i, j int) {
	return int(k) / 64, int(k) % 64
}
