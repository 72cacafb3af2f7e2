package board

import (
	"math/bits"
	"strings"
)

// SquareSet is a bitset of squares. Enumeration is always ascending by index.
type SquareSet uint64

func SetOf(squares ...Square) SquareSet {
	var s SquareSet
	for _, sq := range squares {
		s = s.Add(sq)
	}
	return s
}

func (s SquareSet) Add(sq Square) SquareSet {
	if !sq.Valid() {
		return s
	}
	return s | 1<<uint(sq)
}

// Contains reports whether every square of o is in s.
func (s SquareSet) Contains(o SquareSet) bool { return s&o == o }

func (s SquareSet) Intersect(o SquareSet) SquareSet { return s & o }

func (s SquareSet) Len() int { return bits.OnesCount64(uint64(s)) }

func (s SquareSet) Empty() bool { return s == 0 }

// First returns the lowest square, or NoSquare.
func (s SquareSet) First() Square {
	if s == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(uint64(s)))
}

func (s SquareSet) Squares() []Square {
	out := make([]Square, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, Square(bits.TrailingZeros64(v)))
	}
	return out
}

func (s SquareSet) String() string {
	sq := s.Squares()
	names := make([]string, len(sq))
	for i, q := range sq {
		names[i] = q.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}
