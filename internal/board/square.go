// Package board holds the shared data types of the sensor board: squares,
// occupancy snapshots and the events exchanged between the sensor feed, the
// move detector and the clock.
package board

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Square identifies a board square, row-major from A1=0 to H8=63.
// The layout matches corentings/chess squares so conversion is a cast.
type Square int8

const (
	A1 Square = iota
	B1
	C1
	D1
	E1
	F1
	G1
	H1
	A2
	B2
	C2
	D2
	E2
	F2
	G2
	H2
	A3
	B3
	C3
	D3
	E3
	F3
	G3
	H3
	A4
	B4
	C4
	D4
	E4
	F4
	G4
	H4
	A5
	B5
	C5
	D5
	E5
	F5
	G5
	H5
	A6
	B6
	C6
	D6
	E6
	F6
	G6
	H6
	A7
	B7
	C7
	D7
	E7
	F7
	G7
	H7
	A8
	B8
	C8
	D8
	E8
	F8
	G8
	H8
)

// NumSquares is the fixed size of every snapshot.
const NumSquares = 64

// NoSquare marks an unset optional square.
const NoSquare Square = -1

// SquareFromIndex validates a raw sensor index.
func SquareFromIndex(i int) (Square, error) {
	if i < 0 || i >= NumSquares {
		return NoSquare, ErrSquareOutOfRange
	}
	return Square(i), nil
}

// SquareAt builds a square from zero-based file (a=0) and rank (1=0).
func SquareAt(file, rank int) (Square, error) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare, ErrSquareOutOfRange
	}
	return Square(rank*8 + file), nil
}

// ParseSquare accepts algebraic names such as "e2" (case-insensitive).
func ParseSquare(name string) (Square, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) != 2 {
		return NoSquare, ErrBadSquareName
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	sq, err := SquareAt(file, rank)
	if err != nil {
		return NoSquare, ErrBadSquareName
	}
	return sq, nil
}

func (s Square) Valid() bool { return s >= 0 && s < NumSquares }

func (s Square) File() int { return int(s) % 8 }

func (s Square) Rank() int { return int(s) / 8 }

// Chess converts to the corentings/chess square with the same index.
func (s Square) Chess() nchess.Square {
	if !s.Valid() {
		return nchess.NoSquare
	}
	return nchess.NewSquare(nchess.File(s.File()), nchess.Rank(s.Rank()))
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return s.Chess().String()
}

// Distance is the king-move (Chebyshev) distance between two squares.
func Distance(a, b Square) int {
	df := a.File() - b.File()
	if df < 0 {
		df = -df
	}
	dr := a.Rank() - b.Rank()
	if dr < 0 {
		dr = -dr
	}
	if df > dr {
		return df
	}
	return dr
}
