package board

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Occupancy is the binary sensor reading of a square.
type Occupancy uint8

const (
	Empty Occupancy = iota
	Occupied
)

func (o Occupancy) String() string {
	if o == Occupied {
		return "occupied"
	}
	return "empty"
}

// ParseOccupancy accepts "empty"/"occupied" and the short forms "0"/"1".
func ParseOccupancy(s string) (Occupancy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "empty", "0", "false":
		return Empty, nil
	case "occupied", "1", "true":
		return Occupied, nil
	default:
		return Empty, ErrBadOccupancy
	}
}

// Snapshot is the occupancy of all 64 squares. It is a value type: copies are
// independent.
type Snapshot [NumSquares]Occupancy

// EmptySnapshot has no pieces on the board.
func EmptySnapshot() Snapshot { return Snapshot{} }

// StartingSnapshot is the occupancy of the standard initial position.
func StartingSnapshot() Snapshot {
	return SnapshotFromBoard(nchess.NewGame().Position().Board())
}

// SnapshotFromBoard projects a chess position onto occupancy.
func SnapshotFromBoard(b *nchess.Board) Snapshot {
	var s Snapshot
	if b == nil {
		return s
	}
	for i := 0; i < NumSquares; i++ {
		if b.Piece(Square(i).Chess()) != nchess.NoPiece {
			s[i] = Occupied
		}
	}
	return s
}

func (s Snapshot) At(sq Square) Occupancy {
	if !sq.Valid() {
		return Empty
	}
	return s[sq]
}

// With returns a copy with sq set to occ.
func (s Snapshot) With(sq Square, occ Occupancy) Snapshot {
	if sq.Valid() {
		s[sq] = occ
	}
	return s
}

// Apply returns a copy with every square in emptied cleared and then every
// square in occupied filled.
func (s Snapshot) Apply(emptied, occupied SquareSet) Snapshot {
	for _, sq := range emptied.Squares() {
		s[sq] = Empty
	}
	for _, sq := range occupied.Squares() {
		s[sq] = Occupied
	}
	return s
}

// Count returns the number of occupied squares.
func (s Snapshot) Count() int {
	n := 0
	for _, o := range s {
		if o == Occupied {
			n++
		}
	}
	return n
}

// Diff returns the squares that flipped Occupied→Empty and Empty→Occupied from
// prev to cur.
func Diff(prev, cur Snapshot) (emptied, occupied SquareSet) {
	for i := 0; i < NumSquares; i++ {
		switch {
		case prev[i] == Occupied && cur[i] == Empty:
			emptied = emptied.Add(Square(i))
		case prev[i] == Empty && cur[i] == Occupied:
			occupied = occupied.Add(Square(i))
		}
	}
	return emptied, occupied
}

// Ranks renders the board as eight strings from rank 8 down to rank 1,
// 'x' for occupied and '.' for empty.
func (s Snapshot) Ranks() []string {
	out := make([]string, 0, 8)
	for rank := 7; rank >= 0; rank-- {
		var b strings.Builder
		for file := 0; file < 8; file++ {
			if s[rank*8+file] == Occupied {
				b.WriteByte('x')
			} else {
				b.WriteByte('.')
			}
		}
		out = append(out, b.String())
	}
	return out
}

func (s Snapshot) String() string { return strings.Join(s.Ranks(), "/") }
