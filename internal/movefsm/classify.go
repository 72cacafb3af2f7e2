package movefsm

import "github.com/park285/cheese-board/internal/board"

// Kind names the rule that produced a candidate. It is informational only;
// confirmed events carry squares, not kinds.
type Kind string

const (
	KindMove    Kind = "move"
	KindCastle  Kind = "castle"
	KindCapture Kind = "capture"
)

// Candidate is a classified source/destination pair.
type Candidate struct {
	Source      board.Square
	Destination board.Square
	Kind        Kind
}

type castlePattern struct {
	emptied  board.SquareSet
	occupied board.SquareSet
	king     Candidate
}

var castlePatterns = []castlePattern{
	{board.SetOf(board.E1, board.H1), board.SetOf(board.F1, board.G1), Candidate{board.E1, board.G1, KindCastle}},
	{board.SetOf(board.E1, board.A1), board.SetOf(board.C1, board.D1), Candidate{board.E1, board.C1, KindCastle}},
	{board.SetOf(board.E8, board.H8), board.SetOf(board.F8, board.G8), Candidate{board.E8, board.G8, KindCastle}},
	{board.SetOf(board.E8, board.A8), board.SetOf(board.C8, board.D8), Candidate{board.E8, board.C8, KindCastle}},
}

// Classify maps the difference between two snapshots to a move. Rules are
// tried in order: single move, castling (king squares only), capture heuristic.
// ok is false when the diff matches none of them.
func Classify(prev, cur board.Snapshot) (c Candidate, ok bool) {
	emptied, occupied := board.Diff(prev, cur)
	return classifySets(emptied, occupied)
}

func classifySets(emptied, occupied board.SquareSet) (Candidate, bool) {
	ne, no := emptied.Len(), occupied.Len()

	if ne == 1 && no == 1 {
		return Candidate{emptied.First(), occupied.First(), KindMove}, true
	}

	if ne == 2 && no == 2 {
		for _, p := range castlePatterns {
			if emptied.Contains(p.emptied) && occupied.Contains(p.occupied) {
				return p.king, true
			}
		}
	}

	if no == 1 && ne >= 1 {
		dst := occupied.First()
		return Candidate{nearest(emptied, dst), dst, KindCapture}, true
	}

	return Candidate{}, false
}

// nearest picks the square of set closest to target; ties go to the lowest
// index since Squares() is ascending.
func nearest(set board.SquareSet, target board.Square) board.Square {
	best, bestDist := board.NoSquare, 1<<30
	for _, sq := range set.Squares() {
		if d := board.Distance(sq, target); d < bestDist {
			best, bestDist = sq, d
		}
	}
	return best
}
