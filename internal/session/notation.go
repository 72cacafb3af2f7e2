package session

import (
	nchess "github.com/corentings/chess/v2"
)

// notation replays confirmed moves on a rules-aware board so each one can be
// annotated with SAN. Occupancy sensors cannot see piece types, so the first
// move that does not decode (illegal, or an unseen piece swap) stops the
// replay for the rest of the game.
type notation struct {
	game *nchess.Game
	lost bool
}

func newNotation() *notation { return &notation{game: nchess.NewGame()} }

// push applies uci and returns its SAN, or "" once the replay is lost.
func (n *notation) push(uci string) string {
	if n.lost {
		return ""
	}
	pos := n.game.Position()
	notationUCI := nchess.UCINotation{}
	// 프로모션은 기물 종류를 알 수 없으므로 퀸으로 가정
	for _, cand := range []string{uci, uci + "q"} {
		mv, err := notationUCI.Decode(pos, cand)
		if err != nil {
			continue
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := n.game.Move(mv, nil); err != nil {
			continue
		}
		return san
	}
	n.lost = true
	return ""
}

func (n *notation) fen() string {
	if n.lost {
		return ""
	}
	return n.game.FEN()
}

// outcome is "" while the game is undecided or the replay is lost.
func (n *notation) outcome() string {
	if n.lost {
		return ""
	}
	switch n.game.Outcome() {
	case nchess.WhiteWon:
		return "white"
	case nchess.BlackWon:
		return "black"
	case nchess.Draw:
		return "draw"
	default:
		return ""
	}
}
