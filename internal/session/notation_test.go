package session

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestNotationPromotionAssumesQueen(t *testing.T) {
	n := newNotation()
	for _, uci := range []string{"h2h4", "g7g5", "h4g5", "g8f6", "g5g6", "f6g8", "g6g7", "g8f6", "g7h8"} {
		if n.push(uci) == "" {
			t.Fatalf("lost replay at %s", uci)
		}
	}
	if n.lost || n.fen() == "" {
		t.Fatalf("replay should still be in sync")
	}
	got := n.game.Moves()
	if len(got) != 9 || got[8].Promo() != nchess.Queen {
		t.Fatalf("expected queen promotion as ninth move, got %v", got)
	}
}

func TestNotationFoolsMateOutcome(t *testing.T) {
	n := newNotation()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		n.push(uci)
	}
	if got := n.outcome(); got != "black" {
		t.Fatalf("outcome = %q, want black", got)
	}
}

func TestNotationLostStaysLost(t *testing.T) {
	n := newNotation()
	if san := n.push("e2e5"); san != "" {
		t.Fatalf("illegal move annotated as %q", san)
	}
	if san := n.push("e2e4"); san != "" || n.fen() != "" || n.outcome() != "" {
		t.Fatalf("replay should stay lost")
	}
}
