package board

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSquareFromIndexBounds(t *testing.T) {
	if sq, err := SquareFromIndex(0); err != nil || sq != A1 {
		t.Fatalf("index 0: got %v err=%v", sq, err)
	}
	if sq, err := SquareFromIndex(63); err != nil || sq != H8 {
		t.Fatalf("index 63: got %v err=%v", sq, err)
	}
	for _, bad := range []int{-1, 64, 1000} {
		if _, err := SquareFromIndex(bad); err != ErrSquareOutOfRange {
			t.Fatalf("index %d: expected ErrSquareOutOfRange, got %v", bad, err)
		}
	}
}

func TestParseSquareAndString(t *testing.T) {
	cases := map[string]Square{"a1": A1, "E2": E2, "h8": H8, " d5 ": D5}
	for in, want := range cases {
		got, err := ParseSquare(in)
		if err != nil || got != want {
			t.Fatalf("ParseSquare(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "i1", "a9", "e", "e22"} {
		if _, err := ParseSquare(bad); err == nil {
			t.Fatalf("ParseSquare(%q): expected error", bad)
		}
	}
	if E4.String() != "e4" || G8.String() != "g8" {
		t.Fatalf("unexpected names: %s %s", E4, G8)
	}
	if NoSquare.String() != "-" {
		t.Fatalf("NoSquare should render as '-'")
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(E1, G1); d != 2 {
		t.Fatalf("E1-G1 distance = %d", d)
	}
	if d := Distance(A1, H8); d != 7 {
		t.Fatalf("A1-H8 distance = %d", d)
	}
	if d := Distance(D4, D4); d != 0 {
		t.Fatalf("D4-D4 distance = %d", d)
	}
}

func TestStartingSnapshot(t *testing.T) {
	s := StartingSnapshot()
	if s.Count() != 32 {
		t.Fatalf("expected 32 occupied squares, got %d", s.Count())
	}
	for _, sq := range []Square{A1, E1, H1, A2, H2, A7, E8, H8} {
		if s.At(sq) != Occupied {
			t.Fatalf("%s should be occupied", sq)
		}
	}
	for _, sq := range []Square{A3, E4, D5, H6} {
		if s.At(sq) != Empty {
			t.Fatalf("%s should be empty", sq)
		}
	}
	want := []string{"xxxxxxxx", "xxxxxxxx", "........", "........", "........", "........", "xxxxxxxx", "xxxxxxxx"}
	if diff := cmp.Diff(want, s.Ranks()); diff != "" {
		t.Fatalf("ranks mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotApplyAndDiff(t *testing.T) {
	prev := StartingSnapshot()
	cur := prev.Apply(SetOf(E2), SetOf(E4))
	if prev.At(E2) != Occupied {
		t.Fatalf("Apply must not mutate the receiver")
	}
	emptied, occupied := Diff(prev, cur)
	if emptied != SetOf(E2) || occupied != SetOf(E4) {
		t.Fatalf("diff: emptied=%s occupied=%s", emptied, occupied)
	}

	// re-occupying a lifted square cancels out
	cur = prev.Apply(SetOf(D2, E2), SetOf(E2))
	emptied, occupied = Diff(prev, cur)
	if emptied != SetOf(D2) || !occupied.Empty() {
		t.Fatalf("diff after re-occupy: emptied=%s occupied=%s", emptied, occupied)
	}
}

func TestSquareSetOrdering(t *testing.T) {
	s := SetOf(H8, A1, E4, E4, NoSquare)
	if s.Len() != 3 {
		t.Fatalf("expected 3 squares, got %d", s.Len())
	}
	if diff := cmp.Diff([]Square{A1, E4, H8}, s.Squares()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if s.First() != A1 || SquareSet(0).First() != NoSquare {
		t.Fatalf("First() mismatch")
	}
	if !s.Contains(SetOf(A1, H8)) || s.Contains(SetOf(B2)) {
		t.Fatalf("Contains mismatch")
	}
	if s.String() != "{a1,e4,h8}" {
		t.Fatalf("String() = %s", s)
	}
}

func TestMoveConfirmedEventUCI(t *testing.T) {
	ev := MoveConfirmedEvent{Source: E1, Destination: G1}
	if ev.UCI() != "e1g1" {
		t.Fatalf("UCI() = %s", ev.UCI())
	}
}

func TestParseOccupancy(t *testing.T) {
	if o, err := ParseOccupancy("Occupied"); err != nil || o != Occupied {
		t.Fatalf("parse occupied: %v %v", o, err)
	}
	if o, err := ParseOccupancy("0"); err != nil || o != Empty {
		t.Fatalf("parse 0: %v %v", o, err)
	}
	if _, err := ParseOccupancy("maybe"); err != ErrBadOccupancy {
		t.Fatalf("expected ErrBadOccupancy, got %v", err)
	}
}
