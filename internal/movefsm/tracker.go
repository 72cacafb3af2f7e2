package movefsm

import "github.com/park285/cheese-board/internal/board"

// State is the detector's position in the lift/place cycle.
type State string

const (
	StateIdle          State = "IDLE"
	StatePieceLifted   State = "PIECE_LIFTED"
	StatePiecePlaced   State = "PIECE_PLACED"
	StateConfirmedMove State = "CONFIRMED_MOVE"
)

// Outcome describes what a single transition did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeLifted
	OutcomePlaced
	OutcomeIgnored
	OutcomeAborted
	OutcomeAdjustment
	OutcomeDiscarded
	OutcomeConfirmed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLifted:
		return "lifted"
	case OutcomePlaced:
		return "placed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAborted:
		return "aborted"
	case OutcomeAdjustment:
		return "adjustment"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// Result is the output of a stability transition. Move and Board are set only
// for OutcomeConfirmed.
type Result struct {
	Outcome Outcome
	Move    Candidate
	Board   board.Snapshot
}

// Tracker is the pure transition state: the current state plus the diff
// accumulated since leaving IDLE. Methods return new values and never mutate
// the receiver. Use NewTracker; the zero value has Source set to A1.
type Tracker struct {
	State       State
	Emptied     board.SquareSet
	Occupied    board.SquareSet
	Source      board.Square
	Destination board.Square
}

func NewTracker() Tracker {
	return Tracker{State: StateIdle, Source: board.NoSquare, Destination: board.NoSquare}
}

// OnOccupancy applies one occupancy change. A reading that is neither Empty
// nor Occupied leaves the tracker unchanged.
func (t Tracker) OnOccupancy(sq board.Square, occ board.Occupancy) (Tracker, Outcome) {
	if occ != board.Empty && occ != board.Occupied {
		return t, OutcomeIgnored
	}
	switch t.State {
	case StatePieceLifted:
		switch occ {
		case board.Occupied:
			t.Occupied = t.Occupied.Add(sq)
			t.Destination = sq
			t.State = StatePiecePlaced
			return t, OutcomePlaced
		case board.Empty:
			t.Emptied = t.Emptied.Add(sq)
			return t, OutcomeLifted
		}
	case StatePiecePlaced:
		switch occ {
		case board.Occupied:
			t.Occupied = t.Occupied.Add(sq)
			t.Destination = sq
			return t, OutcomePlaced
		case board.Empty:
			// a fresh lift while a placement is pending
			return NewTracker(), OutcomeAborted
		}
	default:
		if occ == board.Empty {
			n := NewTracker()
			n.Emptied = n.Emptied.Add(sq)
			n.Source = sq
			n.State = StatePieceLifted
			return n, OutcomeLifted
		}
	}
	return NewTracker(), OutcomeIgnored
}

// IsAdjustment reports a piece lifted and returned to its own square.
func (t Tracker) IsAdjustment() bool {
	return t.Source != board.NoSquare && t.Source == t.Destination
}

// OnStability applies a stability signal against the last stable snapshot.
// Only a stable signal in PIECE_PLACED does anything.
func (t Tracker) OnStability(stable board.Snapshot, isStable bool, resolveCaptures bool) (Tracker, Result) {
	if !isStable || t.State != StatePiecePlaced {
		return t, Result{Outcome: OutcomeNone}
	}
	if t.IsAdjustment() {
		return NewTracker(), Result{Outcome: OutcomeAdjustment}
	}

	cur := stable.Apply(t.Emptied, t.Occupied)
	move, ok := Classify(stable, cur)
	if !ok && resolveCaptures {
		move, ok = resolveCapture(t, stable, cur)
	}
	if !ok {
		return NewTracker(), Result{Outcome: OutcomeDiscarded}
	}

	done := NewTracker()
	done.State = StateConfirmedMove
	return done, Result{Outcome: OutcomeConfirmed, Move: move, Board: cur}
}

// Settle finishes the instantaneous CONFIRMED_MOVE state.
func (t Tracker) Settle() Tracker {
	if t.State == StateConfirmedMove {
		return NewTracker()
	}
	return t
}

// resolveCapture handles the physical capture sequence: the capturing piece is
// lifted, the captured piece is removed, and the capturing piece lands on the
// captured piece's square, which therefore shows no net change.
func resolveCapture(t Tracker, stable, cur board.Snapshot) (Candidate, bool) {
	reoccupied := t.Emptied.Intersect(t.Occupied)
	emptied, occupied := board.Diff(stable, cur)
	if reoccupied.Len() != 1 || emptied.Len() != 1 || !occupied.Empty() {
		return Candidate{}, false
	}
	return Candidate{emptied.First(), reoccupied.First(), KindCapture}, true
}
