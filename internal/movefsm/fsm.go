// Package movefsm turns per-square occupancy and stability events into
// confirmed moves.
//
// The FSM is not synchronized. Callers must deliver events from a single
// goroutine (see session.Session), and the listener runs in-line on it.
package movefsm

import (
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// Listener receives confirmed moves synchronously and in order. It must not
// block.
type Listener interface {
	OnMoveConfirmed(ev board.MoveConfirmedEvent)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev board.MoveConfirmedEvent)

func (f ListenerFunc) OnMoveConfirmed(ev board.MoveConfirmedEvent) { f(ev) }

type Option func(*FSM)

func WithLogger(l *zap.Logger) Option {
	return func(f *FSM) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithNow overrides the clock used to stamp confirmed moves.
func WithNow(now func() time.Time) Option {
	return func(f *FSM) {
		if now != nil {
			f.now = now
		}
	}
}

// WithStableBoard sets the initial stable snapshot (default: starting position).
func WithStableBoard(s board.Snapshot) Option {
	return func(f *FSM) { f.stable = s }
}

// WithCaptureResolution enables the lift-remove-land capture fallback.
func WithCaptureResolution(on bool) Option {
	return func(f *FSM) { f.resolveCaptures = on }
}

type FSM struct {
	tracker         Tracker
	stable          board.Snapshot
	listener        Listener
	now             func() time.Time
	logger          *zap.Logger
	resolveCaptures bool
}

func New(listener Listener, opts ...Option) *FSM {
	f := &FSM{
		tracker:  NewTracker(),
		stable:   board.StartingSnapshot(),
		listener: listener,
		now:      time.Now,
		logger:   obslog.L(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ProcessMoveEvent drives the lift/place transitions.
func (f *FSM) ProcessMoveEvent(ev board.OccupancyChangeEvent) {
	if !ev.Square.Valid() {
		f.logger.Warn("fsm_invalid_square", zap.Int("square", int(ev.Square)))
		return
	}
	prev := f.tracker.State
	next, out := f.tracker.OnOccupancy(ev.Square, ev.Occupancy)
	f.tracker = next
	if out == OutcomeAborted {
		f.logger.Info("fsm_move_aborted", zap.String("square", ev.Square.String()))
		return
	}
	if prev != next.State {
		f.logger.Debug("fsm_transition",
			zap.String("from", string(prev)),
			zap.String("to", string(next.State)),
			zap.String("square", ev.Square.String()),
			zap.String("occupancy", ev.Occupancy.String()),
		)
	}
}

// ProcessStabilityEvent confirms or discards the pending diff. It only acts on
// a stable signal while a placement is pending.
func (f *FSM) ProcessStabilityEvent(ev board.StabilityEvent) {
	if !ev.Square.Valid() {
		f.logger.Warn("fsm_invalid_square", zap.Int("square", int(ev.Square)))
		return
	}
	pending := f.tracker
	next, res := f.tracker.OnStability(f.stable, ev.Stable, f.resolveCaptures)
	f.tracker = next

	switch res.Outcome {
	case OutcomeAdjustment:
		f.logger.Debug("fsm_adjustment", zap.String("square", pending.Source.String()))
	case OutcomeDiscarded:
		f.logger.Debug("fsm_diff_discarded",
			zap.String("emptied", pending.Emptied.String()),
			zap.String("occupied", pending.Occupied.String()),
		)
	case OutcomeConfirmed:
		confirmed := board.MoveConfirmedEvent{
			Source:      res.Move.Source,
			Destination: res.Move.Destination,
			Timestamp:   f.now(),
		}
		f.logger.Info("move_confirmed",
			zap.String("uci", confirmed.UCI()),
			zap.String("kind", string(res.Move.Kind)),
		)
		if f.listener != nil {
			f.listener.OnMoveConfirmed(confirmed)
		}
		f.stable = res.Board
		f.tracker = f.tracker.Settle()
	}
}

// Reset returns to IDLE and drops the pending diff. The stable snapshot is kept.
func (f *FSM) Reset() { f.tracker = NewTracker() }

func (f *FSM) State() State { return f.tracker.State }

// Pending returns a copy of the accumulated diff state.
func (f *FSM) Pending() Tracker { return f.tracker }

func (f *FSM) StableBoard() board.Snapshot { return f.stable }

// SetStableBoard replaces the stable snapshot, e.g. when a new game is set up.
// It does not touch the pending diff.
func (f *FSM) SetStableBoard(s board.Snapshot) { f.stable = s }
