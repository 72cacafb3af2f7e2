// Package session runs one physical board: it owns the move detector and the
// clock, feeds confirmed moves from one into the other, keeps the move list of
// the current game and mirrors live state to a Publisher.
//
// The detector is not safe for concurrent use, so every sensor event and
// control request goes through a single loop goroutine (Run). Read accessors
// return copies guarded by a mutex and may be called from anywhere.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/clock"
	"github.com/park285/cheese-board/internal/movefsm"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/pkg/boarddto"
	"go.uber.org/zap"
)

type Option func(*Session)

func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.pub = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow sets the time source shared by the detector and the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

type control struct {
	fn   func()
	done chan struct{}
}

type publishJob struct {
	move   *boarddto.Move
	clock  *boarddto.ClockState
	status *boarddto.BoardStatus
}

type Session struct {
	cfg     Config
	boardID string
	pub     Publisher
	logger  *zap.Logger
	now     func() time.Time

	inbox   chan any
	outbox  chan publishJob
	done    chan struct{}
	running atomic.Bool

	// loop goroutine only
	fsm   *movefsm.FSM
	clock *clock.Engine

	mu       sync.RWMutex
	id       string
	moves    []boarddto.Move
	notation *notation
	status   boarddto.BoardStatus
}

func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.BoardID == "" {
		return nil, ErrEmptyBoardID
	}
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:      cfg,
		boardID:  cfg.BoardID,
		logger:   obslog.L(),
		now:      time.Now,
		inbox:    make(chan any, cfg.QueueSize),
		outbox:   make(chan publishJob, cfg.QueueSize),
		done:     make(chan struct{}),
		id:       uuid.NewString(),
		notation: newNotation(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("board", s.boardID))

	eng, err := clock.NewEngine(cfg.Clock, clock.WithNow(s.now), clock.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.clock = eng
	s.fsm = movefsm.New(movefsm.ListenerFunc(s.onMoveConfirmed),
		movefsm.WithLogger(s.logger),
		movefsm.WithNow(s.now),
		movefsm.WithCaptureResolution(cfg.ResolveCaptures),
	)
	s.refreshStatus()
	return s, nil
}

func (s *Session) BoardID() string { return s.boardID }

// ID identifies the current game; NewGame replaces it.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Clock exposes the engine for the tick driver. Its methods are safe for
// concurrent use.
func (s *Session) Clock() *clock.Engine { return s.clock }

// Run processes queued events until ctx ends. Publishing happens on a second
// goroutine so a slow Publisher never stalls detection.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	var wg sync.WaitGroup
	if s.pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.publishLoop(ctx)
		}()
	}
	defer wg.Wait()

	s.logger.Info("session_started", zap.String("session", s.ID()))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session_stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case msg := <-s.inbox:
			s.handle(msg)
		}
	}
}

// SubmitOccupancy queues an occupancy change, blocking while the inbox is
// full.
func (s *Session) SubmitOccupancy(ctx context.Context, ev board.OccupancyChangeEvent) error {
	return s.submit(ctx, ev)
}

func (s *Session) SubmitStability(ctx context.Context, ev board.StabilityEvent) error {
	return s.submit(ctx, ev)
}

// Flush returns once every event queued before it has been processed.
func (s *Session) Flush(ctx context.Context) error {
	return s.do(ctx, func() {})
}

// CancelPending drops a half-made move and returns the detector to IDLE. The
// stable board and the clock are untouched.
func (s *Session) CancelPending(ctx context.Context) error {
	return s.do(ctx, func() {
		s.fsm.Reset()
		s.logger.Info("session_pending_cancelled")
		s.refreshStatus()
	})
}

// NewGame clears the move list, resets the clock and expects the starting
// position on the board. It returns the new game ID.
func (s *Session) NewGame(ctx context.Context) (string, error) {
	var id string
	err := s.do(ctx, func() {
		s.fsm.Reset()
		s.fsm.SetStableBoard(board.StartingSnapshot())
		s.clock.Reset()

		s.mu.Lock()
		s.id = uuid.NewString()
		s.moves = nil
		s.notation = newNotation()
		id = s.id
		s.mu.Unlock()

		s.logger.Info("session_new_game", zap.String("session", id))
		s.refreshStatus()
		s.enqueuePublish(publishJob{clock: s.clockSnapshot()})
	})
	return id, err
}

func (s *Session) StartClock() {
	s.clock.Start()
	if s.running.Load() {
		s.enqueuePublish(publishJob{clock: s.clockSnapshot()})
	}
}

func (s *Session) PauseClock() {
	s.clock.Pause()
	if s.running.Load() {
		s.enqueuePublish(publishJob{clock: s.clockSnapshot()})
	}
}

// ClockState returns the current clock in wire form.
func (s *Session) ClockState() boarddto.ClockState { return *s.clockSnapshot() }

// Moves returns a copy of the current game's move list.
func (s *Session) Moves() []boarddto.Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]boarddto.Move, len(s.moves))
	copy(out, s.moves)
	return out
}

// Status returns the detector view as of the last processed event.
func (s *Session) Status() boarddto.BoardStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Emptied = append([]string(nil), st.Emptied...)
	st.Occupied = append([]string(nil), st.Occupied...)
	st.Stable = append([]string(nil), st.Stable...)
	return st
}

func (s *Session) submit(ctx context.Context, msg any) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) do(ctx context.Context, fn func()) error {
	c := control{fn: fn, done: make(chan struct{})}
	if err := s.submit(ctx, c); err != nil {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handle(msg any) {
	switch m := msg.(type) {
	case board.OccupancyChangeEvent:
		s.fsm.ProcessMoveEvent(m)
		s.refreshStatus()
	case board.StabilityEvent:
		s.fsm.ProcessStabilityEvent(m)
		s.refreshStatus()
	case control:
		m.fn()
		close(m.done)
	default:
		s.logger.Warn("session_unknown_message", zap.Any("msg", m))
	}
}

// onMoveConfirmed runs on the loop goroutine from inside the detector.
func (s *Session) onMoveConfirmed(ev board.MoveConfirmedEvent) {
	mover := s.clock.State().ActivePlayer
	s.clock.OnMoveConfirmed(ev)
	cs := s.clock.State()

	uci := ev.UCI()
	s.mu.Lock()
	san := s.notation.push(uci)
	rec := boarddto.Move{
		Ply:              len(s.moves) + 1,
		Source:           ev.Source.String(),
		Destination:      ev.Destination.String(),
		UCI:              uci,
		SAN:              san,
		Mover:            string(mover),
		At:               ev.Timestamp,
		WhiteRemainingMS: cs.WhiteRemaining.Milliseconds(),
		BlackRemainingMS: cs.BlackRemaining.Milliseconds(),
	}
	s.moves = append(s.moves, rec)
	outcome := s.notation.outcome()
	s.mu.Unlock()

	if san == "" {
		s.logger.Debug("session_san_unavailable", zap.String("uci", uci), zap.Int("ply", rec.Ply))
	}
	if outcome != "" {
		s.clock.Pause()
		s.logger.Info("session_game_over", zap.String("outcome", outcome), zap.Int("ply", rec.Ply))
	}
	s.enqueuePublish(publishJob{move: &rec, clock: s.clockSnapshot()})
}

func (s *Session) refreshStatus() {
	pending := s.fsm.Pending()
	st := boarddto.BoardStatus{
		BoardID:     s.boardID,
		State:       string(pending.State),
		Emptied:     squareNames(pending.Emptied),
		Occupied:    squareNames(pending.Occupied),
		Source:      optSquare(pending.Source),
		Destination: optSquare(pending.Destination),
		Stable:      s.fsm.StableBoard().Ranks(),
	}
	s.mu.Lock()
	st.SessionID = s.id
	st.MoveCount = len(s.moves)
	st.FEN = s.notation.fen()
	st.Outcome = s.notation.outcome()
	s.status = st
	s.mu.Unlock()

	if s.running.Load() {
		s.enqueuePublish(publishJob{status: &st})
	}
}

func (s *Session) clockSnapshot() *boarddto.ClockState {
	cs := s.clock.State()
	return &boarddto.ClockState{
		BoardID:          s.boardID,
		WhiteRemainingMS: cs.WhiteRemaining.Milliseconds(),
		BlackRemainingMS: cs.BlackRemaining.Milliseconds(),
		ActivePlayer:     string(cs.ActivePlayer),
		GameOver:         cs.IsGameOver,
		Running:          cs.Running,
		Flagged:          string(cs.Flagged),
		At:               s.now(),
	}
}

func squareNames(set board.SquareSet) []string {
	out := make([]string, 0, set.Len())
	for _, sq := range set.Squares() {
		out = append(out, sq.String())
	}
	return out
}

func optSquare(sq board.Square) string {
	if !sq.Valid() {
		return ""
	}
	return sq.String()
}
