// Package clock tracks both players' remaining time.
//
// The Engine does no scheduling of its own: something outside it (see Drive)
// must call Update periodically. All operations are serialized behind a single
// mutex, so Start/Pause/OnMoveConfirmed from a control goroutine may race
// freely with Update from a timing goroutine.
package clock

import (
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

var ErrNegativeDuration = errors.New("clock durations must be non-negative")

// Color identifies a player.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) index() int {
	if c == Black {
		return 1
	}
	return 0
}

type Config struct {
	InitialTime time.Duration
	Increment   time.Duration
}

func (c Config) Validate() error {
	if c.InitialTime < 0 || c.Increment < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// State is a point-in-time snapshot. Flagged names the player whose time ran
// out, or is empty.
type State struct {
	WhiteRemaining time.Duration
	BlackRemaining time.Duration
	ActivePlayer   Color
	IsGameOver     bool
	Running        bool
	Flagged        Color
}

type Option func(*Engine)

// WithNow overrides the time source. Tests use it to simulate elapsed time.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

type Engine struct {
	mu         sync.Mutex
	cfg        Config
	remaining  [2]time.Duration
	active     Color
	running    bool
	lastUpdate time.Time
	flagLogged bool

	now    func() time.Time
	logger *zap.Logger
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		remaining: [2]time.Duration{cfg.InitialTime, cfg.InitialTime},
		active:    White,
		now:       time.Now,
		logger:    obslog.L(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start begins counting down for the active player. No-op if already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.lastUpdate = e.now()
	e.logger.Info("clock_start", zap.String("active", string(e.active)))
}

// Pause flushes elapsed time and stops. No-op if already stopped.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.updateLocked()
	e.running = false
	e.logger.Info("clock_pause",
		zap.Duration("white", e.remaining[0]),
		zap.Duration("black", e.remaining[1]),
	)
}

// Update charges the time elapsed since the last reference to the active
// player. Counters may go negative.
func (e *Engine) Update() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateLocked()
}

func (e *Engine) updateLocked() {
	if !e.running {
		return
	}
	now := e.now()
	e.remaining[e.active.index()] -= now.Sub(e.lastUpdate)
	e.lastUpdate = now
	if !e.flagLogged && e.gameOverLocked() {
		e.flagLogged = true
		e.logger.Info("clock_flag", zap.String("player", string(e.flaggedLocked())))
	}
}

// OnMoveConfirmed charges the mover for time not yet flushed, adds the
// increment to the mover, and hands the clock to the opponent.
func (e *Engine) OnMoveConfirmed(ev board.MoveConfirmedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// updateLocked already moves the reference to now when running
	if e.running {
		e.updateLocked()
	} else {
		e.lastUpdate = e.now()
	}
	mover := e.active
	e.remaining[mover.index()] += e.cfg.Increment
	e.active = mover.Opponent()
	e.logger.Debug("clock_switch",
		zap.String("move", ev.UCI()),
		zap.String("mover", string(mover)),
		zap.Duration("mover_remaining", e.remaining[mover.index()]),
	)
}

// Reset restores the configured initial time for both players, stops the
// clock and gives the move to white.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remaining = [2]time.Duration{e.cfg.InitialTime, e.cfg.InitialTime}
	e.active = White
	e.running = false
	e.flagLogged = false
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		WhiteRemaining: e.remaining[0],
		BlackRemaining: e.remaining[1],
		ActivePlayer:   e.active,
		IsGameOver:     e.gameOverLocked(),
		Running:        e.running,
		Flagged:        e.flaggedLocked(),
	}
}

func (e *Engine) gameOverLocked() bool {
	return e.remaining[0] <= 0 || e.remaining[1] <= 0
}

func (e *Engine) flaggedLocked() Color {
	switch {
	case e.remaining[0] <= 0:
		return White
	case e.remaining[1] <= 0:
		return Black
	default:
		return ""
	}
}
