package session

import (
	"context"
	"time"

	"github.com/park285/cheese-board/internal/clock"
	"github.com/park285/cheese-board/pkg/boarddto"
)

var (
	ErrStopped        = errf("session is not running")
	ErrAlreadyRunning = errf("session already running")
	ErrEmptyBoardID   = errf("board id required")
)

// Publisher receives live state for display clients. livestate.Store
// implements it.
type Publisher interface {
	PublishMove(ctx context.Context, boardID string, mv *boarddto.Move) error
	SaveClock(ctx context.Context, boardID string, st *boarddto.ClockState) error
	SaveStatus(ctx context.Context, boardID string, st *boarddto.BoardStatus) error
}

type Config struct {
	BoardID         string
	Clock           clock.Config
	ResolveCaptures bool
	// QueueSize bounds both the sensor inbox and the publish outbox.
	QueueSize int
	// MirrorEvery is how often the clock snapshot is re-published while the
	// session runs.
	MirrorEvery    time.Duration
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MirrorEvery <= 0 {
		c.MirrorEvery = time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
