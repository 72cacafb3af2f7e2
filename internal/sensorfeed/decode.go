package sensorfeed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/pkg/boarddto"
)

var (
	ErrUnknownFrame = errf("unknown sensor frame type")
	ErrMissingField = errf("sensor frame missing field")
)

// Sink consumes decoded events. session.Session implements it.
type Sink interface {
	SubmitOccupancy(ctx context.Context, ev board.OccupancyChangeEvent) error
	SubmitStability(ctx context.Context, ev board.StabilityEvent) error
}

// Decode validates a wire frame and turns it into a board.OccupancyChangeEvent
// or board.StabilityEvent. recv is used when the frame carries no timestamp.
func Decode(f boarddto.SensorFrame, recv time.Time) (any, error) {
	sq, err := ParseSquareRef(f.Square)
	if err != nil {
		return nil, err
	}
	ts := recv
	if f.TS > 0 {
		ts = time.UnixMilli(f.TS).UTC()
	}
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case boarddto.FrameOccupancy:
		if f.Occupied == nil {
			return nil, fmt.Errorf("%w: occupied", ErrMissingField)
		}
		occ := board.Empty
		if *f.Occupied {
			occ = board.Occupied
		}
		return board.OccupancyChangeEvent{Square: sq, Timestamp: ts, Occupancy: occ}, nil
	case boarddto.FrameStability:
		if f.Stable == nil {
			return nil, fmt.Errorf("%w: stable", ErrMissingField)
		}
		return board.StabilityEvent{Square: sq, Timestamp: ts, Stable: *f.Stable}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
}

// ParseSquareRef accepts a 0..63 index (a1=0, h8=63) or an algebraic name.
func ParseSquareRef(ref boarddto.SquareRef) (board.Square, error) {
	s := strings.TrimSpace(string(ref))
	if s == "" {
		return board.NoSquare, fmt.Errorf("%w: square", ErrMissingField)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return board.SquareFromIndex(n)
	}
	return board.ParseSquare(strings.ToLower(s))
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
