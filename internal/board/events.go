package board

import "time"

// OccupancyChangeEvent reports a new reading for one square.
type OccupancyChangeEvent struct {
	Square    Square
	Timestamp time.Time
	Occupancy Occupancy
}

// StabilityEvent reports that motion at Square has (or has not) settled.
type StabilityEvent struct {
	Square    Square
	Timestamp time.Time
	Stable    bool
}

// MoveConfirmedEvent is emitted once per detected move. Castling reports the
// king's squares only.
type MoveConfirmedEvent struct {
	Source      Square
	Destination Square
	Timestamp   time.Time
}

// UCI renders the square pair in long algebraic form, e.g. "e2e4".
func (e MoveConfirmedEvent) UCI() string {
	return e.Source.String() + e.Destination.String()
}
