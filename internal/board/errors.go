package board

var (
	ErrSquareOutOfRange = errf("square index out of range [0,63]")
	ErrBadSquareName    = errf("invalid square name")
	ErrBadOccupancy     = errf("invalid occupancy value")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
