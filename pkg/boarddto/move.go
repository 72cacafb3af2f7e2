package boarddto

import "time"

// Move is one confirmed move of the current game. SAN is best-effort and may be
// empty when the square pair does not decode against the replayed position.
type Move struct {
	Ply              int       `json:"ply"`
	Source           string    `json:"source"`
	Destination      string    `json:"destination"`
	UCI              string    `json:"uci"`
	SAN              string    `json:"san,omitempty"`
	Mover            string    `json:"mover"`
	At               time.Time `json:"at"`
	WhiteRemainingMS int64     `json:"white_remaining_ms"`
	BlackRemainingMS int64     `json:"black_remaining_ms"`
}

// BoardStatus is the detector view: FSM state, pending diff and the last
// stable occupancy (rank 8 first, 'x' occupied). FEN is empty once the
// replayed game has lost track of the position.
type BoardStatus struct {
	BoardID     string   `json:"board_id"`
	SessionID   string   `json:"session_id"`
	State       string   `json:"state"`
	Emptied     []string `json:"emptied"`
	Occupied    []string `json:"occupied"`
	Source      string   `json:"source,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Stable      []string `json:"stable"`
	MoveCount   int      `json:"move_count"`
	FEN         string   `json:"fen,omitempty"`
	Outcome     string   `json:"outcome,omitempty"`
}
