package boarddto

import "time"

// ClockState is the wire form of a clock snapshot; times are milliseconds.
type ClockState struct {
	BoardID          string    `json:"board_id,omitempty"`
	WhiteRemainingMS int64     `json:"white_remaining_ms"`
	BlackRemainingMS int64     `json:"black_remaining_ms"`
	ActivePlayer     string    `json:"active_player"`
	GameOver         bool      `json:"game_over"`
	Running          bool      `json:"running"`
	Flagged          string    `json:"flagged,omitempty"`
	At               time.Time `json:"at"`
}
