package boarddto

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	FrameOccupancy = "occupancy"
	FrameStability = "stability"
)

// SensorFrame is one message from the sensor subsystem.
//
//	{"type":"occupancy","square":"e2","occupied":false,"ts":1767225600000}
//	{"type":"stability","square":12,"stable":true}
//
// TS is unix milliseconds; zero means "use receive time".
type SensorFrame struct {
	Type     string    `json:"type"`
	Square   SquareRef `json:"square"`
	Occupied *bool     `json:"occupied,omitempty"`
	Stable   *bool     `json:"stable,omitempty"`
	TS       int64     `json:"ts,omitempty"`
}

// SquareRef accepts either a numeric index or an algebraic name on the wire.
// Numeric indexes are kept as their decimal text. JSON null leaves the ref
// empty, which decoders treat as a missing square.
type SquareRef string

func (s *SquareRef) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = SquareRef(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = SquareRef(strconv.Itoa(n))
	return nil
}
