package sensorfeed

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/pkg/boarddto"
)

var recvTime = time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)

func frame(t *testing.T, raw string) boarddto.SensorFrame {
	t.Helper()
	var f boarddto.SensorFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return f
}

func TestDecodeValidFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "occupancy by name with ts",
			raw:  `{"type":"occupancy","square":"E2","occupied":false,"ts":1767225600000}`,
			want: board.OccupancyChangeEvent{Square: board.E2, Occupancy: board.Empty, Timestamp: time.UnixMilli(1767225600000).UTC()},
		},
		{
			name: "occupancy by index",
			raw:  `{"type":"occupancy","square":28,"occupied":true}`,
			want: board.OccupancyChangeEvent{Square: board.E4, Occupancy: board.Occupied, Timestamp: recvTime},
		},
		{
			name: "stability",
			raw:  `{"type":"stability","square":"63","stable":true}`,
			want: board.StabilityEvent{Square: board.H8, Stable: true, Timestamp: recvTime},
		},
		{
			name: "unstable",
			raw:  `{"type":"Stability","square":0,"stable":false}`,
			want: board.StabilityEvent{Square: board.A1, Stable: false, Timestamp: recvTime},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(frame(t, tc.raw), recvTime)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`{"type":"occupancy","square":64,"occupied":true}`, board.ErrSquareOutOfRange},
		{`{"type":"occupancy","square":-1,"occupied":true}`, board.ErrSquareOutOfRange},
		{`{"type":"occupancy","square":"z9","occupied":true}`, board.ErrBadSquareName},
		{`{"type":"occupancy","square":"e2"}`, ErrMissingField},
		{`{"type":"stability","square":"e2"}`, ErrMissingField},
		{`{"type":"occupancy","occupied":true}`, ErrMissingField},
		{`{"type":"occupancy","square":null,"occupied":false}`, ErrMissingField},
		{`{"type":"stability","square":null,"stable":true}`, ErrMissingField},
		{`{"type":"hello","square":"e2"}`, ErrUnknownFrame},
	}
	for _, tc := range cases {
		if _, err := Decode(frame(t, tc.raw), recvTime); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.raw, err, tc.want)
		}
	}
}

func TestBackoffCaps(t *testing.T) {
	if backoffDuration(0) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond {
		t.Fatalf("unexpected early backoff")
	}
	if backoffDuration(20) != backoffDuration(6) {
		t.Fatalf("backoff should cap at attempt 6")
	}
}
