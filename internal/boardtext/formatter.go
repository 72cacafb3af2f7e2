// Package boardtext renders board DTOs as plain text for terminals and logs.
package boardtext

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-board/pkg/boarddto"
)

// Clock renders both counters and whose turn it is, e.g.
//
//	white 04:58.2 | black 05:00.0 | white to move
func Clock(cs boarddto.ClockState) string {
	var sb strings.Builder
	sb.WriteString("white ")
	sb.WriteString(Remaining(time.Duration(cs.WhiteRemainingMS) * time.Millisecond))
	sb.WriteString(" | black ")
	sb.WriteString(Remaining(time.Duration(cs.BlackRemainingMS) * time.Millisecond))
	switch {
	case cs.GameOver && cs.Flagged != "":
		sb.WriteString(" | " + cs.Flagged + " flagged")
	case cs.Running:
		sb.WriteString(" | " + cs.ActivePlayer + " to move")
	default:
		sb.WriteString(" | paused, " + cs.ActivePlayer + " to move")
	}
	return sb.String()
}

// Remaining formats mm:ss.t; negative values (a flagged player) keep the sign.
func Remaining(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	tenths := d.Milliseconds() / 100
	return fmt.Sprintf("%s%02d:%02d.%d", sign, tenths/600, (tenths/10)%60, tenths%10)
}

// Movetext renders moves as numbered pairs, preferring SAN and falling back to
// UCI once notation is unavailable.
func Movetext(moves []boarddto.Move) string {
	var sb strings.Builder
	for i, m := range moves {
		tok := m.SAN
		if tok == "" {
			tok = m.UCI
		}
		if i%2 == 0 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d. %s", i/2+1, tok)
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(tok)
	}
	return sb.String()
}

// Status renders the detector state and the stable occupancy grid with rank
// and file labels.
func Status(st boarddto.BoardStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  moves=%d", st.State, st.MoveCount)
	if st.Source != "" {
		fmt.Fprintf(&sb, "  from=%s", st.Source)
	}
	if st.Destination != "" {
		fmt.Fprintf(&sb, "  to=%s", st.Destination)
	}
	if len(st.Emptied) > 0 || len(st.Occupied) > 0 {
		fmt.Fprintf(&sb, "  -%s +%s", strings.Join(st.Emptied, ","), strings.Join(st.Occupied, ","))
	}
	sb.WriteByte('\n')
	for i, rank := range st.Stable {
		fmt.Fprintf(&sb, "%d %s\n", 8-i, rank)
	}
	sb.WriteString("  abcdefgh")
	return sb.String()
}
