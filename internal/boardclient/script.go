package boardclient

import (
	"fmt"
	"os"
	"strings"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/pkg/boarddto"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted game replayed as raw sensor frames.
//
//	name: italian
//	new_game: true
//	moves: [e2e4, e7e5, g1f3, b8c6, f1c4]
type Scenario struct {
	Name    string   `yaml:"name"`
	NewGame bool     `yaml:"new_game"`
	Moves   []string `yaml:"moves"`
}

func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(sc.Moves) == 0 {
		return nil, fmt.Errorf("scenario %s has no moves", path)
	}
	return &sc, nil
}

var castleRooks = map[string][2]board.Square{
	"e1g1": {board.H1, board.F1},
	"e1c1": {board.A1, board.D1},
	"e8g8": {board.H8, board.F8},
	"e8c8": {board.A8, board.D8},
}

// Script turns UCI moves into the frame batches a physical board would emit,
// one batch per move, tracking occupancy from the starting position. A move
// onto an occupied square removes the captured piece first, which the server
// only confirms with capture resolution enabled. King moves matching a castle
// with the rook still home also move the rook. En passant is not modelled.
func Script(moves []string) ([][]boarddto.SensorFrame, error) {
	snap := board.StartingSnapshot()
	out := make([][]boarddto.SensorFrame, 0, len(moves))
	for i, raw := range moves {
		uci := strings.ToLower(strings.TrimSpace(raw))
		if len(uci) < 4 {
			return nil, fmt.Errorf("move %d: bad uci %q", i+1, raw)
		}
		from, err := board.ParseSquare(uci[:2])
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		to, err := board.ParseSquare(uci[2:4])
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		if snap.At(from) != board.Occupied {
			return nil, fmt.Errorf("move %d: %s is empty", i+1, from)
		}

		var batch []boarddto.SensorFrame
		batch = append(batch, occupancy(from, false))
		snap = snap.With(from, board.Empty)

		if rook, ok := castleRooks[uci[:4]]; ok && snap.At(rook[0]) == board.Occupied && snap.At(rook[1]) == board.Empty {
			batch = append(batch, occupancy(rook[0], false), occupancy(to, true), occupancy(rook[1], true))
			snap = snap.With(rook[0], board.Empty).With(to, board.Occupied).With(rook[1], board.Occupied)
		} else {
			if snap.At(to) == board.Occupied {
				batch = append(batch, occupancy(to, false))
			}
			batch = append(batch, occupancy(to, true))
			snap = snap.With(to, board.Occupied)
		}
		batch = append(batch, stability(to))
		out = append(out, batch)
	}
	return out, nil
}

func occupancy(sq board.Square, occupied bool) boarddto.SensorFrame {
	return boarddto.SensorFrame{Type: boarddto.FrameOccupancy, Square: boarddto.SquareRef(sq.String()), Occupied: &occupied}
}

func stability(sq board.Square) boarddto.SensorFrame {
	stable := true
	return boarddto.SensorFrame{Type: boarddto.FrameStability, Square: boarddto.SquareRef(sq.String()), Stable: &stable}
}
