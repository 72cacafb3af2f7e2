package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/boardclient"
	"github.com/park285/cheese-board/internal/boardtext"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/sensorfeed"
)

// printSink prints decoded sensor events instead of feeding a detector.
type printSink struct{}

func (printSink) SubmitOccupancy(_ context.Context, ev board.OccupancyChangeEvent) error {
	fmt.Printf("occupancy square=%s value=%s ts=%s\n", ev.Square, ev.Occupancy, ev.Timestamp.Format(time.RFC3339Nano))
	return nil
}

func (printSink) SubmitStability(_ context.Context, ev board.StabilityEvent) error {
	fmt.Printf("stability square=%s stable=%t ts=%s\n", ev.Square, ev.Stable, ev.Timestamp.Format(time.RFC3339Nano))
	return nil
}

func main() {
	baseURL := os.Getenv("BOARDD_URL")
	wsURL := os.Getenv("SENSOR_WS_URL")
	scenario := os.Getenv("SCENARIO")

	if baseURL == "" && wsURL == "" {
		log.Fatal("BOARDD_URL or SENSOR_WS_URL is required")
	}

	if baseURL != "" {
		checkAPI(baseURL, scenario)
	}

	if wsURL == "" {
		log.Println("SENSOR_WS_URL not set; skipping sensor check")
		return
	}

	headers := config.ParseHeaders(os.Getenv("SENSOR_HEADERS"))
	feed := sensorfeed.NewFeed(wsURL, printSink{},
		sensorfeed.WithMaxReconnect(5),
		sensorfeed.WithHeaders(func() map[string]string { return headers }),
	)
	feed.OnStateChange(func(s sensorfeed.State) {
		log.Printf("sensor state: %s", s)
	})
	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := feed.Connect(cctx); err != nil {
		log.Printf("sensor connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	received, dropped := feed.Stats()
	log.Printf("sensor frames received=%d dropped=%d", received, dropped)
	_ = feed.Close(context.Background())
}

func checkAPI(baseURL, scenario string) {
	client := boardclient.New(baseURL, boardclient.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		log.Printf("/healthz error: %v", err)
		return
	}
	log.Printf("/healthz ok: board=%s", health["board_id"])

	if cs, err := client.Clock(ctx); err != nil {
		log.Printf("/v1/clock error: %v", err)
	} else {
		log.Printf("/v1/clock ok: %s", boardtext.Clock(*cs))
	}

	if scenario == "" {
		return
	}
	sc, err := boardclient.LoadScenario(scenario)
	if err != nil {
		log.Printf("scenario error: %v", err)
		return
	}
	batches, err := boardclient.Script(sc.Moves)
	if err != nil {
		log.Printf("scenario %s: %v", sc.Name, err)
		return
	}
	if sc.NewGame {
		id, err := client.NewGame(ctx)
		if err != nil {
			log.Printf("new game error: %v", err)
			return
		}
		log.Printf("new game %s", id)
	}
	for i, batch := range batches {
		st, err := client.SendFrames(ctx, batch)
		if err != nil {
			log.Printf("move %d (%s) error: %v", i+1, sc.Moves[i], err)
			return
		}
		log.Printf("move %d (%s) -> state=%s moves=%d", i+1, sc.Moves[i], st.State, st.MoveCount)
	}
	moves, err := client.Moves(ctx)
	if err != nil {
		log.Printf("/v1/moves error: %v", err)
		return
	}
	fmt.Println(boardtext.Movetext(moves))
	if st, err := client.Status(ctx); err == nil {
		fmt.Println(boardtext.Status(*st))
	}
}
