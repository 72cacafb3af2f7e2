package boardclient

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/clock"
	"github.com/park285/cheese-board/internal/httpapi"
	"github.com/park285/cheese-board/internal/session"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	sess, err := session.New(session.Config{
		BoardID:         "client-board",
		Clock:           clock.Config{InitialTime: time.Minute},
		ResolveCaptures: true,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()

	ln := fasthttputil.NewInmemoryListener()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = httpapi.New(sess).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return New("http://boardd", WithDial(func(string) (net.Conn, error) { return ln.Dial() }), WithRetry(1))
}

func TestScriptedGameThroughAPI(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	moves := []string{"e2e4", "d7d5", "e4d5", "d8d5", "g1f3", "c8g4", "f1e2", "b8c6", "e1g1"}
	batches, err := Script(moves)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	for i, b := range batches {
		if _, err := c.SendFrames(ctx, b); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}

	got, err := c.Moves(ctx)
	if err != nil {
		t.Fatalf("Moves: %v", err)
	}
	var sans []string
	for _, m := range got {
		sans = append(sans, m.SAN)
	}
	want := []string{"e4", "d5", "exd5", "Qxd5", "Nf3", "Bg4", "Be2", "Nc6"}
	if len(sans) != len(moves) {
		t.Fatalf("got %d moves, want %d: %v", len(sans), len(moves), sans)
	}
	if diff := cmp.Diff(want, sans[:8]); diff != "" {
		t.Fatalf("SAN mismatch (-want +got):\n%s", diff)
	}
	// castling is reported by the king's squares
	if last := got[8]; last.UCI != "e1g1" || last.SAN == "" {
		t.Fatalf("castle = %+v", last)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != "IDLE" || st.MoveCount != len(moves) {
		t.Fatalf("status %+v", st)
	}
}

func TestClockAndNewGame(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if h, err := c.Health(ctx); err != nil || h["status"] != "ok" {
		t.Fatalf("Health: %v %v", h, err)
	}
	cs, err := c.StartClock(ctx)
	if err != nil || !cs.Running {
		t.Fatalf("StartClock: %+v %v", cs, err)
	}
	if cs, err = c.PauseClock(ctx); err != nil || cs.Running {
		t.Fatalf("PauseClock: %+v %v", cs, err)
	}
	id, err := c.NewGame(ctx)
	if err != nil || id == "" {
		t.Fatalf("NewGame: %q %v", id, err)
	}
	if cs, err = c.Clock(ctx); err != nil || cs.WhiteRemainingMS != 60000 {
		t.Fatalf("Clock: %+v %v", cs, err)
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	c := newTestClient(t)
	frames := []boarddto.SensorFrame{occupancy(board.E2, false)}
	frames[0].Square = "99"
	_, err := c.SendFrames(context.Background(), frames)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 || apiErr.Body.Code != "bad_frame" {
		t.Fatalf("expected 400 bad_frame, got %v", err)
	}
}

func TestScriptRejectsEmptySource(t *testing.T) {
	if _, err := Script([]string{"e3e4"}); err == nil {
		t.Fatalf("expected error for empty source square")
	}
	if _, err := Script([]string{"e2"}); err == nil {
		t.Fatalf("expected error for short move")
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.yaml")
	body := "name: italian\nnew_game: true\nmoves: [e2e4, e7e5]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	want := &Scenario{Name: "italian", NewGame: true, Moves: []string{"e2e4", "e7e5"}}
	if diff := cmp.Diff(want, sc); diff != "" {
		t.Fatalf("scenario mismatch (-want +got):\n%s", diff)
	}
}
