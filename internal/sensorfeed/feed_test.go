package sensorfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"nhooyr.io/websocket"
)

type chanSink struct {
	events chan any
}

func (s *chanSink) SubmitOccupancy(_ context.Context, ev board.OccupancyChangeEvent) error {
	s.events <- ev
	return nil
}

func (s *chanSink) SubmitStability(_ context.Context, ev board.StabilityEvent) error {
	s.events <- ev
	return nil
}

// sensorServer writes frames to every client that connects and then waits
// for the client to go away.
func sensorServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ctx := conn.CloseRead(r.Context())
		for _, fr := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(fr)); err != nil {
				return
			}
		}
		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedForwardsDecodedFrames(t *testing.T) {
	srv := sensorServer(t, []string{
		`{"type":"occupancy","square":"e2","occupied":false}`,
		`{"type":"occupancy","square":99,"occupied":true}`,
		`not json`,
		`{"type":"occupancy","square":"e4","occupied":true}`,
		`{"type":"stability","square":"e4","stable":true}`,
	})
	sink := &chanSink{events: make(chan any, 8)}
	feed := NewFeed(wsURL(srv), sink, WithMaxReconnect(0))

	var statesM sync.Mutex
	var states []State
	feed.OnStateChange(func(s State) {
		statesM.Lock()
		states = append(states, s)
		statesM.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if feed.State() != StateConnected {
		t.Fatalf("state = %s", feed.State())
	}

	want := []board.Square{board.E2, board.E4, board.E4}
	for i, sq := range want {
		select {
		case ev := <-sink.events:
			var got board.Square
			switch e := ev.(type) {
			case board.OccupancyChangeEvent:
				got = e.Square
			case board.StabilityEvent:
				got = e.Square
				if i != 2 {
					t.Fatalf("stability arrived out of order at %d", i)
				}
			}
			if got != sq {
				t.Fatalf("event %d square = %s, want %s", i, got, sq)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	received, dropped := feed.Stats()
	if received != 5 || dropped != 2 {
		t.Fatalf("stats received=%d dropped=%d", received, dropped)
	}

	if err := feed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	statesM.Lock()
	defer statesM.Unlock()
	if states[0] != StateConnecting || states[1] != StateConnected || states[len(states)-1] != StateDisconnected {
		t.Fatalf("state sequence = %v", states)
	}
}

func TestFeedReconnectsAfterServerDrop(t *testing.T) {
	var mu sync.Mutex
	accepted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		n := accepted
		mu.Unlock()
		if n == 1 {
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		ctx := conn.CloseRead(r.Context())
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"stability","square":"a1","stable":true}`))
		<-ctx.Done()
	}))
	defer srv.Close()

	sink := &chanSink{events: make(chan any, 4)}
	feed := NewFeed(wsURL(srv), sink, WithMaxReconnect(3))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case ev := <-sink.events:
		if st, ok := ev.(board.StabilityEvent); !ok || st.Square != board.A1 {
			t.Fatalf("unexpected event %#v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event after reconnect")
	}
	if err := feed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestConnectFailureWithoutRetry(t *testing.T) {
	feed := NewFeed("ws://127.0.0.1:1/none", &chanSink{events: make(chan any, 1)}, WithMaxReconnect(0))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err == nil {
		t.Fatalf("expected dial error")
	}
	if feed.State() != StateFailed {
		t.Fatalf("state = %s, want failed", feed.State())
	}
	_ = feed.Close(ctx)
}

func TestFeedSendsProviderHeadersOnDial(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Board-Token")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()
	}))
	defer srv.Close()

	headers := func() map[string]string {
		return map[string]string{"X-Board-Token": "t0ken", "X-Blank": " "}
	}
	feed := NewFeed(wsURL(srv), &chanSink{events: make(chan any, 1)}, WithMaxReconnect(0), WithHeaders(headers))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if token := <-got; token != "t0ken" {
		t.Fatalf("X-Board-Token = %q", token)
	}
	if hdr := feed.buildHeaders(); hdr.Get("X-Blank") != "" {
		t.Fatalf("blank header value must be skipped: %v", hdr)
	}
	if err := feed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// The first connection never reads, so pings go unanswered and the feed has
// to reconnect on its own.
func TestFeedReconnectsWhenPingsGoUnanswered(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	accepted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		n := accepted
		mu.Unlock()
		if n == 1 {
			<-release
			_ = conn.CloseNow()
			return
		}
		ctx := conn.CloseRead(r.Context())
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"occupancy","square":"h8","occupied":true}`))
		<-ctx.Done()
	}))
	defer srv.Close()
	defer close(release)

	sink := &chanSink{events: make(chan any, 4)}
	feed := NewFeed(wsURL(srv), sink, WithMaxReconnect(3), WithPingInterval(50*time.Millisecond))
	if feed.pingTimeout() != 50*time.Millisecond {
		t.Fatalf("ping timeout = %v", feed.pingTimeout())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case ev := <-sink.events:
		if oc, ok := ev.(board.OccupancyChangeEvent); !ok || oc.Square != board.H8 {
			t.Fatalf("unexpected event %#v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event after ping-driven reconnect")
	}
	mu.Lock()
	n := accepted
	mu.Unlock()
	if n < 2 {
		t.Fatalf("accepted = %d, want a second connection", n)
	}
	if err := feed.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
