package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/clock"
	"github.com/park285/cheese-board/internal/session"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type testAPI struct {
	t      *testing.T
	client *fasthttp.Client
	sess   *session.Session
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	sess, err := session.New(session.Config{
		BoardID: "api-board",
		Clock:   clock.Config{InitialTime: 3 * time.Minute, Increment: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()

	ln := fasthttputil.NewInmemoryListener()
	srv := New(sess)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return &testAPI{t: t, client: client, sess: sess}
}

func (a *testAPI) do(method, path, body string, out any) int {
	a.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://boardd" + path)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	if err := a.client.DoTimeout(req, resp, 5*time.Second); err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			a.t.Fatalf("decode %s: %v (%s)", path, err, resp.Body())
		}
	}
	return resp.StatusCode()
}

const e2e4Frames = `[
	{"type":"occupancy","square":"e2","occupied":false},
	{"type":"occupancy","square":"e4","occupied":true},
	{"type":"stability","square":"e4","stable":true}
]`

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	var body map[string]string
	if code := api.do("GET", "/healthz", "", &body); code != 200 || body["board_id"] != "api-board" {
		t.Fatalf("healthz %d %v", code, body)
	}
}

func TestEventsConfirmMove(t *testing.T) {
	api := newTestAPI(t)

	var res EventsResult
	if code := api.do("POST", "/v1/events", e2e4Frames, &res); code != fasthttp.StatusAccepted {
		t.Fatalf("events status %d", code)
	}
	if res.Accepted != 3 || res.Status.MoveCount != 1 || res.Status.State != "IDLE" {
		t.Fatalf("events result %+v", res)
	}

	var moves []boarddto.Move
	api.do("GET", "/v1/moves", "", &moves)
	if len(moves) != 1 || moves[0].UCI != "e2e4" || moves[0].SAN != "e4" {
		t.Fatalf("moves %+v", moves)
	}

	var cs boarddto.ClockState
	api.do("GET", "/v1/clock", "", &cs)
	if cs.ActivePlayer != "black" || cs.WhiteRemainingMS != 182000 {
		t.Fatalf("clock %+v", cs)
	}
}

func TestSingleFrameAndCancel(t *testing.T) {
	api := newTestAPI(t)
	var res EventsResult
	api.do("POST", "/v1/events", `{"type":"occupancy","square":6,"occupied":false}`, &res)
	if res.Status.State != "PIECE_LIFTED" || res.Status.Source != "g1" {
		t.Fatalf("after lift %+v", res.Status)
	}
	var st boarddto.BoardStatus
	if code := api.do("POST", "/v1/board/cancel", "", &st); code != 200 || st.State != "IDLE" {
		t.Fatalf("cancel %d %+v", code, st)
	}
}

func TestBadFramesRejectedWhole(t *testing.T) {
	api := newTestAPI(t)
	var e boarddto.Error
	body := `[{"type":"occupancy","square":"e2","occupied":false},{"type":"occupancy","square":64,"occupied":true}]`
	if code := api.do("POST", "/v1/events", body, &e); code != 400 || e.Code != "bad_frame" {
		t.Fatalf("expected bad_frame, got %d %+v", code, e)
	}
	var st boarddto.BoardStatus
	api.do("GET", "/v1/board", "", &st)
	if st.State != "IDLE" {
		t.Fatalf("partial batch was applied: %+v", st)
	}
	// null must not decode as a1
	body = `[{"type":"occupancy","square":"e2","occupied":false},{"type":"occupancy","square":null,"occupied":false}]`
	if code := api.do("POST", "/v1/events", body, &e); code != 400 || e.Code != "bad_frame" {
		t.Fatalf("null square: expected bad_frame, got %d %+v", code, e)
	}
	api.do("GET", "/v1/board", "", &st)
	if st.State != "IDLE" {
		t.Fatalf("batch with null square was applied: %+v", st)
	}
	if code := api.do("POST", "/v1/events", "{", &e); code != 400 || e.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %d %+v", code, e)
	}
}

func TestClockControlAndReset(t *testing.T) {
	api := newTestAPI(t)
	var cs boarddto.ClockState
	if api.do("POST", "/v1/clock/start", "", &cs); !cs.Running {
		t.Fatalf("clock not running after start: %+v", cs)
	}
	if api.do("POST", "/v1/clock/pause", "", &cs); cs.Running {
		t.Fatalf("clock running after pause: %+v", cs)
	}

	api.do("POST", "/v1/events", e2e4Frames, nil)
	before := api.sess.ID()
	var rr ResetResult
	if code := api.do("POST", "/v1/board/reset", "", &rr); code != 200 || rr.SessionID == "" || rr.SessionID == before {
		t.Fatalf("reset %d %+v", code, rr)
	}
	var moves []boarddto.Move
	api.do("GET", "/v1/moves", "", &moves)
	if len(moves) != 0 {
		t.Fatalf("moves after reset: %+v", moves)
	}
}

func TestRouting(t *testing.T) {
	api := newTestAPI(t)
	var e boarddto.Error
	if code := api.do("GET", "/nope", "", &e); code != 404 || e.Code != "not_found" {
		t.Fatalf("404 expected, got %d %+v", code, e)
	}
	if code := api.do("GET", "/v1/events", "", &e); code != 405 {
		t.Fatalf("405 expected, got %d", code)
	}
}
