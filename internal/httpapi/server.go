// Package httpapi serves the board's HTTP API on fasthttp: clock and detector
// snapshots, the move list, clock control and sensor event injection.
package httpapi

import (
	"context"
	"net"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Board is the slice of session.Session the API needs.
type Board interface {
	BoardID() string
	ID() string
	ClockState() boarddto.ClockState
	Status() boarddto.BoardStatus
	Moves() []boarddto.Move
	StartClock()
	PauseClock()
	NewGame(ctx context.Context) (string, error)
	CancelPending(ctx context.Context) error
	Flush(ctx context.Context) error
	SubmitOccupancy(ctx context.Context, ev board.OccupancyChangeEvent) error
	SubmitStability(ctx context.Context, ev board.StabilityEvent) error
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds how long a handler waits on the session loop.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type Server struct {
	board   Board
	srv     *fasthttp.Server
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(b Board, opts ...Option) *Server {
	s := &Server{
		board:   b,
		logger:  obslog.L(),
		timeout: 3 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler:               s.Handler(),
		Name:                  "boardd",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		MaxRequestBodySize:    1 << 20,
		NoDefaultServerHeader: true,
	}
	return s
}

// ListenAndServe blocks until ctx ends, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()
	s.logger.Info("http_listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.ShutdownWithContext(shutdownCtx); err != nil {
		s.logger.Warn("http_shutdown", zap.Error(err))
		return err
	}
	return nil
}

// Handler routes requests; exposed for in-memory tests.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := s.now()
		path := string(ctx.Path())
		method := string(ctx.Method())
		switch {
		case path == "/healthz" && ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok", "board_id": s.board.BoardID(), "session_id": s.board.ID()})
		case path == "/v1/clock" && ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, s.board.ClockState())
		case path == "/v1/clock/start" && ctx.IsPost():
			s.board.StartClock()
			writeJSON(ctx, fasthttp.StatusOK, s.board.ClockState())
		case path == "/v1/clock/pause" && ctx.IsPost():
			s.board.PauseClock()
			writeJSON(ctx, fasthttp.StatusOK, s.board.ClockState())
		case path == "/v1/board" && ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, s.board.Status())
		case path == "/v1/board/reset" && ctx.IsPost():
			s.handleReset(ctx)
		case path == "/v1/board/cancel" && ctx.IsPost():
			s.handleCancel(ctx)
		case path == "/v1/moves" && ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, s.board.Moves())
		case path == "/v1/events" && ctx.IsPost():
			s.handleEvents(ctx)
		case knownPath(path):
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", method+" not allowed on "+path)
		default:
			writeError(ctx, fasthttp.StatusNotFound, "not_found", "no route for "+path)
		}
		s.logger.Debug("http_request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", s.now().Sub(start)),
		)
	}
}

func knownPath(p string) bool {
	switch p {
	case "/healthz", "/v1/clock", "/v1/clock/start", "/v1/clock/pause",
		"/v1/board", "/v1/board/reset", "/v1/board/cancel", "/v1/moves", "/v1/events":
		return true
	}
	return false
}
