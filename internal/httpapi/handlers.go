package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/sensorfeed"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// EventsResult is the response to POST /v1/events.
type EventsResult struct {
	Accepted int                  `json:"accepted"`
	Status   boarddto.BoardStatus `json:"status"`
}

// ResetResult is the response to POST /v1/board/reset.
type ResetResult struct {
	SessionID string `json:"session_id"`
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Server) handleReset(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()
	id, err := s.board.NewGame(rctx)
	if err != nil {
		s.loopError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, ResetResult{SessionID: id})
}

func (s *Server) handleCancel(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()
	if err := s.board.CancelPending(rctx); err != nil {
		s.loopError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.board.Status())
}

// handleEvents accepts one sensor frame or a JSON array of frames. The whole
// batch is validated before anything is submitted.
func (s *Server) handleEvents(ctx *fasthttp.RequestCtx) {
	frames, err := decodeFrames(ctx.PostBody())
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", err.Error())
		return
	}
	now := s.now()
	events := make([]any, 0, len(frames))
	for i, f := range frames {
		ev, err := sensorfeed.Decode(f, now)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "bad_frame", fmt.Sprintf("frame %d: %v", i, err))
			return
		}
		events = append(events, ev)
	}

	rctx, cancel := s.requestContext()
	defer cancel()
	for _, ev := range events {
		switch e := ev.(type) {
		case board.OccupancyChangeEvent:
			err = s.board.SubmitOccupancy(rctx, e)
		case board.StabilityEvent:
			err = s.board.SubmitStability(rctx, e)
		}
		if err != nil {
			s.loopError(ctx, err)
			return
		}
	}
	if err := s.board.Flush(rctx); err != nil {
		s.loopError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusAccepted, EventsResult{Accepted: len(events), Status: s.board.Status()})
}

func decodeFrames(body []byte) ([]boarddto.SensorFrame, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var frames []boarddto.SensorFrame
		if err := json.Unmarshal(body, &frames); err != nil {
			return nil, err
		}
		return frames, nil
	}
	var f boarddto.SensorFrame
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, err
	}
	return []boarddto.SensorFrame{f}, nil
}

func (s *Server) loopError(ctx *fasthttp.RequestCtx, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(ctx, fasthttp.StatusGatewayTimeout, "timeout", "board loop did not respond")
		return
	}
	s.logger.Warn("http_board_unavailable", zap.Error(err))
	writeError(ctx, fasthttp.StatusServiceUnavailable, "unavailable", err.Error())
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error(`{"code":"internal","message":"encode failed"}`, fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, boarddto.Error{Code: code, Message: msg})
}
