// Package sensorfeed connects to the board's sensor WebSocket, decodes JSON
// frames at the boundary and forwards them to a Sink. Malformed frames and
// out-of-range squares are dropped here so nothing invalid reaches the
// detector.
package sensorfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/pkg/boarddto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type StateCallback func(State)

// HeaderProvider supplies extra handshake headers on every dial, so rotated
// tokens are picked up on reconnect.
type HeaderProvider func() map[string]string

type Option func(*Feed)

func WithLogger(l *zap.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMaxReconnect caps reconnect attempts after a drop; 0 disables
// reconnecting.
func WithMaxReconnect(n int) Option {
	return func(f *Feed) { f.maxReconnect = n }
}

// WithPingInterval sets how often the connection is pinged. Each ping waits
// at most min(3s, d) for its pong; two misses in a row force a reconnect.
func WithPingInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pingInterval = d
		}
	}
}

func WithHeaders(h HeaderProvider) Option {
	return func(f *Feed) { f.headers = h }
}

func WithNow(now func() time.Time) Option {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

type Feed struct {
	url  string
	sink Sink

	conn  *websocket.Conn
	connM sync.Mutex

	state  State
	stateM sync.RWMutex

	stateCbs []StateCallback
	cbM      sync.RWMutex

	maxReconnect int
	pingInterval time.Duration
	dialTimeout  time.Duration
	headers      HeaderProvider
	now          func() time.Time
	logger       *zap.Logger

	received atomic.Int64
	dropped  atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewFeed(url string, sink Sink, opts ...Option) *Feed {
	f := &Feed{
		url:          url,
		sink:         sink,
		state:        StateDisconnected,
		maxReconnect: 10,
		pingInterval: 30 * time.Second,
		dialTimeout:  10 * time.Second,
		now:          time.Now,
		logger:       obslog.L(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.rootCtx, f.rootCancel = context.WithCancel(context.Background())
	return f
}

// Connect dials once. On failure it still schedules background reconnects
// and returns the dial error.
func (f *Feed) Connect(ctx context.Context) error {
	switch f.State() {
	case StateConnected, StateConnecting, StateReconnecting:
		return nil
	}
	f.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, f.dialTimeout)
	defer cancel()
	conn, err := f.dial(dialCtx)
	if err != nil {
		f.logger.Warn("sensorfeed_dial_failed", zap.String("url", f.url), zap.Error(err))
		f.setState(StateFailed)
		f.scheduleReconnect()
		return err
	}
	f.attach(conn)
	return nil
}

func (f *Feed) OnStateChange(cb StateCallback) {
	f.cbM.Lock()
	defer f.cbM.Unlock()
	f.stateCbs = append(f.stateCbs, cb)
}

func (f *Feed) State() State {
	f.stateM.RLock()
	defer f.stateM.RUnlock()
	return f.state
}

// Stats reports frames received and frames rejected at decode.
func (f *Feed) Stats() (received, dropped int64) {
	return f.received.Load(), f.dropped.Load()
}

func (f *Feed) Close(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.rootCancel()
	f.connM.Lock()
	if f.conn != nil {
		_ = f.conn.Close(websocket.StatusNormalClosure, "close")
		f.conn = nil
	}
	f.connM.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		f.setState(StateDisconnected)
		return nil
	}
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, f.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      f.buildHeaders(),
	})
	return conn, err
}

func (f *Feed) attach(conn *websocket.Conn) {
	f.connM.Lock()
	f.conn = conn
	f.connM.Unlock()
	f.setState(StateConnected)
	f.logger.Info("sensorfeed_connected", zap.String("url", f.url))

	f.wg.Add(2)
	go f.listen(conn)
	go f.pingLoop(conn)
}

// drop closes conn if it is still current and reports whether this caller
// owns the reconnect. An unresponsive peer gets no close handshake.
func (f *Feed) drop(conn *websocket.Conn, reason string, handshake bool) bool {
	f.connM.Lock()
	defer f.connM.Unlock()
	if f.conn != conn {
		return false
	}
	if handshake {
		_ = conn.Close(websocket.StatusGoingAway, reason)
	} else {
		_ = conn.CloseNow()
	}
	f.conn = nil
	return true
}

func (f *Feed) current() *websocket.Conn {
	f.connM.Lock()
	defer f.connM.Unlock()
	return f.conn
}

func (f *Feed) listen(conn *websocket.Conn) {
	defer f.wg.Done()
	for {
		_, raw, err := conn.Read(f.rootCtx)
		if err != nil {
			if f.isStopping() {
				return
			}
			if f.drop(conn, "reconnect", true) {
				f.logger.Warn("sensorfeed_read_failed", zap.Error(err))
				f.setState(StateDisconnected)
				f.scheduleReconnect()
			}
			return
		}
		f.received.Add(1)
		ev, err := f.decode(raw)
		if err != nil {
			f.dropped.Add(1)
			f.logger.Warn("sensorfeed_bad_frame", zap.ByteString("frame", raw), zap.Error(err))
			continue
		}
		if err := f.deliver(ev); err != nil {
			if f.isStopping() {
				return
			}
			f.logger.Warn("sensorfeed_deliver_failed", zap.Error(err))
		}
	}
}

func (f *Feed) decode(raw []byte) (any, error) {
	var frame boarddto.SensorFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	return Decode(frame, f.now())
}

func (f *Feed) deliver(ev any) error {
	switch e := ev.(type) {
	case board.OccupancyChangeEvent:
		return f.sink.SubmitOccupancy(f.rootCtx, e)
	case board.StabilityEvent:
		return f.sink.SubmitStability(f.rootCtx, e)
	}
	return nil
}

func (f *Feed) pingLoop(conn *websocket.Conn) {
	defer f.wg.Done()
	t := time.NewTicker(f.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			if f.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(f.rootCtx, f.pingTimeout())
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if f.isStopping() {
					return
				}
				if f.drop(conn, "ping failure", false) {
					f.logger.Warn("sensorfeed_ping_failed", zap.Error(err))
					f.setState(StateDisconnected)
					f.scheduleReconnect()
				}
				return
			}
		}
	}
}

func (f *Feed) pingTimeout() time.Duration {
	return min(3*time.Second, f.pingInterval)
}

func (f *Feed) scheduleReconnect() {
	if f.maxReconnect <= 0 || f.isStopping() {
		return
	}
	f.setState(StateReconnecting)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for attempt := 1; attempt <= f.maxReconnect; attempt++ {
			select {
			case <-f.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			dialCtx, cancel := context.WithTimeout(f.rootCtx, f.dialTimeout)
			conn, err := f.dial(dialCtx)
			cancel()
			if err != nil {
				f.logger.Debug("sensorfeed_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if f.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			f.attach(conn)
			return
		}
		f.logger.Error("sensorfeed_gave_up", zap.Int("attempts", f.maxReconnect))
		f.setState(StateFailed)
	}()
}

func (f *Feed) setState(s State) {
	f.stateM.Lock()
	f.state = s
	f.stateM.Unlock()

	f.cbM.RLock()
	cbs := make([]StateCallback, len(f.stateCbs))
	copy(cbs, f.stateCbs)
	f.cbM.RUnlock()
	for _, cb := range cbs {
		if cb != nil {
			cb(s)
		}
	}
}

func (f *Feed) isStopping() bool {
	select {
	case <-f.stopCh:
		return true
	default:
		return false
	}
}

func (f *Feed) buildHeaders() http.Header {
	hdr := http.Header{}
	if f.headers == nil {
		return hdr
	}
	for k, v := range f.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ... 3.2s
}
