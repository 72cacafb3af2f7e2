// Package livestate mirrors a board's live clock and detector state into Redis
// and fans confirmed moves out over pub/sub. It is a cache for display
// clients; nothing here survives beyond the configured TTL.
package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 6 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Open dials REDIS_URL and pings it before returning.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keyBoard(id string) string     { return "board:" + strings.TrimSpace(id) }
func (s *Store) keyClock(id string) string     { return s.keyBoard(id) + ":clock" }
func (s *Store) keyStatus(id string) string    { return s.keyBoard(id) + ":fsm" }
func (s *Store) channelMoves(id string) string { return s.keyBoard(id) + ":moves" }
func (s *Store) keyIndex() string              { return "board:index" }

func (s *Store) SaveClock(ctx context.Context, boardID string, st *boarddto.ClockState) error {
	if err := s.setJSON(ctx, s.keyClock(boardID), st); err != nil {
		return err
	}
	return s.touchIndex(ctx, boardID)
}

// LoadClock returns nil, nil when nothing is cached for the board.
func (s *Store) LoadClock(ctx context.Context, boardID string) (*boarddto.ClockState, error) {
	var st boarddto.ClockState
	ok, err := s.getJSON(ctx, s.keyClock(boardID), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

func (s *Store) SaveStatus(ctx context.Context, boardID string, st *boarddto.BoardStatus) error {
	if err := s.setJSON(ctx, s.keyStatus(boardID), st); err != nil {
		return err
	}
	return s.touchIndex(ctx, boardID)
}

func (s *Store) LoadStatus(ctx context.Context, boardID string) (*boarddto.BoardStatus, error) {
	var st boarddto.BoardStatus
	ok, err := s.getJSON(ctx, s.keyStatus(boardID), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// PublishMove sends the move as JSON on board:<id>:moves.
func (s *Store) PublishMove(ctx context.Context, boardID string, mv *boarddto.Move) error {
	raw, err := json.Marshal(mv)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channelMoves(boardID), raw).Err()
}

// SubscribeMoves returns a subscription whose Moves channel is closed when ctx
// ends or the subscription is closed. Malformed payloads are skipped.
func (s *Store) SubscribeMoves(ctx context.Context, boardID string) (*MoveSubscription, error) {
	ps := s.rdb.Subscribe(ctx, s.channelMoves(boardID))
	// 구독 확인 응답까지 기다려야 첫 PUBLISH 를 놓치지 않는다
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &MoveSubscription{ps: ps, moves: make(chan *boarddto.Move, 16)}
	go sub.pump(ctx)
	return sub, nil
}

// Boards lists board IDs that have written state within the TTL window.
func (s *Store) Boards(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyIndex()).Result()
}

func (s *Store) touchIndex(ctx context.Context, boardID string) error {
	if strings.TrimSpace(boardID) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.keyIndex(), boardID).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyIndex(), s.ttl).Err()
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}
