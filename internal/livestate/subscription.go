package livestate

import (
	"context"
	"encoding/json"

	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type MoveSubscription struct {
	ps    *redis.PubSub
	moves chan *boarddto.Move
}

func (m *MoveSubscription) Moves() <-chan *boarddto.Move { return m.moves }

func (m *MoveSubscription) Close() error { return m.ps.Close() }

func (m *MoveSubscription) pump(ctx context.Context) {
	defer close(m.moves)
	ch := m.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = m.ps.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var mv boarddto.Move
			if err := json.Unmarshal([]byte(msg.Payload), &mv); err != nil {
				obslog.L().Warn("livestate_bad_move_payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case m.moves <- &mv:
			case <-ctx.Done():
				_ = m.ps.Close()
				return
			}
		}
	}
}
