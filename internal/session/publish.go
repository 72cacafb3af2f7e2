package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// enqueuePublish never blocks; when the outbox is full the job is dropped and
// the next mirror tick repairs the clock key.
func (s *Session) enqueuePublish(job publishJob) {
	if s.pub == nil {
		return
	}
	select {
	case s.outbox <- job:
	default:
		s.logger.Warn("session_outbox_full")
	}
}

func (s *Session) publishLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.MirrorEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.drainOutbox()
			return
		case job := <-s.outbox:
			s.publish(ctx, job)
		case <-t.C:
			s.publish(ctx, publishJob{clock: s.clockSnapshot()})
		}
	}
}

// drainOutbox flushes whatever is still queued after shutdown.
func (s *Session) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
	defer cancel()
	for {
		select {
		case job := <-s.outbox:
			s.publish(ctx, job)
		default:
			return
		}
	}
}

func (s *Session) publish(parent context.Context, job publishJob) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.PublishTimeout)
	defer cancel()
	if job.move != nil {
		if err := s.pub.PublishMove(ctx, s.boardID, job.move); err != nil {
			s.logger.Warn("session_publish_move_failed", zap.String("uci", job.move.UCI), zap.Error(err))
		}
	}
	if job.clock != nil {
		if err := s.pub.SaveClock(ctx, s.boardID, job.clock); err != nil {
			s.logger.Warn("session_save_clock_failed", zap.Error(err))
		}
	}
	if job.status != nil {
		if err := s.pub.SaveStatus(ctx, s.boardID, job.status); err != nil {
			s.logger.Warn("session_save_status_failed", zap.Error(err))
		}
	}
}
