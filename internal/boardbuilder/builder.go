// Package boardbuilder assembles a running board service from AppConfig.
package boardbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/clock"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/httpapi"
	"github.com/park285/cheese-board/internal/livestate"
	"github.com/park285/cheese-board/internal/sensorfeed"
	"github.com/park285/cheese-board/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Deps struct {
	Config  *config.AppConfig
	Session *session.Session
	Store   *livestate.Store // nil without REDIS_URL
	Feed    *sensorfeed.Feed // nil without SENSOR_WS_URL
	Server  *httpapi.Server

	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, logger: logger}

	// Live state (Redis optional)
	var pub session.Publisher
	if strings.TrimSpace(cfg.RedisURL) != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		store, err := livestate.Open(pingCtx, cfg.RedisURL, cfg.LiveStateTTL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init live state: %w", err)
		}
		d.Store = store
		pub = store
	} else {
		logger.Info("live_state_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	opts := []session.Option{session.WithLogger(logger)}
	if pub != nil {
		opts = append(opts, session.WithPublisher(pub))
	}
	sess, err := session.New(session.Config{
		BoardID: cfg.BoardID,
		Clock: clock.Config{
			InitialTime: cfg.ClockInitial,
			Increment:   cfg.ClockIncrement,
		},
		ResolveCaptures: cfg.ResolveCaptures,
	}, opts...)
	if err != nil {
		_ = d.Store.Close()
		return nil, fmt.Errorf("init session: %w", err)
	}
	d.Session = sess

	if strings.TrimSpace(cfg.SensorWSURL) != "" {
		d.Feed = sensorfeed.NewFeed(cfg.SensorWSURL, sess,
			sensorfeed.WithLogger(logger),
			sensorfeed.WithMaxReconnect(cfg.SensorMaxReconnect),
			sensorfeed.WithPingInterval(cfg.SensorPingInterval),
			sensorfeed.WithHeaders(func() map[string]string { return cfg.SensorHeaders }),
		)
		d.Feed.OnStateChange(func(s sensorfeed.State) {
			logger.Info("sensor_state", zap.String("state", string(s)))
		})
	} else {
		logger.Info("sensor_feed_disabled", zap.String("reason", "SENSOR_WS_URL not set"))
	}

	d.Server = httpapi.New(sess, httpapi.WithLogger(logger))
	return d, nil
}

// Run starts every component and blocks until ctx ends or one of them fails.
func (d *Deps) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Session.Run(gctx) })
	g.Go(func() error {
		clock.Drive(gctx, d.Session.Clock(), d.Config.ClockTick)
		return nil
	})
	g.Go(func() error { return d.Server.ListenAndServe(gctx, d.Config.HTTPAddr) })
	if d.Feed != nil {
		// a failed first dial keeps retrying in the background
		if err := d.Feed.Connect(gctx); err != nil {
			d.logger.Warn("sensor_connect_failed", zap.Error(err))
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Feed != nil {
		errs = append(errs, d.Feed.Close(ctx))
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}
