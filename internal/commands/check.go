package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/kafka"
)

// CheckAction probes every configured dependency and prints one line per
// component. It fails with the unavailable exit code when any is down.
func CheckAction(c *cli.Context) error {
	e, ctx, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	checker := e.checker()
	report := checker.Run(ctx)
	if _, err := report.WriteTo(c.App.Writer); err != nil {
		return err
	}
	if report.Status == health.StatusDown {
		return apperrors.New(apperrors.ErrUpstream, apperrors.ExitUnavail, "dependency check failed")
	}
	return nil
}

func (e *env) checker() *health.Checker {
	checker := health.NewChecker()
	checker.Register("stopwords", func(context.Context) health.ComponentHealth {
		s, err := tokenizer.LoadStopwords(e.cfg.Mapper.StopwordsPath)
		if err != nil {
			return health.Down(err)
		}
		return health.Up(fmt.Sprintf("%d words", s.Len()))
	})
	checker.Register("output", func(context.Context) health.ComponentHealth {
		return health.FromError(writable(e.cfg.Output.Dir), e.cfg.Output.Dir)
	})
	checker.Register("api", func(ctx context.Context) health.ComponentHealth {
		return health.FromError(e.client(nil).Ping(ctx), e.cfg.Fetcher.BaseURL)
	})
	if e.cfg.Sink.Kind != "" {
		checker.Register("sink", func(ctx context.Context) health.ComponentHealth {
			store, err := e.store(ctx)
			if err == nil {
				err = store.Ping(ctx)
			}
			return health.FromError(err, e.cfg.Sink.Kind)
		})
	}
	if e.cfg.Redis.Enabled {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			_, err := e.pageCache(ctx)
			return health.FromError(err, e.cfg.Redis.Addr)
		})
	}
	if e.cfg.Kafka.Enabled {
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			return health.FromError(kafka.Ping(ctx, e.cfg.Kafka.Brokers), e.cfg.Kafka.Topic)
		})
	}
	return checker
}

// writable reports whether files can be created in dir.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}
