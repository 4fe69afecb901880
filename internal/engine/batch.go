package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BuildFunc constructs a fully wired engine plus its cleanup. Each
// concurrent session owns its engine instance, browser context and
// identity; the append-only store is the only shared collaborator.
type BuildFunc func(ctx context.Context) (*Engine, func(), error)

// RunBatch runs count independent sessions concurrently. Phase failures
// stay local to their session (reported through the Result); only
// infrastructure errors (browser start, expired mailbox session)
// cancel the remaining sessions, since they would hit every one of them.
func RunBatch(ctx context.Context, count int, build BuildFunc, log *zap.Logger) ([]*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]*Result, count)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			eng, cleanup, err := build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := eng.Run(ctx)
			results[i] = res
			if err != nil {
				return err
			}
			if res.Succeeded() {
				log.Info("batch session done", zap.Int("slot", i), zap.String("address", res.Record.Address))
			} else {
				log.Warn("batch session failed", zap.Int("slot", i), zap.String("failed_at", string(res.FailedAt)))
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
