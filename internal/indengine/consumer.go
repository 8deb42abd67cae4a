package indengine

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// startConsumer starts the Redis stream XREADGROUP consumer in a goroutine.
func (svc *Service) startConsumer(ctx context.Context) {
	if len(svc.streams) == 0 {
		return
	}
	go func() {
		err := svc.redisReader.ConsumeTFCandles(ctx, svc.streams, svc.tfCandleCh)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("stream consumer stopped", slog.Any("error", err))
		}
	}()
}

// startPELReclaimer starts periodic reclamation of stale PEL messages.
func (svc *Service) startPELReclaimer(ctx context.Context) {
	if len(svc.streams) == 0 {
		return
	}
	minIdle := time.Duration(svc.cfg.PELMinIdleMs) * time.Millisecond
	go svc.redisReader.RunReclaimer(ctx, svc.streams,
		svc.cfg.PELInterval, minIdle, svc.tfCandleCh,
		func(count int) {
			svc.prom.PELMessagesReclaimed.Add(float64(count))
			slog.Info("reclaimed stale PEL messages", slog.Int("count", count))
		})
	slog.Info("PEL reclaimer started",
		slog.Duration("interval", svc.cfg.PELInterval), slog.Duration("min_idle", minIdle))
}
