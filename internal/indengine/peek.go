package indengine

import (
	"context"
	"log/slog"
)

// peekLoop feeds forming candles from Redis Pub/Sub into the processor for
// live previews. Forming candles are dropped rather than queued when the
// processor falls behind; the next one supersedes them anyway.
func (svc *Service) peekLoop(ctx context.Context) {
	err := svc.redisReader.SubscribeFormingCandles(ctx, svc.tfs, svc.tfCandleCh, func() {
		svc.prom.DroppedCandles.Inc()
	})
	if err != nil {
		slog.Error("forming candle subscription failed", slog.Any("error", err))
	}
}
