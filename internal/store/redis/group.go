package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"indcore/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// EnsureConsumerGroup creates the consumer group on every stream, starting
// at new entries. An existing group is left alone.
func (r *Reader) EnsureConsumerGroup(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		err := r.client.XGroupCreateMkStream(ctx, stream, r.group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// readGroupArgs lays streams out as XREADGROUP wants them: every stream
// name, then a ">" per stream.
func readGroupArgs(streams []string) []string {
	args := make([]string, 0, 2*len(streams))
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}
	return args
}

// nextBackoff doubles d within [minBackoff, maxBackoff].
func nextBackoff(d time.Duration) time.Duration {
	if d < minBackoff {
		return minBackoff
	}
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// ConsumeTFCandles reads new TF candles for the group and sends them to
// out. Read errors back off up to maxBackoff. Returns when ctx is done.
func (r *Reader) ConsumeTFCandles(ctx context.Context, streams []string, out chan<- model.TFCandle) error {
	args := readGroupArgs(streams)
	var backoff time.Duration
	for ctx.Err() == nil {
		res, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  args,
			Count:    r.readCount,
			Block:    r.block,
		}).Result()
		switch {
		case err == nil, errors.Is(err, goredis.Nil):
			backoff = 0
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			backoff = nextBackoff(backoff)
			slog.Warn("xreadgroup failed", slog.Duration("retry_in", backoff), slog.Any("error", err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, s := range res {
			if err := r.deliver(ctx, s.Stream, s.Messages, out); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}

// deliver sends each decodable entry to out, then acknowledges everything
// it handed off, plus undecodable entries, in one XACK.
func (r *Reader) deliver(ctx context.Context, stream string, msgs []goredis.XMessage, out chan<- model.TFCandle) error {
	if len(msgs) == 0 {
		return nil
	}
	acks := make([]string, 0, len(msgs))
	defer func() {
		if len(acks) == 0 {
			return
		}
		// The ack must go out even when ctx was cancelled mid-batch.
		if err := r.client.XAck(context.WithoutCancel(ctx), stream, r.group, acks...).Err(); err != nil {
			slog.Warn("xack failed", slog.String("stream", stream), slog.Int("ids", len(acks)), slog.Any("error", err))
		}
	}()

	for _, msg := range msgs {
		if msg.Values == nil {
			// Claimed but already trimmed from the stream.
			acks = append(acks, msg.ID)
			continue
		}
		tfc, err := decodeTFCandle(msg)
		if err != nil {
			r.badEntry(stream, err)
			acks = append(acks, msg.ID)
			continue
		}
		select {
		case out <- tfc:
			acks = append(acks, msg.ID)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// pendingIDs lists up to count PEL entries idle for at least idle,
// skipping those owned by skip.
func (r *Reader) pendingIDs(ctx context.Context, stream string, idle time.Duration, count int64, skip string) ([]string, error) {
	pending, err := r.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: stream,
		Group:  r.group,
		Idle:   idle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending %s: %w", stream, err)
	}
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		if skip == "" || p.Consumer != skip {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (r *Reader) claim(ctx context.Context, stream string, ids []string, minIdle time.Duration) ([]goredis.XMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	msgs, err := r.client.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   stream,
		Group:    r.group,
		Consumer: r.consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim %s: %w", stream, err)
	}
	return msgs, nil
}

// RecoverPending takes over every unacknowledged entry of the group, for
// example after a crash, and delivers it again. Returns the entries
// redelivered.
func (r *Reader) RecoverPending(ctx context.Context, streams []string, out chan<- model.TFCandle) (int, error) {
	total := 0
	for _, stream := range streams {
		for {
			ids, err := r.pendingIDs(ctx, stream, 0, r.readCount, "")
			if err != nil {
				slog.Warn("pending recovery skipped", slog.String("stream", stream), slog.Any("error", err))
				break
			}
			msgs, err := r.claim(ctx, stream, ids, 0)
			if err != nil {
				slog.Warn("pending recovery skipped", slog.String("stream", stream), slog.Any("error", err))
				break
			}
			if err := r.deliver(ctx, stream, msgs, out); err != nil {
				return total, err
			}
			total += len(msgs)
			if len(ids) == 0 || len(msgs) < len(ids) {
				break
			}
		}
	}
	return total, nil
}

// ReclaimStale claims entries other consumers left idle for at least
// minIdle.
func (r *Reader) ReclaimStale(ctx context.Context, stream string, minIdle time.Duration) ([]goredis.XMessage, error) {
	ids, err := r.pendingIDs(ctx, stream, minIdle, r.reclaimBatch, r.consumer)
	if err != nil {
		return nil, err
	}
	return r.claim(ctx, stream, ids, minIdle)
}

// RunReclaimer reclaims stale entries on every stream each interval and
// delivers them to out. onReclaim sees the per-pass total. Blocks until
// ctx is done.
func (r *Reader) RunReclaimer(ctx context.Context, streams []string, interval, minIdle time.Duration, out chan<- model.TFCandle, onReclaim func(count int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		total := 0
		for _, stream := range streams {
			msgs, err := r.ReclaimStale(ctx, stream, minIdle)
			if err != nil {
				slog.Warn("PEL reclaim failed", slog.String("stream", stream), slog.Any("error", err))
				continue
			}
			if err := r.deliver(ctx, stream, msgs, out); err != nil {
				return
			}
			total += len(msgs)
		}
		if total > 0 && onReclaim != nil {
			onReclaim(total)
		}
	}
}
