package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unsafe"

	"indcore/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Retention sizes each indicator stream to about this much history.
	// Default 3h.
	Retention time.Duration
	// LatestTTL expires the latest-value keys of silent symbols. Default 30m.
	LatestTTL time.Duration
}

// Writer publishes indicator results to Redis.
type Writer struct {
	client    *goredis.Client
	retention time.Duration
	latestTTL time.Duration
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New connects the writer and checks the connection.
func New(cfg WriterConfig) (*Writer, error) {
	client, err := dial(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	slog.Info("redis writer connected", slog.String("addr", cfg.Addr))
	return newWriter(client, cfg), nil
}

func newWriter(client *goredis.Client, cfg WriterConfig) *Writer {
	w := &Writer{client: client, retention: cfg.Retention, latestTTL: cfg.LatestTTL}
	if w.retention <= 0 {
		w.retention = 3 * time.Hour
	}
	if w.latestTTL <= 0 {
		w.latestTTL = 30 * time.Minute
	}
	return w
}

// streamMaxLen is the number of tf bars in retention plus slack, and
// never fewer than 200.
func streamMaxLen(tf int, retention time.Duration) int64 {
	maxLen := int64(retention/time.Second)/int64(tf) + 100
	if maxLen < 200 {
		maxLen = 200
	}
	return maxLen
}

// WriteIndicatorBatch writes multiple indicator results in a single Redis pipeline.
// Committed results get XADD + SET latest + PUBLISH; live previews are
// published only. Committed results that are not ready yet are skipped.
func (w *Writer) WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) error {
	if len(results) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	queued := 0
	for i := range results {
		ind := &results[i]
		if !ind.Ready && !ind.Live {
			continue
		}

		jsonBytes := ind.JSON()
		// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
		jsonData := *(*string)(unsafe.Pointer(&jsonBytes))
		queued++

		if ind.Live {
			pipe.Publish(ctx, ind.PubSubChannel(), jsonData)
			continue
		}

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: ind.StreamKey(),
			MaxLen: streamMaxLen(ind.TF, w.retention),
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, ind.LatestKey(), jsonData, w.latestTTL)
		pipe.Publish(ctx, ind.PubSubChannel(), jsonData)
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indicator batch pipeline (%d results): %w", len(results), err)
	}
	return nil
}

// LoadTFRegistry reads the tf:enabled set the candle builder maintains.
// Returns an empty slice if the key doesn't exist.
func (w *Writer) LoadTFRegistry(ctx context.Context) ([]int, error) {
	members, err := w.client.SMembers(ctx, "tf:enabled").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis SMEMBERS tf:enabled: %w", err)
	}
	return parseTFs(members), nil
}

// parseTFs keeps the positive integer members, accepting an optional "s" suffix.
func parseTFs(members []string) []int {
	tfs := make([]int, 0, len(members))
	for _, m := range members {
		if len(m) > 1 && m[len(m)-1] == 's' {
			m = m[:len(m)-1]
		}
		n, err := strconv.Atoi(m)
		if err == nil && n > 0 {
			tfs = append(tfs, n)
		}
	}
	return tfs
}

// SaveActiveConfig stores the active indicator config payload under key.
func (w *Writer) SaveActiveConfig(ctx context.Context, key string, payload []byte) error {
	if err := w.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// LoadActiveConfig returns the payload SaveActiveConfig stored, or nil
// when there is none.
func (w *Writer) LoadActiveConfig(ctx context.Context, key string) ([]byte, error) {
	b, err := w.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return b, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
