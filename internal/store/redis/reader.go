package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"indcore/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string // default "indengine"
	ConsumerName  string // unique per process, default "worker-1"

	ReadCount    int64         // XREADGROUP COUNT, default 100
	Block        time.Duration // XREADGROUP BLOCK, default 2s
	ReclaimBatch int64         // PEL entries claimed per pass, default 50

	// OnBadEntry, if set, is told about stream entries that fail to decode.
	// They are acknowledged and skipped either way.
	OnBadEntry func(stream string, err error)
}

// Reader consumes committed TF candles from Redis Streams through a
// consumer group, and forming candles and control messages from Pub/Sub.
type Reader struct {
	client   *goredis.Client
	group    string
	consumer string

	readCount    int64
	block        time.Duration
	reclaimBatch int64
	onBad        func(stream string, err error)
}

// errNoData marks a stream entry without a "data" field.
var errNoData = errors.New("stream entry has no data field")

// NewReader connects to Redis and checks the connection.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client, err := dial(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	r := newReader(client, cfg)
	slog.Info("redis reader connected",
		slog.String("addr", cfg.Addr), slog.String("group", r.group), slog.String("consumer", r.consumer))
	return r, nil
}

func newReader(client *goredis.Client, cfg ReaderConfig) *Reader {
	r := &Reader{
		client:       client,
		group:        cfg.ConsumerGroup,
		consumer:     cfg.ConsumerName,
		readCount:    cfg.ReadCount,
		block:        cfg.Block,
		reclaimBatch: cfg.ReclaimBatch,
		onBad:        cfg.OnBadEntry,
	}
	if r.group == "" {
		r.group = "indengine"
	}
	if r.consumer == "" {
		r.consumer = "worker-1"
	}
	if r.readCount <= 0 {
		r.readCount = 100
	}
	if r.block <= 0 {
		r.block = 2 * time.Second
	}
	if r.reclaimBatch <= 0 {
		r.reclaimBatch = 50
	}
	return r
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// decodeTFCandle parses the JSON candle stored under the "data" field.
func decodeTFCandle(msg goredis.XMessage) (model.TFCandle, error) {
	var tfc model.TFCandle
	data, ok := msg.Values["data"].(string)
	if !ok {
		return tfc, errNoData
	}
	if err := json.Unmarshal([]byte(data), &tfc); err != nil {
		return tfc, fmt.Errorf("unmarshal TFCandle %s: %w", msg.ID, err)
	}
	return tfc, nil
}

func (r *Reader) badEntry(stream string, err error) {
	slog.Warn("skipping bad stream entry", slog.String("stream", stream), slog.Any("error", err))
	if r.onBad != nil {
		r.onBad(stream, err)
	}
}

// replayBatch is the XRANGE page size used by ReplayFromID.
const replayBatch = 1000

// ReplayFromID sends every candle after startID ("0" for all) to out and
// returns the last ID read. It does not touch the consumer group.
func (r *Reader) ReplayFromID(ctx context.Context, stream, startID string, out chan<- model.TFCandle) (string, error) {
	lastID := startID
	for {
		page, err := r.client.XRangeN(ctx, stream, "("+lastID, "+", replayBatch).Result()
		if err != nil {
			return lastID, fmt.Errorf("xrange %s from %s: %w", stream, lastID, err)
		}
		for _, msg := range page {
			lastID = msg.ID
			tfc, err := decodeTFCandle(msg)
			if err != nil {
				r.badEntry(stream, err)
				continue
			}
			select {
			case out <- tfc:
			case <-ctx.Done():
				return lastID, ctx.Err()
			}
		}
		if len(page) < replayBatch {
			return lastID, nil
		}
	}
}

// DiscoverTFStreams returns the TF candle streams to consume. With token
// keys ("exchange:token") it keeps those whose stream exists; without, it
// scans for every "candle:{tf}s:*" stream.
func (r *Reader) DiscoverTFStreams(ctx context.Context, tfs []int, tokens []string) ([]string, error) {
	var streams []string
	for _, tf := range tfs {
		if len(tokens) > 0 {
			for _, tok := range tokens {
				stream := model.TFStreamKey(tf, tok)
				exists, err := r.client.Exists(ctx, stream).Result()
				if err != nil {
					return streams, fmt.Errorf("exists %s: %w", stream, err)
				}
				if exists > 0 {
					streams = append(streams, stream)
				}
			}
			continue
		}

		var cursor uint64
		for {
			pattern := model.TFStreamKey(tf, "*")
			keys, next, err := r.client.ScanType(ctx, cursor, pattern, 500, "stream").Result()
			if err != nil {
				return streams, fmt.Errorf("scan %s: %w", pattern, err)
			}
			streams = append(streams, keys...)
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	return streams, nil
}

// SubscribeFormingCandles subscribes to the pub:candle:* pattern and feeds
// forming TF candles into out. Committed candles are ignored; they arrive
// on the streams. A full out drops the candle and calls onDrop.
// Blocks until ctx is cancelled.
func (r *Reader) SubscribeFormingCandles(ctx context.Context, tfs []int, out chan<- model.TFCandle, onDrop func()) error {
	pubsub := r.client.PSubscribe(ctx, "pub:candle:*")
	defer pubsub.Close()

	enabled := make(map[int]bool, len(tfs))
	for _, tf := range tfs {
		enabled[tf] = true
	}
	agg := newFormingAggregator(tfs)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var tfc model.TFCandle
			if err := json.Unmarshal([]byte(msg.Payload), &tfc); err != nil {
				continue
			}

			var forming []model.TFCandle
			switch {
			case tfc.TF == 1:
				// No upstream forming candles for our TFs: build them from 1s bars.
				forming = agg.Add(tfc)
			case tfc.Forming && enabled[tfc.TF]:
				agg.Disable(tfc.TF)
				forming = []model.TFCandle{tfc}
			}
			for _, f := range forming {
				select {
				case out <- f:
				default:
					if onDrop != nil {
						onDrop()
					}
				}
			}
		}
	}
}

// SubscribeChannel subscribes to channel and waits for the confirmation.
func (r *Reader) SubscribeChannel(ctx context.Context, channel string) (*goredis.PubSub, error) {
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return pubsub, nil
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
