package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadGroupArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"candle:60s:NSE:1", "candle:300s:NSE:1", ">", ">"},
		readGroupArgs([]string{"candle:60s:NSE:1", "candle:300s:NSE:1"}))
	assert.Empty(t, readGroupArgs(nil))
}

func TestNextBackoff(t *testing.T) {
	var d time.Duration
	var seen []time.Duration
	for i := 0; i < 7; i++ {
		d = nextBackoff(d)
		seen = append(seen, d)
	}
	assert.Equal(t, []time.Duration{
		250 * time.Millisecond, 500 * time.Millisecond, time.Second,
		2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, seen)
}

func TestNewReaderDefaults(t *testing.T) {
	r := newReader(nil, ReaderConfig{})
	assert.Equal(t, "indengine", r.group)
	assert.Equal(t, "worker-1", r.consumer)
	assert.Equal(t, int64(100), r.readCount)
	assert.Equal(t, 2*time.Second, r.block)
	assert.Equal(t, int64(50), r.reclaimBatch)

	r = newReader(nil, ReaderConfig{ConsumerGroup: "g", ConsumerName: "c", ReadCount: 10, Block: time.Second, ReclaimBatch: 5})
	assert.Equal(t, "g", r.group)
	assert.Equal(t, int64(10), r.readCount)
	assert.Equal(t, int64(5), r.reclaimBatch)
}

func TestBadEntryCallback(t *testing.T) {
	var streams []string
	r := newReader(nil, ReaderConfig{OnBadEntry: func(stream string, err error) {
		streams = append(streams, stream)
		assert.ErrorIs(t, err, errNoData)
	}})
	r.badEntry("candle:60s:NSE:1", errNoData)
	assert.Equal(t, []string{"candle:60s:NSE:1"}, streams)
}
