package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"indcore/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for backfill and replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", slog.String("path", dbPath))
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadTFCandles returns one symbol's committed candles for tf after
// afterTS (unix seconds), oldest first.
func (r *Reader) ReadTFCandles(exchange, token string, tf int, afterTS int64) ([]model.TFCandle, error) {
	return r.queryCandles(`exchange = ? AND token = ? AND tf = ? AND ts > ?`, exchange, token, tf, afterTS)
}

// ReadAllTFCandles returns every symbol's committed candles for tf after
// afterTS, oldest first. Warm-up and replay read through it.
func (r *Reader) ReadAllTFCandles(tf int, afterTS int64) ([]model.TFCandle, error) {
	return r.queryCandles(`tf = ? AND ts > ?`, tf, afterTS)
}

func (r *Reader) queryCandles(where string, args ...any) ([]model.TFCandle, error) {
	rows, err := r.db.Query(`
		SELECT token, exchange, tf, ts, open, high, low, close, volume, count
		FROM candles_tf
		WHERE `+where+`
		ORDER BY ts ASC, exchange, token`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_tf: %w", err)
	}
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.TFCandle, error) {
	defer rows.Close()

	var candles []model.TFCandle
	for rows.Next() {
		var c model.TFCandle
		var tsUnix int64
		var volume sql.NullInt64
		var count sql.NullInt64
		if err := rows.Scan(&c.Token, &c.Exchange, &c.TF, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume, &count); err != nil {
			return nil, fmt.Errorf("sqlite scan candles_tf: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		c.Volume = volume.Int64
		c.Count = int(count.Int64)
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ReadIndicatorValues returns the stored values of one indicator for a
// token and TF, oldest first.
func (r *Reader) ReadIndicatorValues(name, exchange, token string, tf int, afterTS int64) ([]model.IndicatorResult, error) {
	rows, err := r.db.Query(`
		SELECT name, token, exchange, tf, ts, value, outputs, ready
		FROM indicator_values
		WHERE name = ? AND exchange = ? AND token = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`, name, exchange, token, tf, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query indicator_values: %w", err)
	}
	defer rows.Close()

	var out []model.IndicatorResult
	for rows.Next() {
		var res model.IndicatorResult
		var tsUnix int64
		var outputs sql.NullString
		if err := rows.Scan(&res.Name, &res.Token, &res.Exchange, &res.TF, &tsUnix, &res.Value, &outputs, &res.Ready); err != nil {
			return nil, fmt.Errorf("sqlite scan indicator_values: %w", err)
		}
		res.TS = time.Unix(tsUnix, 0).UTC()
		if outputs.Valid {
			if err := json.Unmarshal([]byte(outputs.String), &res.Outputs); err != nil {
				return nil, fmt.Errorf("decode outputs of %s: %w", res.Name, err)
			}
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
