package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"indcore/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath     string        // path to SQLite database file, e.g. "data/candles.db"
	BatchSize  int           // default 100
	FlushDelay time.Duration // default 200ms

	// OnCommit, if set, observes the latency of each committed batch.
	OnCommit func(time.Duration)
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	cfg WriterConfig
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = defaultFlushDelay
	}

	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite writer opened", slog.String("path", cfg.DBPath))
	return &Writer{db: db, cfg: cfg}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles_tf (
			token      TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       INTEGER NOT NULL,
			high       INTEGER NOT NULL,
			low        INTEGER NOT NULL,
			close      INTEGER NOT NULL,
			volume     INTEGER,
			count      INTEGER,
			PRIMARY KEY (exchange, token, tf, ts)
		);

		CREATE TABLE IF NOT EXISTS indicator_values (
			name       TEXT    NOT NULL,
			token      TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			tf         INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			value      REAL    NOT NULL,
			outputs    TEXT,
			ready      INTEGER NOT NULL,
			PRIMARY KEY (name, exchange, token, tf, ts)
		);
	`)
	return err
}

// batchLoop drains ch into batches of at most BatchSize and hands each to
// flush, at the latest FlushDelay after the previous flush. It flushes what
// is left when ctx is cancelled or ch closes.
func batchLoop[T any](ctx context.Context, w *Writer, what string, ch <-chan T, insert func([]T) error) {
	batch := make([]T, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.FlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := insert(batch); err != nil {
			slog.Error("sqlite batch insert failed",
				slog.String("table", what), slog.Int("rows", len(batch)), slog.Any("error", err))
		} else {
			took := time.Since(start)
			if w.cfg.OnCommit != nil {
				w.cfg.OnCommit(took)
			}
			slog.Debug("sqlite batch committed",
				slog.String("table", what), slog.Int("rows", len(batch)), slog.Duration("took", took))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case v, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, v)
			if len(batch) >= w.cfg.BatchSize {
				flush()
				timer.Reset(w.cfg.FlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(w.cfg.FlushDelay)
		}
	}
}

// RunTFCandles reads TF candles from a channel and inserts them in batched
// transactions. Forming candles are skipped. Blocks until ctx is cancelled
// or the channel is closed.
func (w *Writer) RunTFCandles(ctx context.Context, tfCandleCh <-chan model.TFCandle) {
	batchLoop(ctx, w, "candles_tf", tfCandleCh, w.InsertTFCandles)
}

// RunIndicatorValues persists committed indicator results. Live previews
// are skipped.
func (w *Writer) RunIndicatorValues(ctx context.Context, resultCh <-chan model.IndicatorResult) {
	batchLoop(ctx, w, "indicator_values", resultCh, w.InsertIndicatorValues)
}

// InsertTFCandles inserts a batch of committed TF candles in a single transaction.
func (w *Writer) InsertTFCandles(candles []model.TFCandle) error {
	return w.inTx(`
		INSERT OR REPLACE INTO candles_tf (token, exchange, tf, ts, open, high, low, close, volume, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for _, c := range candles {
			if c.Forming {
				continue
			}
			if _, err := stmt.Exec(c.Token, c.Exchange, c.TF, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Count); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertIndicatorValues inserts a batch of committed indicator results in a
// single transaction. Named outputs are stored as a JSON object.
func (w *Writer) InsertIndicatorValues(results []model.IndicatorResult) error {
	return w.inTx(`
		INSERT OR REPLACE INTO indicator_values (name, token, exchange, tf, ts, value, outputs, ready)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, func(stmt *sql.Stmt) error {
		for _, r := range results {
			if r.Live {
				continue
			}
			var outputs sql.NullString
			if len(r.Outputs) > 0 {
				b, err := json.Marshal(r.Outputs)
				if err != nil {
					return fmt.Errorf("marshal outputs of %s: %w", r.Name, err)
				}
				outputs = sql.NullString{String: string(b), Valid: true}
			}
			if _, err := stmt.Exec(r.Name, r.Token, r.Exchange, r.TF, r.TS.Unix(), r.Value, outputs, r.Ready); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Writer) inTx(query string, fn func(*sql.Stmt) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
