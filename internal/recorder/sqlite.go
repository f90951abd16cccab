package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// SQLiteRecorder journals executions and cycles to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			trade_type TEXT NOT NULL,
			pair       TEXT NOT NULL,
			price      REAL,
			amount     REAL,
			usd_value  REAL,
			reasoning  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,

		`CREATE TABLE IF NOT EXISTS position_closes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			pair        TEXT NOT NULL,
			entry_price REAL,
			exit_price  REAL,
			amount      REAL,
			pnl         REAL,
			pnl_pct     REAL,
			reason      TEXT,
			duration_s  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_closes_ts ON position_closes(timestamp)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			id           TEXT PRIMARY KEY,
			started_at   INTEGER NOT NULL,
			duration_ms  INTEGER,
			pairs        INTEGER,
			executed     INTEGER,
			forced_exits INTEGER,
			failures     INTEGER,
			usd_balance  REAL,
			total_value  REAL,
			results      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrade(t *model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trades
		(id, timestamp, trade_type, pair, price, amount, usd_value, reasoning)
		VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Timestamp.Unix(), string(t.Type), t.Pair,
		t.Price, t.Amount, t.USDValue, t.Reasoning,
	)
	return err
}

func (r *SQLiteRecorder) RecordPositionClose(c *model.ClosedPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO position_closes
		(timestamp, pair, entry_price, exit_price, amount, pnl, pnl_pct, reason, duration_s)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ClosedAt.Unix(), c.Pair, c.EntryPrice, c.ExitPrice, c.Amount,
		c.PnL, c.PnLPct, c.Reason, int64(c.Duration.Seconds()),
	)
	return err
}

func (r *SQLiteRecorder) RecordCycle(c *model.CycleResult) error {
	results, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	failures := c.Count(model.OutcomeError) + c.Count(model.OutcomeDecisionFailed)
	_, err = r.db.Exec(`INSERT INTO cycles
		(id, started_at, duration_ms, pairs, executed, forced_exits, failures, usd_balance, total_value, results)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.StartedAt.Unix(), c.Duration().Milliseconds(), len(c.Results),
		c.Count(model.OutcomeExecuted), c.Count(model.OutcomeForcedExit), failures,
		c.Portfolio.USDBalance, c.Portfolio.TotalValueUSD, string(results),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
