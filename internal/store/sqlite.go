package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ashare/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const runSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id                TEXT PRIMARY KEY,
    name              TEXT     NOT NULL DEFAULT '',
    created_at        DATETIME NOT NULL,
    start_date        TEXT     NOT NULL,
    end_date          TEXT     NOT NULL,
    initial_capital   REAL     NOT NULL,
    final_asset       REAL     NOT NULL,
    total_return      REAL     NOT NULL DEFAULT 0,
    annualized_return REAL     NOT NULL DEFAULT 0,
    max_drawdown      REAL     NOT NULL DEFAULT 0,
    sharpe            REAL     NOT NULL DEFAULT 0,
    trade_count       INTEGER  NOT NULL DEFAULT 0,
    config            TEXT     NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_trades (
    run_id           TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq              INTEGER NOT NULL,
    date             TEXT    NOT NULL,
    code             TEXT    NOT NULL,
    name             TEXT    NOT NULL DEFAULT '',
    action           TEXT    NOT NULL,
    price            REAL    NOT NULL,
    shares           INTEGER NOT NULL,
    amount           REAL    NOT NULL,
    fee              REAL    NOT NULL,
    resulting_shares INTEGER NOT NULL,
    resulting_cash   REAL    NOT NULL,
    reason           TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_daily (
    run_id                TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date                  TEXT NOT NULL,
    cash                  REAL NOT NULL,
    position_value        REAL NOT NULL,
    total_asset           REAL NOT NULL,
    cumulative_return_pct REAL NOT NULL,
    PRIMARY KEY (run_id, date)
);

CREATE TABLE IF NOT EXISTS run_annual (
    run_id        TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    year          INTEGER NOT NULL,
    annual_return REAL    NOT NULL,
    max_return    REAL    NOT NULL,
    max_drawdown  REAL    NOT NULL,
    trading_days  INTEGER NOT NULL,
    start_asset   REAL    NOT NULL,
    end_asset     REAL    NOT NULL,
    PRIMARY KEY (run_id, year)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

const runColumns = `id, name, created_at, start_date, end_date, initial_capital, final_asset,
    total_return, annualized_return, max_drawdown, sharpe, trade_count, config`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// the run schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store.NewSQLiteStore: open %q: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(runSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run header and all its rows in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	h := run.RunSummary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Name, h.CreatedAt, h.Start.Format(domain.DateLayout), h.End.Format(domain.DateLayout),
		h.InitialCapital, h.FinalAsset, h.TotalReturn, h.AnnualizedReturn, h.MaxDrawdown, h.Sharpe,
		h.TradeCount, h.Config,
	); err != nil {
		return "", fmt.Errorf("store.SaveRun: insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_trades
        (run_id, seq, date, code, name, action, price, shares, amount, fee, resulting_shares, resulting_cash, reason)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: prepare trades: %w", err)
	}
	defer tradeStmt.Close()
	for i, t := range run.Trades {
		if _, err := tradeStmt.ExecContext(ctx, run.ID, i, t.Date.Format(domain.DateLayout), t.Code, t.Name,
			string(t.Action), t.Price, t.Shares, t.Amount, t.Fee, t.ResultingShares, t.ResultingCash, t.Reason,
		); err != nil {
			return "", fmt.Errorf("store.SaveRun: insert trade %d: %w", i, err)
		}
	}

	dailyStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_daily
        (run_id, date, cash, position_value, total_asset, cumulative_return_pct)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: prepare daily: %w", err)
	}
	defer dailyStmt.Close()
	for _, d := range run.Daily {
		if _, err := dailyStmt.ExecContext(ctx, run.ID, d.Date.Format(domain.DateLayout),
			d.Cash, d.PositionValue, d.TotalAsset, d.CumulativeReturnPct,
		); err != nil {
			return "", fmt.Errorf("store.SaveRun: insert daily %s: %w", d.Date.Format(domain.DateLayout), err)
		}
	}

	annualStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_annual
        (run_id, year, annual_return, max_return, max_drawdown, trading_days, start_asset, end_asset)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store.SaveRun: prepare annual: %w", err)
	}
	defer annualStmt.Close()
	for _, a := range run.Annual {
		if _, err := annualStmt.ExecContext(ctx, run.ID, a.Year, a.AnnualReturn, a.MaxReturn,
			a.MaxDrawdown, a.TradingDays, a.StartAsset, a.EndAsset,
		); err != nil {
			return "", fmt.Errorf("store.SaveRun: insert annual %d: %w", a.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store.SaveRun: commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store.ListRuns: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store.ListRuns: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRun returns the header of one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetRun: %w", err)
	}
	return r, nil
}

// RunTrades returns the fills of a run in execution order.
func (s *SQLiteStore) RunTrades(ctx context.Context, id string) ([]domain.Trade, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, code, name, action, price, shares, amount, fee,
        resulting_shares, resulting_cash, reason FROM run_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("store.RunTrades: %w", err)
	}
	defer rows.Close()

	out := []domain.Trade{}
	for rows.Next() {
		var (
			t      domain.Trade
			date   string
			action string
		)
		if err := rows.Scan(&date, &t.Code, &t.Name, &action, &t.Price, &t.Shares, &t.Amount, &t.Fee,
			&t.ResultingShares, &t.ResultingCash, &t.Reason); err != nil {
			return nil, fmt.Errorf("store.RunTrades: scan: %w", err)
		}
		if t.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("store.RunTrades: %w", err)
		}
		t.Action = domain.TradeAction(action)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RunDaily returns the daily records of a run in date order.
func (s *SQLiteStore) RunDaily(ctx context.Context, id string) ([]domain.DailyRecord, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date, cash, position_value, total_asset, cumulative_return_pct
        FROM run_daily WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, fmt.Errorf("store.RunDaily: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyRecord{}
	for rows.Next() {
		var (
			d    domain.DailyRecord
			date string
		)
		if err := rows.Scan(&date, &d.Cash, &d.PositionValue, &d.TotalAsset, &d.CumulativeReturnPct); err != nil {
			return nil, fmt.Errorf("store.RunDaily: scan: %w", err)
		}
		if d.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("store.RunDaily: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RunAnnual returns the per-year statistics of a run.
func (s *SQLiteStore) RunAnnual(ctx context.Context, id string) ([]domain.AnnualStats, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT year, annual_return, max_return, max_drawdown, trading_days,
        start_asset, end_asset FROM run_annual WHERE run_id = ? ORDER BY year`, id)
	if err != nil {
		return nil, fmt.Errorf("store.RunAnnual: %w", err)
	}
	defer rows.Close()

	out := []domain.AnnualStats{}
	for rows.Next() {
		var a domain.AnnualStats
		if err := rows.Scan(&a.Year, &a.AnnualReturn, &a.MaxReturn, &a.MaxDrawdown, &a.TradingDays,
			&a.StartAsset, &a.EndAsset); err != nil {
			return nil, fmt.Errorf("store.RunAnnual: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) exists(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("store: lookup run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*RunSummary, error) {
	var (
		r          RunSummary
		start, end string
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.CreatedAt, &start, &end, &r.InitialCapital, &r.FinalAsset,
		&r.TotalReturn, &r.AnnualizedReturn, &r.MaxDrawdown, &r.Sharpe, &r.TradeCount, &r.Config); err != nil {
		return nil, err
	}
	var err error
	if r.Start, err = domain.ParseDate(start); err != nil {
		return nil, err
	}
	if r.End, err = domain.ParseDate(end); err != nil {
		return nil, err
	}
	return &r, nil
}
