// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite. Decimal values are stored as
// TEXT so no precision is lost.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex // serializes write transactions
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, dbError(err, "failed to open database")
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, dbError(err, "failed to initialize schema")
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Portfolios: cash and derived totals
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		cash_balance TEXT NOT NULL,
		total_value TEXT NOT NULL,
		invested_amount TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL
	);

	-- Holdings: one row per portfolio and symbol, removed at zero quantity
	CREATE TABLE IF NOT EXISTS holdings (
		portfolio_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL,
		average_cost TEXT NOT NULL,
		current_price TEXT NOT NULL,
		market_value TEXT NOT NULL,
		unrealized_gain_loss TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (portfolio_id, symbol),
		FOREIGN KEY (portfolio_id) REFERENCES portfolios(id)
	);

	-- Applied executions: at most one portfolio update per execution id
	CREATE TABLE IF NOT EXISTS applied_executions (
		execution_id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	);

	-- Execution log: every simulated result, filled or not
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL,
		order_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		order_type TEXT NOT NULL,
		status TEXT NOT NULL,
		execution_price TEXT,
		filled_quantity TEXT NOT NULL,
		remaining_quantity TEXT NOT NULL,
		commission TEXT NOT NULL,
		fees TEXT NOT NULL,
		slippage_bps TEXT NOT NULL,
		fill_quality TEXT,
		execution_time DATETIME,
		latency_ns INTEGER,
		notes TEXT,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holdings_portfolio ON holdings(portfolio_id);
	CREATE INDEX IF NOT EXISTS idx_executions_portfolio ON executions(portfolio_id);
	CREATE INDEX IF NOT EXISTS idx_executions_symbol ON executions(symbol);
	CREATE INDEX IF NOT EXISTS idx_executions_recorded ON executions(recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Portfolio Methods
// ============================================================================

// CreatePortfolio inserts a new portfolio and its holdings.
func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolios (id, cash_balance, total_value, invested_amount, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.CashBalance, p.TotalValue, p.InvestedAmount, updatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", apperrors.ErrPortfolioExists, p.ID)
		}
		return dbError(err, "failed to create portfolio")
	}

	for _, symbol := range p.Symbols() {
		if err := upsertHolding(ctx, tx, p.ID, p.Holdings[symbol]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError(err, "failed to commit transaction")
	}
	return nil
}

// GetPortfolio loads a portfolio with all of its holdings.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	p := models.Portfolio{ID: id, Holdings: make(map[string]models.Holding)}
	err := s.db.QueryRowContext(ctx, `
		SELECT cash_balance, total_value, invested_amount, updated_at
		FROM portfolios WHERE id = ?
	`, id).Scan(&p.CashBalance, &p.TotalValue, &p.InvestedAmount, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPortfolioNotFound, id)
	}
	if err != nil {
		return nil, dbError(err, "failed to get portfolio")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, quantity, average_cost, current_price, market_value, unrealized_gain_loss, updated_at
		FROM holdings WHERE portfolio_id = ?
		ORDER BY symbol ASC
	`, id)
	if err != nil {
		return nil, dbError(err, "failed to query holdings")
	}
	defer rows.Close()

	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		p.Holdings[h.Symbol] = h
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating holdings")
	}

	return &p, nil
}

// ListPortfolios returns all portfolio ids in order.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM portfolios ORDER BY id ASC`)
	if err != nil {
		return nil, dbError(err, "failed to query portfolios")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err, "failed to scan portfolio id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SavePortfolio overwrites an existing portfolio's totals and holdings. It
// is used for revaluation; fills go through ApplyExecution.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, p models.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := updatePortfolio(ctx, tx, p, s.now()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE portfolio_id = ?`, p.ID); err != nil {
		return dbError(err, "failed to clear holdings")
	}
	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]
		if h.Quantity.IsZero() {
			continue
		}
		if err := upsertHolding(ctx, tx, p.ID, h); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError(err, "failed to commit transaction")
	}
	return nil
}

// ============================================================================
// Holding Methods
// ============================================================================

// GetHolding returns the holding for symbol, or nil when none is held.
func (s *SQLiteStore) GetHolding(ctx context.Context, portfolioID, symbol string) (*models.Holding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, quantity, average_cost, current_price, market_value, unrealized_gain_loss, updated_at
		FROM holdings WHERE portfolio_id = ? AND symbol = ?
	`, portfolioID, symbol)

	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ============================================================================
// Execution Methods
// ============================================================================

// ApplyExecution persists the portfolio and holding produced by applying
// result, and marks result.ID as applied, in one transaction. A second call
// with the same execution id returns ErrDuplicateExecution and writes nothing.
// A holding with zero quantity is deleted.
func (s *SQLiteStore) ApplyExecution(ctx context.Context, p models.Portfolio, holding *models.Holding, result models.ExecutionResult) error {
	if result.ID == "" {
		return fmt.Errorf("%w: execution id is required", apperrors.ErrInvalidOrder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO applied_executions (execution_id, portfolio_id, applied_at)
		VALUES (?, ?, ?)
	`, result.ID, p.ID, now)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateExecution, result.ID)
		}
		return dbError(err, "failed to record execution")
	}

	if err := updatePortfolio(ctx, tx, p, now); err != nil {
		return err
	}

	if holding != nil {
		if holding.Quantity.IsZero() {
			_, err = tx.ExecContext(ctx, `DELETE FROM holdings WHERE portfolio_id = ? AND symbol = ?`, p.ID, holding.Symbol)
			if err != nil {
				return dbError(err, "failed to delete holding")
			}
		} else if err := upsertHolding(ctx, tx, p.ID, *holding); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError(err, "failed to commit transaction")
	}
	return nil
}

// IsApplied reports whether an execution id has been applied.
func (s *SQLiteStore) IsApplied(ctx context.Context, executionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applied_executions WHERE execution_id = ?
	`, executionID).Scan(&n)
	if err != nil {
		return false, dbError(err, "failed to check execution")
	}
	return n > 0, nil
}

// LogExecution appends a result to the execution log. Logging the same id
// again replaces the earlier entry.
func (s *SQLiteStore) LogExecution(ctx context.Context, portfolioID string, r models.ExecutionResult) error {
	var fillQuality sql.NullString
	if r.FillQuality != nil {
		fillQuality = sql.NullString{String: string(*r.FillQuality), Valid: true}
	}
	var execTime sql.NullTime
	if r.ExecutionTime != nil {
		execTime = sql.NullTime{Time: r.ExecutionTime.UTC(), Valid: true}
	}
	price := decimal.NullDecimal{}
	if r.ExecutionPrice != nil {
		price = decimal.NewNullDecimal(*r.ExecutionPrice)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO executions (id, portfolio_id, order_id, symbol, side, order_type, status, execution_price, filled_quantity, remaining_quantity, commission, fees, slippage_bps, fill_quality, execution_time, latency_ns, notes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, portfolioID, r.OrderID, r.Symbol, string(r.Side), string(r.Type), string(r.Status), price, r.FilledQuantity, r.RemainingQuantity, r.Commission, r.Fees, r.SlippageBps, fillQuality, execTime, r.Latency.Nanoseconds(), r.Notes, s.now())
	if err != nil {
		return dbError(err, "failed to log execution")
	}
	return nil
}

// GetExecutions retrieves logged executions, newest first.
func (s *SQLiteStore) GetExecutions(ctx context.Context, filter ExecutionFilter) ([]ExecutionRecord, error) {
	query := `SELECT e.id, e.portfolio_id, e.order_id, e.symbol, e.side, e.order_type, e.status, e.execution_price, e.filled_quantity, e.remaining_quantity, e.commission, e.fees, e.slippage_bps, e.fill_quality, e.execution_time, e.latency_ns, e.notes, e.recorded_at, a.execution_id IS NOT NULL
		FROM executions e LEFT JOIN applied_executions a ON a.execution_id = e.id
		WHERE 1=1`
	args := []interface{}{}

	if filter.PortfolioID != "" {
		query += " AND e.portfolio_id = ?"
		args = append(args, filter.PortfolioID)
	}
	if filter.Symbol != "" {
		query += " AND e.symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		query += " AND e.status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.StartDate.IsZero() {
		query += " AND e.recorded_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND e.recorded_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY e.recorded_at DESC, e.rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to query executions")
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var (
			rec         ExecutionRecord
			r           = &rec.Result
			orderID     sql.NullString
			side        string
			orderType   string
			status      string
			price       decimal.NullDecimal
			fillQuality sql.NullString
			execTime    sql.NullTime
			latencyNs   sql.NullInt64
			notes       sql.NullString
		)
		if err := rows.Scan(&r.ID, &rec.PortfolioID, &orderID, &r.Symbol, &side, &orderType, &status, &price,
			&r.FilledQuantity, &r.RemainingQuantity, &r.Commission, &r.Fees, &r.SlippageBps,
			&fillQuality, &execTime, &latencyNs, &notes, &rec.RecordedAt, &rec.Applied); err != nil {
			return nil, dbError(err, "failed to scan execution")
		}

		r.OrderID = orderID.String
		r.Side = models.OrderSide(side)
		r.Type = models.OrderType(orderType)
		r.Status = models.ExecutionStatus(status)
		if price.Valid {
			p := price.Decimal
			r.ExecutionPrice = &p
		}
		if fillQuality.Valid {
			q := models.FillQuality(fillQuality.String)
			r.FillQuality = &q
		}
		if execTime.Valid {
			t := execTime.Time
			r.ExecutionTime = &t
		}
		r.Latency = time.Duration(latencyNs.Int64)
		r.Notes = notes.String

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError(err, "error iterating executions")
	}

	return records, nil
}

// ============================================================================
// Helpers
// ============================================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (models.Holding, error) {
	var h models.Holding
	err := row.Scan(&h.Symbol, &h.Quantity, &h.AverageCost, &h.CurrentPrice, &h.MarketValue, &h.UnrealizedGainLoss, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return h, err
	}
	if err != nil {
		return h, dbError(err, "failed to scan holding")
	}
	return h, nil
}

func updatePortfolio(ctx context.Context, tx *sql.Tx, p models.Portfolio, now time.Time) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE portfolios SET cash_balance = ?, total_value = ?, invested_amount = ?, updated_at = ?
		WHERE id = ?
	`, p.CashBalance, p.TotalValue, p.InvestedAmount, updatedAt, p.ID)
	if err != nil {
		return dbError(err, "failed to update portfolio")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to update portfolio")
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrPortfolioNotFound, p.ID)
	}
	return nil
}

func upsertHolding(ctx context.Context, tx *sql.Tx, portfolioID string, h models.Holding) error {
	updatedAt := h.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO holdings (portfolio_id, symbol, quantity, average_cost, current_price, market_value, unrealized_gain_loss, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, portfolioID, h.Symbol, h.Quantity, h.AverageCost, h.CurrentPrice, h.MarketValue, h.UnrealizedGainLoss, updatedAt)
	if err != nil {
		return dbError(err, "failed to save holding %s", h.Symbol)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// dbError marks a driver failure as ErrDatabaseError, keeping the cause.
func dbError(err error, format string, args ...interface{}) error {
	return apperrors.Wrapf(fmt.Errorf("%w: %w", apperrors.ErrDatabaseError, err), format, args...)
}
