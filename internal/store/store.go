// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"paper-trader/internal/models"
)

// DataStore defines the persistence boundary for portfolios, holdings and
// execution history.
type DataStore interface {
	// Portfolios
	CreatePortfolio(ctx context.Context, portfolio models.Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]string, error)
	SavePortfolio(ctx context.Context, portfolio models.Portfolio) error

	// Holdings
	GetHolding(ctx context.Context, portfolioID, symbol string) (*models.Holding, error)

	// Executions
	ApplyExecution(ctx context.Context, portfolio models.Portfolio, holding *models.Holding, result models.ExecutionResult) error
	IsApplied(ctx context.Context, executionID string) (bool, error)
	LogExecution(ctx context.Context, portfolioID string, result models.ExecutionResult) error
	GetExecutions(ctx context.Context, filter ExecutionFilter) ([]ExecutionRecord, error)

	// Lifecycle
	Close() error
}

// ExecutionFilter represents filters for querying execution history.
type ExecutionFilter struct {
	PortfolioID string
	Symbol      string
	Status      models.ExecutionStatus
	StartDate   time.Time
	EndDate     time.Time
	Limit       int
}

// ExecutionRecord is a logged execution result.
type ExecutionRecord struct {
	PortfolioID string
	Result      models.ExecutionResult
	RecordedAt  time.Time
	Applied     bool
}
