// Package store defines the persistence interface for the settlement read
// model. Implementations include PostgreSQL, Redis (read-through cache) and
// in-memory (for testing and single-node development).
package store

import (
	"context"
	"errors"

	"github.com/atmx/bond-market/internal/model"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: already exists")
)

// Store is the read-model persistence interface. The ledger remains the
// source of truth; everything here can be rebuilt by replaying receipts.
type Store interface {
	// --- Markets ---

	// CreateMarket persists a new market. Returns ErrConflict if the id
	// is already present.
	CreateMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its base-58 id.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarketState overwrites the fields that change after creation:
	// price, status and the settlement counters.
	UpdateMarketState(ctx context.Context, market *model.Market) error

	// --- Immutable trade log ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, trade *model.Trade) error

	// GetTradesByMarket returns all trades for a market, oldest first.
	GetTradesByMarket(ctx context.Context, marketID string) ([]model.Trade, error)

	// GetTradesByTrader returns all trades by one counterparty.
	GetTradesByTrader(ctx context.Context, trader string) ([]model.Trade, error)
}
