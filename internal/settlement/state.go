package settlement

import (
	"time"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/token"
)

// Store is the engine's view of ledger state for a single transaction.
// Getters return copies; nothing is visible to others until the ledger
// commits the whole transaction.
type Store interface {
	Now() time.Time
	Exists(id address.ID) bool

	Market(id address.ID) (*Market, bool)
	PutMarket(m *Market)

	Mint(id address.ID) (*token.Mint, bool)
	PutMint(m *token.Mint)

	TokenAccount(id address.ID) (*token.Account, bool)
	PutTokenAccount(a *token.Account)
}
