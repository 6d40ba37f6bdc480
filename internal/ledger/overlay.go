package ledger

import (
	"time"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
)

// overlay buffers one transaction's writes on top of committed state.
// Reads see the transaction's own writes first. Nothing reaches the ledger
// until commit.
type overlay struct {
	base     *Ledger
	now      time.Time
	markets  map[address.ID]settlement.Market
	mints    map[address.ID]token.Mint
	accounts map[address.ID]token.Account
}

var _ settlement.Store = (*overlay)(nil)

func newOverlay(base *Ledger, now time.Time) *overlay {
	return &overlay{
		base:     base,
		now:      now,
		markets:  make(map[address.ID]settlement.Market),
		mints:    make(map[address.ID]token.Mint),
		accounts: make(map[address.ID]token.Account),
	}
}

func (o *overlay) Now() time.Time { return o.now }

func (o *overlay) Exists(id address.ID) bool {
	if _, ok := o.markets[id]; ok {
		return true
	}
	if _, ok := o.mints[id]; ok {
		return true
	}
	if _, ok := o.accounts[id]; ok {
		return true
	}
	return o.base.exists(id)
}

func (o *overlay) Market(id address.ID) (*settlement.Market, bool) {
	m, ok := o.markets[id]
	if !ok {
		m, ok = o.base.markets[id]
	}
	return &m, ok
}

func (o *overlay) PutMarket(m *settlement.Market) { o.markets[m.ID] = *m }

func (o *overlay) Mint(id address.ID) (*token.Mint, bool) {
	m, ok := o.mints[id]
	if !ok {
		m, ok = o.base.mints[id]
	}
	return &m, ok
}

func (o *overlay) PutMint(m *token.Mint) { o.mints[m.ID] = *m }

func (o *overlay) TokenAccount(id address.ID) (*token.Account, bool) {
	a, ok := o.accounts[id]
	if !ok {
		a, ok = o.base.accounts[id]
	}
	return &a, ok
}

func (o *overlay) PutTokenAccount(a *token.Account) { o.accounts[a.ID] = *a }

// commit applies every buffered write. The caller holds the ledger lock.
func (o *overlay) commit() {
	for id, m := range o.markets {
		o.base.markets[id] = m
	}
	for id, m := range o.mints {
		o.base.mints[id] = m
	}
	for id, a := range o.accounts {
		o.base.accounts[id] = a
	}
}
