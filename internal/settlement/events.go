package settlement

import "github.com/atmx/bond-market/internal/address"

// Event is emitted by a successful operation and delivered with the
// ledger receipt once the transaction commits.
type Event interface {
	EventName() string
}

// Side of a trade from the counterparty's point of view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type MarketCreated struct {
	Market            address.ID `json:"market"`
	Admin             address.ID `json:"admin"`
	IssuerName        string     `json:"issuer_name"`
	BondMint          address.ID `json:"bond_mint"`
	QuoteMint         address.ID `json:"quote_mint"`
	QuoteDecimals     uint8      `json:"quote_decimals"`
	MaturityTimestamp int64      `json:"maturity_timestamp"`
	CouponRateBps     uint16     `json:"coupon_rate_bps"`
}

type MarketInitialized struct {
	Market        address.ID `json:"market"`
	PricePerToken uint64     `json:"price_per_token"`
	VaultBond     address.ID `json:"vault_bond"`
	VaultQuote    address.ID `json:"vault_quote"`
}

type BondsIssued struct {
	Market      address.ID `json:"market"`
	Amount      uint64     `json:"amount"`
	TotalIssued uint64     `json:"total_issued"`
}

type MarketPauseChanged struct {
	Market address.ID `json:"market"`
	Paused bool       `json:"paused"`
}

// TradeEvent records one settled buy or sell. BondsBought and BondsSold
// are the market's running totals after the trade.
type TradeEvent struct {
	Market        address.ID `json:"market"`
	Trader        address.ID `json:"trader"`
	Side          Side       `json:"side"`
	Amount        uint64     `json:"amount"`
	PricePerToken uint64     `json:"price_per_token"`
	Cost          uint64     `json:"cost"`
	BondsBought   uint64     `json:"bonds_bought"`
	BondsSold     uint64     `json:"bonds_sold"`
}

func (MarketCreated) EventName() string      { return "market_created" }
func (MarketInitialized) EventName() string  { return "market_initialized" }
func (BondsIssued) EventName() string        { return "bonds_issued" }
func (MarketPauseChanged) EventName() string { return "market_pause_changed" }
func (TradeEvent) EventName() string         { return "trade" }
