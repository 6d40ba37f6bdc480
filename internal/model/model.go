// Package model defines the read-model types served by the REST API.
// Token amounts are integers in smallest units; UI values derived from them
// use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market statuses.
const (
	StatusUninitialized = "uninitialized"
	StatusInitialized   = "initialized"
	StatusPaused        = "paused"
)

// Market mirrors one settlement market. The ledger is the source of truth;
// the projector updates this row from committed receipts in slot order.
type Market struct {
	ID                   string          `json:"id" db:"id"` // base-58 market address
	IssuerName           string          `json:"issuer_name" db:"issuer_name"`
	Admin                string          `json:"admin" db:"admin"`
	BondMint             string          `json:"bond_mint" db:"bond_mint"`
	QuoteMint            string          `json:"quote_mint" db:"quote_mint"`
	QuoteDecimals        uint8           `json:"quote_decimals" db:"quote_decimals"`
	CouponRateBps        uint16          `json:"coupon_rate_bps" db:"coupon_rate_bps"`
	CouponRate           decimal.Decimal `json:"coupon_rate" db:"coupon_rate"` // percent
	Maturity             time.Time       `json:"maturity" db:"maturity"`
	PricePerToken        uint64          `json:"price_per_token" db:"price_per_token"`
	Price                decimal.Decimal `json:"price" db:"price"` // quote UI units per bond
	Status               string          `json:"status" db:"status"`
	BondsIssued          uint64          `json:"bonds_issued" db:"bonds_issued"`
	BondsBought          uint64          `json:"bonds_bought" db:"bonds_bought"`
	BondsSold            uint64          `json:"bonds_sold" db:"bonds_sold"`
	TransactionSignature string          `json:"transaction_signature" db:"transaction_signature"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}

// Trade is an immutable record of one settled buy or sell.
// Once created, these are never modified or deleted.
type Trade struct {
	ID            string          `json:"id" db:"id"`
	MarketID      string          `json:"market_id" db:"market_id"`
	Trader        string          `json:"trader" db:"trader"`
	Side          string          `json:"side" db:"side"` // "buy" or "sell"
	Amount        uint64          `json:"amount" db:"amount"`
	PricePerToken uint64          `json:"price_per_token" db:"price_per_token"`
	Cost          uint64          `json:"cost" db:"cost"`
	Notional      decimal.Decimal `json:"notional" db:"notional"` // cost in quote UI units
	Signature     string          `json:"signature" db:"signature"`
	Slot          uint64          `json:"slot" db:"slot"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}
