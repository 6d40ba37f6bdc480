package settlement

import (
	"fmt"

	"github.com/atmx/bond-market/internal/address"
)

// State is a market's lifecycle position. A market that has not been
// created has no record at all.
type State uint8

const (
	StateUninitialized State = iota + 1
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "uninitialized":
		*s = StateUninitialized
	case "initialized":
		*s = StateInitialized
	default:
		return fmt.Errorf("settlement: unknown market state %q", text)
	}
	return nil
}

// Market is the durable record of one bond market. Identity fields are
// written once by CreateMarket; price and vaults once by InitializeMarket.
// Only the pause flag and the settlement counters change afterwards.
type Market struct {
	ID            address.ID `json:"id"`
	Bump          uint8      `json:"bump"`
	Admin         address.ID `json:"admin"`
	Authority     address.ID `json:"authority"`
	AuthorityBump uint8      `json:"authority_bump"`

	IssuerName        string     `json:"issuer_name"`
	BondMint          address.ID `json:"bond_mint"`
	QuoteMint         address.ID `json:"quote_mint"`
	MaturityTimestamp int64      `json:"maturity_timestamp"`
	CouponRateBps     uint16     `json:"coupon_rate_bps"`

	PricePerToken uint64     `json:"price_per_token"`
	VaultBond     address.ID `json:"vault_bond"`
	VaultQuote    address.ID `json:"vault_quote"`

	State  State `json:"state"`
	Paused bool  `json:"paused"`

	// Settlement counters. BondsBought/QuoteReceived flow vault-ward on
	// buys; BondsSold/QuotePaid on sells.
	BondsIssued   uint64 `json:"bonds_issued"`
	BondsBought   uint64 `json:"bonds_bought"`
	BondsSold     uint64 `json:"bonds_sold"`
	QuoteReceived uint64 `json:"quote_received"`
	QuotePaid     uint64 `json:"quote_paid"`
}

// ExpectedVaultBond is the bond vault balance implied by the counters:
// issued, minus what buyers took out, plus what sellers brought back.
func (m *Market) ExpectedVaultBond() uint64 {
	return m.BondsIssued - m.BondsBought + m.BondsSold
}
