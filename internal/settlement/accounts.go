package settlement

import (
	"fmt"
	"unicode/utf8"

	"github.com/atmx/bond-market/internal/address"
)

const (
	// MaxIssuerNameLen bounds the issuer name, which doubles as a seed.
	MaxIssuerNameLen = address.MaxSeedLength

	// MaxCouponRateBps is 100%.
	MaxCouponRateBps = 10_000

	// BondDecimals is the precision of every bond mint.
	BondDecimals = 6
)

// DefaultProgramID namespaces market addresses unless configured otherwise.
var DefaultProgramID = address.Namespace("bond-market/settlement")

var (
	seedMarket     = []byte("market")
	seedAuthority  = []byte("authority")
	seedBondMint   = []byte("bond_mint")
	seedBondVault  = []byte("bond_vault")
	seedQuoteVault = []byte("quote_vault")
)

// MarketAddresses lists every account a market owns. All of them follow
// from the issuer name and the program, so no index is needed to find them.
type MarketAddresses struct {
	Market        address.ID `json:"market"`
	MarketBump    uint8      `json:"market_bump"`
	Authority     address.ID `json:"authority"`
	AuthorityBump uint8      `json:"authority_bump"`
	BondMint      address.ID `json:"bond_mint"`
	VaultBond     address.ID `json:"vault_bond"`
	VaultQuote    address.ID `json:"vault_quote"`
}

// DeriveMarket computes the market id from ("market", issuerName) and the
// remaining accounts from the market id.
func DeriveMarket(program address.ID, issuerName string) (MarketAddresses, error) {
	if err := validateIssuerName("derive", issuerName); err != nil {
		return MarketAddresses{}, err
	}
	market, bump, err := address.FindProgramAddress([][]byte{seedMarket, []byte(issuerName)}, program)
	if err != nil {
		return MarketAddresses{}, fmt.Errorf("derive market: %w", err)
	}
	addrs, err := DeriveMarketResources(program, market)
	if err != nil {
		return MarketAddresses{}, err
	}
	addrs.MarketBump = bump
	return addrs, nil
}

// DeriveMarketResources computes the authority, bond mint and vaults of an
// existing market id.
func DeriveMarketResources(program, market address.ID) (MarketAddresses, error) {
	addrs := MarketAddresses{Market: market}

	var err error
	if addrs.Authority, addrs.AuthorityBump, err = address.FindProgramAddress([][]byte{seedAuthority, market[:]}, program); err != nil {
		return MarketAddresses{}, fmt.Errorf("derive authority: %w", err)
	}
	if addrs.BondMint, _, err = address.FindProgramAddress([][]byte{seedBondMint, market[:]}, program); err != nil {
		return MarketAddresses{}, fmt.Errorf("derive bond mint: %w", err)
	}
	if addrs.VaultBond, _, err = address.FindProgramAddress([][]byte{seedBondVault, market[:]}, program); err != nil {
		return MarketAddresses{}, fmt.Errorf("derive bond vault: %w", err)
	}
	if addrs.VaultQuote, _, err = address.FindProgramAddress([][]byte{seedQuoteVault, market[:]}, program); err != nil {
		return MarketAddresses{}, fmt.Errorf("derive quote vault: %w", err)
	}
	return addrs, nil
}

func validateIssuerName(op, name string) error {
	if name == "" {
		return fail(op, KindInvalidArgument, "issuer name is required")
	}
	if len(name) > MaxIssuerNameLen {
		return fail(op, KindInvalidArgument, "issuer name is %d bytes, max %d", len(name), MaxIssuerNameLen)
	}
	if !utf8.ValidString(name) {
		return fail(op, KindInvalidArgument, "issuer name is not valid UTF-8")
	}
	return nil
}

// Account bindings, one struct per operation. The first field is always the
// principal expected to sign.

type CreateMarketAccounts struct {
	Admin     address.ID `json:"admin"`
	Market    address.ID `json:"market"`
	Authority address.ID `json:"authority"`
	BondMint  address.ID `json:"bond_mint"`
	QuoteMint address.ID `json:"quote_mint"`
}

type CreateMarketArgs struct {
	IssuerName        string     `json:"issuer_name"`
	MaturityTimestamp int64      `json:"maturity_timestamp"`
	CouponRateBps     uint16     `json:"coupon_rate_bps"`
	QuoteMint         address.ID `json:"quote_mint"`
}

type InitializeMarketAccounts struct {
	Admin      address.ID `json:"admin"`
	Market     address.ID `json:"market"`
	BondMint   address.ID `json:"bond_mint"`
	QuoteMint  address.ID `json:"quote_mint"`
	VaultBond  address.ID `json:"vault_bond"`
	VaultQuote address.ID `json:"vault_quote"`
}

type IssueBondsAccounts struct {
	Admin     address.ID `json:"admin"`
	Market    address.ID `json:"market"`
	BondMint  address.ID `json:"bond_mint"`
	VaultBond address.ID `json:"vault_bond"`
}

type SetPausedAccounts struct {
	Admin  address.ID `json:"admin"`
	Market address.ID `json:"market"`
}

type BuyAccounts struct {
	Buyer      address.ID `json:"buyer"`
	Market     address.ID `json:"market"`
	BuyerQuote address.ID `json:"buyer_quote"`
	BuyerBond  address.ID `json:"buyer_bond"`
	VaultQuote address.ID `json:"vault_quote"`
	VaultBond  address.ID `json:"vault_bond"`
}

type SellAccounts struct {
	Seller      address.ID `json:"seller"`
	Market      address.ID `json:"market"`
	SellerBond  address.ID `json:"seller_bond"`
	SellerQuote address.ID `json:"seller_quote"`
	VaultBond   address.ID `json:"vault_bond"`
	VaultQuote  address.ID `json:"vault_quote"`
}
