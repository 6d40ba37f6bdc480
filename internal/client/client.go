// Package client assembles, signs and submits settlement transactions.
//
// A Client is built with the administrator identity it acts for; trader
// identities are passed to each call. Account bindings are always derived,
// never taken from the caller, so a request can only name the market's own
// vaults and the trader's own token accounts.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
	"github.com/atmx/bond-market/internal/wallet"
)

var (
	ErrNotMarket       = errors.New("client: account is not a market")
	ErrNotMint         = errors.New("client: account is not a mint")
	ErrNotTokenAccount = errors.New("client: account is not a token account")
)

// Submitter executes signed transactions and reads accounts. *ledger.Ledger
// satisfies it directly; HTTPSubmitter reaches a remote server.
type Submitter interface {
	Submit(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error)
	Account(ctx context.Context, id address.ID) (*ledger.AccountInfo, error)
}

// Client talks to one settlement program on behalf of one administrator.
type Client struct {
	sub     Submitter
	program address.ID
	admin   *wallet.Keypair
	nonce   atomic.Uint64
}

// New returns a Client. admin may be nil for trader-only use; admin
// operations then fail.
func New(sub Submitter, program address.ID, admin *wallet.Keypair) *Client {
	if program.IsZero() {
		program = settlement.DefaultProgramID
	}
	c := &Client{sub: sub, program: program, admin: admin}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c
}

// Program returns the settlement program id markets are derived under.
func (c *Client) Program() address.ID { return c.program }

// Admin returns the administrator identity, or the zero id if none is set.
func (c *Client) Admin() address.ID {
	if c.admin == nil {
		return address.Zero
	}
	return c.admin.Public()
}

var errNoAdmin = errors.New("client: no admin identity configured")

func (c *Client) submit(ctx context.Context, keys []*wallet.Keypair, ixs ...Instruction) (*ledger.Receipt, error) {
	tx := ledger.NewTransaction(c.nonce.Add(1), ixs...)
	tx.Sign(keys...)
	return c.sub.Submit(ctx, tx)
}

// Instruction is re-exported so callers of this package need not import
// ledger to batch calls.
type Instruction = ledger.Instruction

// MarketCreation is the result of CreateMarket.
type MarketCreation struct {
	MarketID  address.ID      `json:"market"`
	BondMint  address.ID      `json:"bond_mint"`
	Authority address.ID      `json:"authority"`
	Signature string          `json:"transaction_signature"`
	Receipt   *ledger.Receipt `json:"-"`
}

// CreateMarketParams are the caller-supplied fields of a new market.
type CreateMarketParams struct {
	IssuerName        string
	MaturityTimestamp int64
	CouponRateBps     uint16
	QuoteMint         address.ID
}

// CreateMarket derives the market's addresses from the issuer name and
// creates it, signed by the admin.
func (c *Client) CreateMarket(ctx context.Context, p CreateMarketParams) (*MarketCreation, error) {
	if c.admin == nil {
		return nil, errNoAdmin
	}
	addrs, err := settlement.DeriveMarket(c.program, p.IssuerName)
	if err != nil {
		return nil, err
	}
	ix := ledger.CreateMarket(c.program, settlement.CreateMarketAccounts{
		Admin:     c.admin.Public(),
		Market:    addrs.Market,
		Authority: addrs.Authority,
		BondMint:  addrs.BondMint,
		QuoteMint: p.QuoteMint,
	}, settlement.CreateMarketArgs{
		IssuerName:        p.IssuerName,
		MaturityTimestamp: p.MaturityTimestamp,
		CouponRateBps:     p.CouponRateBps,
		QuoteMint:         p.QuoteMint,
	})

	r, err := c.submit(ctx, []*wallet.Keypair{c.admin}, ix)
	if err != nil {
		return nil, fmt.Errorf("create market %q: %w", p.IssuerName, err)
	}
	return &MarketCreation{
		MarketID:  addrs.Market,
		BondMint:  addrs.BondMint,
		Authority: addrs.Authority,
		Signature: r.Signature,
		Receipt:   r,
	}, nil
}

// InitializeMarket sets the price of a created market and opens its vaults.
func (c *Client) InitializeMarket(ctx context.Context, market address.ID, price uint64) (*ledger.Receipt, error) {
	if c.admin == nil {
		return nil, errNoAdmin
	}
	m, err := c.Market(ctx, market)
	if err != nil {
		return nil, err
	}
	addrs, err := settlement.DeriveMarketResources(c.program, market)
	if err != nil {
		return nil, err
	}
	ix := ledger.InitializeMarket(c.program, settlement.InitializeMarketAccounts{
		Admin:      c.admin.Public(),
		Market:     market,
		BondMint:   addrs.BondMint,
		QuoteMint:  m.QuoteMint,
		VaultBond:  addrs.VaultBond,
		VaultQuote: addrs.VaultQuote,
	}, price)

	r, err := c.submit(ctx, []*wallet.Keypair{c.admin}, ix)
	if err != nil {
		return nil, fmt.Errorf("initialize market %s: %w", market, err)
	}
	return r, nil
}

// IssueBonds mints amount bonds into the market's bond vault.
func (c *Client) IssueBonds(ctx context.Context, market address.ID, amount uint64) (*ledger.Receipt, error) {
	if c.admin == nil {
		return nil, errNoAdmin
	}
	addrs, err := settlement.DeriveMarketResources(c.program, market)
	if err != nil {
		return nil, err
	}
	ix := ledger.IssueBonds(c.program, settlement.IssueBondsAccounts{
		Admin:     c.admin.Public(),
		Market:    market,
		BondMint:  addrs.BondMint,
		VaultBond: addrs.VaultBond,
	}, amount)

	r, err := c.submit(ctx, []*wallet.Keypair{c.admin}, ix)
	if err != nil {
		return nil, fmt.Errorf("issue bonds on %s: %w", market, err)
	}
	return r, nil
}

// SetPaused halts or resumes trading.
func (c *Client) SetPaused(ctx context.Context, market address.ID, paused bool) (*ledger.Receipt, error) {
	if c.admin == nil {
		return nil, errNoAdmin
	}
	ix := ledger.SetPaused(c.program, settlement.SetPausedAccounts{Admin: c.admin.Public(), Market: market}, paused)
	r, err := c.submit(ctx, []*wallet.Keypair{c.admin}, ix)
	if err != nil {
		return nil, fmt.Errorf("set paused on %s: %w", market, err)
	}
	return r, nil
}

// Buy purchases amount bonds for trader, opening the trader's bond account
// in the same transaction if needed.
func (c *Client) Buy(ctx context.Context, trader *wallet.Keypair, market address.ID, amount uint64) (*ledger.Receipt, error) {
	m, err := c.Market(ctx, market)
	if err != nil {
		return nil, err
	}
	owner := trader.Public()
	quote, err := token.AssociatedAddress(owner, m.QuoteMint)
	if err != nil {
		return nil, err
	}
	bond, ixs, err := c.ensureAccount(ctx, owner, m.BondMint)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ledger.Buy(c.program, settlement.BuyAccounts{
		Buyer:      owner,
		Market:     market,
		BuyerQuote: quote,
		BuyerBond:  bond,
		VaultQuote: m.VaultQuote,
		VaultBond:  m.VaultBond,
	}, amount))

	r, err := c.submit(ctx, []*wallet.Keypair{trader}, ixs...)
	if err != nil {
		return nil, fmt.Errorf("buy %d on %s: %w", amount, market, err)
	}
	return r, nil
}

// Sell sells amount bonds for trader, opening the trader's quote account in
// the same transaction if needed.
func (c *Client) Sell(ctx context.Context, trader *wallet.Keypair, market address.ID, amount uint64) (*ledger.Receipt, error) {
	m, err := c.Market(ctx, market)
	if err != nil {
		return nil, err
	}
	owner := trader.Public()
	bond, err := token.AssociatedAddress(owner, m.BondMint)
	if err != nil {
		return nil, err
	}
	quote, ixs, err := c.ensureAccount(ctx, owner, m.QuoteMint)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ledger.Sell(c.program, settlement.SellAccounts{
		Seller:      owner,
		Market:      market,
		SellerBond:  bond,
		SellerQuote: quote,
		VaultBond:   m.VaultBond,
		VaultQuote:  m.VaultQuote,
	}, amount))

	r, err := c.submit(ctx, []*wallet.Keypair{trader}, ixs...)
	if err != nil {
		return nil, fmt.Errorf("sell %d on %s: %w", amount, market, err)
	}
	return r, nil
}

// FundQuoteVault deposits quote tokens from funder's account into the
// market's quote vault so that sells can be paid out.
func (c *Client) FundQuoteVault(ctx context.Context, funder *wallet.Keypair, market address.ID, amount uint64) (*ledger.Receipt, error) {
	m, err := c.Market(ctx, market)
	if err != nil {
		return nil, err
	}
	if m.State != settlement.StateInitialized {
		return nil, fmt.Errorf("fund %s: %w", market, settlement.ErrNotInitialized)
	}
	src, err := token.AssociatedAddress(funder.Public(), m.QuoteMint)
	if err != nil {
		return nil, err
	}
	r, err := c.submit(ctx, []*wallet.Keypair{funder}, ledger.Transfer(src, m.VaultQuote, funder.Public(), amount))
	if err != nil {
		return nil, fmt.Errorf("fund %s: %w", market, err)
	}
	return r, nil
}

// ensureAccount returns owner's associated account for mint and, if it does
// not exist yet, the instruction that creates it.
func (c *Client) ensureAccount(ctx context.Context, owner, mint address.ID) (address.ID, []Instruction, error) {
	id, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return address.Zero, nil, err
	}
	_, err = c.sub.Account(ctx, id)
	switch {
	case err == nil:
		return id, nil, nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		return id, []Instruction{ledger.CreateAccount(id, owner, mint)}, nil
	default:
		return address.Zero, nil, err
	}
}
