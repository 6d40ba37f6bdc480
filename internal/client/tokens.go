package client

import (
	"context"
	"fmt"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
	"github.com/atmx/bond-market/internal/wallet"
)

// CreateMint registers mint with authority as its mint authority. Both
// keys sign.
func (c *Client) CreateMint(ctx context.Context, authority, mint *wallet.Keypair, decimals uint8) (*ledger.Receipt, error) {
	r, err := c.submit(ctx, []*wallet.Keypair{authority, mint},
		ledger.CreateMint(mint.Public(), authority.Public(), decimals))
	if err != nil {
		return nil, fmt.Errorf("create mint %s: %w", mint.Public(), err)
	}
	return r, nil
}

// CreateTokenAccount opens owner's associated account for mint and returns
// its id. An existing account is returned as is.
func (c *Client) CreateTokenAccount(ctx context.Context, owner *wallet.Keypair, mint address.ID) (address.ID, error) {
	id, ixs, err := c.ensureAccount(ctx, owner.Public(), mint)
	if err != nil {
		return address.Zero, err
	}
	if len(ixs) == 0 {
		return id, nil
	}
	if _, err := c.submit(ctx, []*wallet.Keypair{owner}, ixs...); err != nil {
		return address.Zero, fmt.Errorf("create token account for %s: %w", owner.Public(), err)
	}
	return id, nil
}

// MintTo credits amount new tokens to owner's associated account, which
// must exist.
func (c *Client) MintTo(ctx context.Context, authority *wallet.Keypair, mint, owner address.ID, amount uint64) (*ledger.Receipt, error) {
	dest, err := token.AssociatedAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	r, err := c.submit(ctx, []*wallet.Keypair{authority},
		ledger.MintTo(mint, dest, authority.Public(), amount))
	if err != nil {
		return nil, fmt.Errorf("mint %d to %s: %w", amount, owner, err)
	}
	return r, nil
}

// Transfer moves amount of mint from owner's associated account to
// recipient's.
func (c *Client) Transfer(ctx context.Context, owner *wallet.Keypair, mint, recipient address.ID, amount uint64) (*ledger.Receipt, error) {
	src, err := token.AssociatedAddress(owner.Public(), mint)
	if err != nil {
		return nil, err
	}
	dst, err := token.AssociatedAddress(recipient, mint)
	if err != nil {
		return nil, err
	}
	r, err := c.submit(ctx, []*wallet.Keypair{owner},
		ledger.Transfer(src, dst, owner.Public(), amount))
	if err != nil {
		return nil, fmt.Errorf("transfer %d to %s: %w", amount, recipient, err)
	}
	return r, nil
}

// Market reads a market record.
func (c *Client) Market(ctx context.Context, id address.ID) (*settlement.Market, error) {
	info, err := c.sub.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.Market == nil {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotMarket, id, info.Type)
	}
	return info.Market, nil
}

// Mint reads a mint.
func (c *Client) Mint(ctx context.Context, id address.ID) (*token.Mint, error) {
	info, err := c.sub.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.Mint == nil {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotMint, id, info.Type)
	}
	return info.Mint, nil
}

// TokenAccount reads a token account.
func (c *Client) TokenAccount(ctx context.Context, id address.ID) (*token.Account, error) {
	info, err := c.sub.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if info.TokenAccount == nil {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotTokenAccount, id, info.Type)
	}
	return info.TokenAccount, nil
}
