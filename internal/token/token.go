// Package token models fungible token mints and the accounts that hold
// balances of them, along with the transfer primitives used for custody
// vaults and counterparties.
//
// Primitives only mutate the values they are handed and validate everything
// before touching either side, so a failed call leaves both untouched. The
// caller decides when (and whether) the result is persisted.
package token

import (
	"errors"
	"fmt"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/num"
)

var (
	// ProgramID owns every mint and token account.
	ProgramID = address.Namespace("bond-market/token")

	// AssociatedProgramID namespaces the canonical per-owner token account.
	AssociatedProgramID = address.Namespace("bond-market/associated-token")
)

var (
	ErrMintMismatch      = errors.New("token: account belongs to a different mint")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrOverflow          = errors.New("token: amount overflow")
	ErrSameAccount       = errors.New("token: source and destination are the same account")
)

// Mint describes one token kind.
type Mint struct {
	ID        address.ID `json:"id"`
	Authority address.ID `json:"authority"`
	Decimals  uint8      `json:"decimals"`
	Supply    uint64     `json:"supply"`
}

// Account holds a balance of a single mint on behalf of Owner.
type Account struct {
	ID     address.ID `json:"id"`
	Mint   address.ID `json:"mint"`
	Owner  address.ID `json:"owner"`
	Amount uint64     `json:"amount"`
}

// Transfer moves amount from one account to another of the same mint.
func Transfer(from, to *Account, amount uint64) error {
	if from.ID == to.ID {
		return ErrSameAccount
	}
	if from.Mint != to.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, from.Mint, to.Mint)
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, from.Amount, amount)
	}
	credited, err := num.AddU64(to.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, to.ID)
	}

	from.Amount -= amount
	to.Amount = credited
	return nil
}

// MintTo creates amount new tokens in the destination account.
// Authority checks are the caller's responsibility.
func MintTo(m *Mint, to *Account, amount uint64) error {
	if to.Mint != m.ID {
		return fmt.Errorf("%w: %s is not %s", ErrMintMismatch, to.Mint, m.ID)
	}
	supply, err := num.AddU64(m.Supply, amount)
	if err != nil {
		return fmt.Errorf("%w: supply of %s", ErrOverflow, m.ID)
	}
	balance, err := num.AddU64(to.Amount, amount)
	if err != nil {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, to.ID)
	}

	m.Supply = supply
	to.Amount = balance
	return nil
}

// AssociatedAddress returns the canonical token account of owner for mint.
func AssociatedAddress(owner, mint address.ID) (address.ID, error) {
	id, _, err := address.FindProgramAddress(
		[][]byte{owner[:], ProgramID[:], mint[:]},
		AssociatedProgramID,
	)
	if err != nil {
		return address.Zero, fmt.Errorf("token: associated address: %w", err)
	}
	return id, nil
}
