package ledger

import (
	"fmt"

	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
)

func executeToken(ov *overlay, signers settlement.Signers, ix *Instruction) error {
	switch ix.Kind {
	case KindCreateMint:
		acc, err := ix.accounts(2)
		if err != nil {
			return err
		}
		mint, authority := acc[0], acc[1]
		d := decoder{buf: ix.Data}
		decimals := d.u8()
		if err := d.finish(); err != nil {
			return err
		}
		if !signers.Has(mint) {
			return fmt.Errorf("%w: mint %s", ErrUnauthorized, mint)
		}
		if ov.Exists(mint) {
			return fmt.Errorf("%w: %s", ErrAccountInUse, mint)
		}
		ov.PutMint(&token.Mint{ID: mint, Authority: authority, Decimals: decimals})
		return nil

	case KindCreateAccount:
		acc, err := ix.accounts(3)
		if err != nil {
			return err
		}
		account, owner, mint := acc[0], acc[1], acc[2]
		if _, ok := ov.Mint(mint); !ok {
			return fmt.Errorf("%w: mint %s", ErrAccountNotFound, mint)
		}
		want, err := token.AssociatedAddress(owner, mint)
		if err != nil {
			return err
		}
		if account != want {
			return fmt.Errorf("%w: %s, expected %s", ErrAddressMismatch, account, want)
		}
		if ov.Exists(account) {
			return fmt.Errorf("%w: %s", ErrAccountInUse, account)
		}
		ov.PutTokenAccount(&token.Account{ID: account, Mint: mint, Owner: owner})
		return nil

	case KindMintTo:
		acc, err := ix.accounts(3)
		if err != nil {
			return err
		}
		amount, err := ix.decodeAmount()
		if err != nil {
			return err
		}
		mint, ok := ov.Mint(acc[0])
		if !ok {
			return fmt.Errorf("%w: mint %s", ErrAccountNotFound, acc[0])
		}
		if mint.Authority != acc[2] || !signers.Has(acc[2]) {
			return fmt.Errorf("%w: mint authority of %s", ErrUnauthorized, mint.ID)
		}
		dest, ok := ov.TokenAccount(acc[1])
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, acc[1])
		}
		if err := token.MintTo(mint, dest, amount); err != nil {
			return err
		}
		ov.PutMint(mint)
		ov.PutTokenAccount(dest)
		return nil

	case KindTransfer:
		acc, err := ix.accounts(3)
		if err != nil {
			return err
		}
		amount, err := ix.decodeAmount()
		if err != nil {
			return err
		}
		src, ok := ov.TokenAccount(acc[0])
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, acc[0])
		}
		dst, ok := ov.TokenAccount(acc[1])
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, acc[1])
		}
		if src.Owner != acc[2] || !signers.Has(acc[2]) {
			return fmt.Errorf("%w: owner of %s", ErrUnauthorized, src.ID)
		}
		if err := token.Transfer(src, dst, amount); err != nil {
			return err
		}
		ov.PutTokenAccount(src)
		ov.PutTokenAccount(dst)
		return nil

	default:
		return fmt.Errorf("%w: token program has no %q", ErrUnknownInstruction, ix.Kind)
	}
}
