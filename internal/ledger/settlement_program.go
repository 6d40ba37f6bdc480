package ledger

import (
	"fmt"

	"github.com/atmx/bond-market/internal/settlement"
)

// executeSettlement decodes a settlement instruction into its typed account
// struct and arguments and runs it on the engine.
func (l *Ledger) executeSettlement(ov *overlay, signers settlement.Signers, ix *Instruction) (settlement.Event, error) {
	switch ix.Kind {
	case KindCreateMarket:
		acc, err := ix.accounts(5)
		if err != nil {
			return nil, err
		}
		d := decoder{buf: ix.Data}
		args := settlement.CreateMarketArgs{
			IssuerName:        d.str(),
			MaturityTimestamp: d.i64(),
			CouponRateBps:     d.u16(),
		}
		copy(args.QuoteMint[:], d.take(32))
		if err := d.finish(); err != nil {
			return nil, err
		}
		return l.engine.CreateMarket(ov, signers, settlement.CreateMarketAccounts{
			Admin:     acc[0],
			Market:    acc[1],
			Authority: acc[2],
			BondMint:  acc[3],
			QuoteMint: acc[4],
		}, args)

	case KindInitializeMarket:
		acc, err := ix.accounts(6)
		if err != nil {
			return nil, err
		}
		price, err := ix.decodeAmount()
		if err != nil {
			return nil, err
		}
		return l.engine.InitializeMarket(ov, signers, settlement.InitializeMarketAccounts{
			Admin:      acc[0],
			Market:     acc[1],
			BondMint:   acc[2],
			QuoteMint:  acc[3],
			VaultBond:  acc[4],
			VaultQuote: acc[5],
		}, price)

	case KindIssueBonds:
		acc, err := ix.accounts(4)
		if err != nil {
			return nil, err
		}
		amount, err := ix.decodeAmount()
		if err != nil {
			return nil, err
		}
		return l.engine.IssueBonds(ov, signers, settlement.IssueBondsAccounts{
			Admin:     acc[0],
			Market:    acc[1],
			BondMint:  acc[2],
			VaultBond: acc[3],
		}, amount)

	case KindSetPaused:
		acc, err := ix.accounts(2)
		if err != nil {
			return nil, err
		}
		d := decoder{buf: ix.Data}
		paused := d.boolean()
		if err := d.finish(); err != nil {
			return nil, err
		}
		return l.engine.SetPaused(ov, signers, settlement.SetPausedAccounts{Admin: acc[0], Market: acc[1]}, paused)

	case KindBuy:
		acc, err := ix.accounts(6)
		if err != nil {
			return nil, err
		}
		amount, err := ix.decodeAmount()
		if err != nil {
			return nil, err
		}
		return l.engine.Buy(ov, signers, settlement.BuyAccounts{
			Buyer:      acc[0],
			Market:     acc[1],
			BuyerQuote: acc[2],
			BuyerBond:  acc[3],
			VaultQuote: acc[4],
			VaultBond:  acc[5],
		}, amount)

	case KindSell:
		acc, err := ix.accounts(6)
		if err != nil {
			return nil, err
		}
		amount, err := ix.decodeAmount()
		if err != nil {
			return nil, err
		}
		return l.engine.Sell(ov, signers, settlement.SellAccounts{
			Seller:      acc[0],
			Market:      acc[1],
			SellerBond:  acc[2],
			SellerQuote: acc[3],
			VaultBond:   acc[4],
			VaultQuote:  acc[5],
		}, amount)

	default:
		return nil, fmt.Errorf("%w: settlement program has no %q", ErrUnknownInstruction, ix.Kind)
	}
}
