package ledger

import (
	"fmt"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
)

// Instruction kinds. The discriminator of each is derived from its name.
const (
	KindCreateMint    = "create_mint"
	KindCreateAccount = "create_account"
	KindMintTo        = "mint_to"
	KindTransfer      = "transfer"

	KindCreateMarket     = "create_market"
	KindInitializeMarket = "initialize_market"
	KindIssueBonds       = "issue_bonds"
	KindSetPaused        = "set_paused"
	KindBuy              = "buy"
	KindSell             = "sell"
)

func instruction(program address.ID, kind string, accounts []address.ID, e *encoder) Instruction {
	ix := Instruction{Program: program, Kind: kind, Accounts: accounts}
	if e != nil {
		ix.Data = e.buf
	}
	return ix
}

func amountData(amount uint64) *encoder {
	e := &encoder{}
	e.u64(amount)
	return e
}

// Token program.

// CreateMint registers a new mint. The mint id must sign, which proves the
// caller holds the key for a fresh address.
func CreateMint(mint, authority address.ID, decimals uint8) Instruction {
	e := &encoder{}
	e.u8(decimals)
	return instruction(token.ProgramID, KindCreateMint, []address.ID{mint, authority}, e)
}

// CreateAccount opens the associated token account of owner for mint.
func CreateAccount(account, owner, mint address.ID) Instruction {
	return instruction(token.ProgramID, KindCreateAccount, []address.ID{account, owner, mint}, nil)
}

// MintTo creates amount tokens in destination. The mint authority signs.
func MintTo(mint, destination, authority address.ID, amount uint64) Instruction {
	return instruction(token.ProgramID, KindMintTo, []address.ID{mint, destination, authority}, amountData(amount))
}

// Transfer moves amount between token accounts. The source owner signs.
func Transfer(source, destination, owner address.ID, amount uint64) Instruction {
	return instruction(token.ProgramID, KindTransfer, []address.ID{source, destination, owner}, amountData(amount))
}

// Settlement program.

func CreateMarket(program address.ID, acc settlement.CreateMarketAccounts, args settlement.CreateMarketArgs) Instruction {
	e := &encoder{}
	e.str(args.IssuerName)
	e.i64(args.MaturityTimestamp)
	e.u16(args.CouponRateBps)
	e.id(args.QuoteMint)
	return instruction(program, KindCreateMarket,
		[]address.ID{acc.Admin, acc.Market, acc.Authority, acc.BondMint, acc.QuoteMint}, e)
}

func InitializeMarket(program address.ID, acc settlement.InitializeMarketAccounts, price uint64) Instruction {
	return instruction(program, KindInitializeMarket,
		[]address.ID{acc.Admin, acc.Market, acc.BondMint, acc.QuoteMint, acc.VaultBond, acc.VaultQuote}, amountData(price))
}

func IssueBonds(program address.ID, acc settlement.IssueBondsAccounts, amount uint64) Instruction {
	return instruction(program, KindIssueBonds,
		[]address.ID{acc.Admin, acc.Market, acc.BondMint, acc.VaultBond}, amountData(amount))
}

func SetPaused(program address.ID, acc settlement.SetPausedAccounts, paused bool) Instruction {
	e := &encoder{}
	e.boolean(paused)
	return instruction(program, KindSetPaused, []address.ID{acc.Admin, acc.Market}, e)
}

func Buy(program address.ID, acc settlement.BuyAccounts, amount uint64) Instruction {
	return instruction(program, KindBuy,
		[]address.ID{acc.Buyer, acc.Market, acc.BuyerQuote, acc.BuyerBond, acc.VaultQuote, acc.VaultBond}, amountData(amount))
}

func Sell(program address.ID, acc settlement.SellAccounts, amount uint64) Instruction {
	return instruction(program, KindSell,
		[]address.ID{acc.Seller, acc.Market, acc.SellerBond, acc.SellerQuote, acc.VaultBond, acc.VaultQuote}, amountData(amount))
}

// accounts returns the instruction's account list if it has exactly n
// entries.
func (ix *Instruction) accounts(n int) ([]address.ID, error) {
	if len(ix.Accounts) != n {
		return nil, fmt.Errorf("%w: %s takes %d accounts, got %d", ErrMalformed, ix.Kind, n, len(ix.Accounts))
	}
	return ix.Accounts, nil
}

func (ix *Instruction) decodeAmount() (uint64, error) {
	d := decoder{buf: ix.Data}
	v := d.u64()
	return v, d.finish()
}
