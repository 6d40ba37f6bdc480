// Package settlement is the bond market settlement core: market lifecycle,
// the authorization gate and fixed-price buy/sell against custody vaults.
//
// Every operation validates completely before it writes anything. Writes go
// to the Store handed in by the ledger, which commits them atomically with
// the rest of the transaction or not at all.
package settlement

import (
	"errors"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/num"
	"github.com/atmx/bond-market/internal/token"
)

// Engine executes settlement operations for one program id.
type Engine struct {
	program address.ID
	gate    Gate
}

func NewEngine(program address.ID) *Engine {
	if program.IsZero() {
		program = DefaultProgramID
	}
	return &Engine{program: program}
}

// Program returns the id market addresses are derived under.
func (e *Engine) Program() address.ID { return e.program }

// CreateMarket allocates the market record and its bond mint.
func (e *Engine) CreateMarket(s Store, signers Signers, acc CreateMarketAccounts, args CreateMarketArgs) (MarketCreated, error) {
	const op = "create_market"

	if err := e.gate.Authorize(op, AdminOnly, signers, acc.Admin); err != nil {
		return MarketCreated{}, err
	}
	if err := validateIssuerName(op, args.IssuerName); err != nil {
		return MarketCreated{}, err
	}
	if args.CouponRateBps > MaxCouponRateBps {
		return MarketCreated{}, fail(op, KindInvalidArgument, "coupon rate %d bps exceeds %d", args.CouponRateBps, MaxCouponRateBps)
	}
	if now := s.Now().Unix(); args.MaturityTimestamp <= now {
		return MarketCreated{}, fail(op, KindInvalidArgument, "maturity %d is not after %d", args.MaturityTimestamp, now)
	}
	if args.QuoteMint != acc.QuoteMint {
		return MarketCreated{}, fail(op, KindAccountMismatch, "quote mint argument %s differs from account %s", args.QuoteMint, acc.QuoteMint)
	}
	quote, ok := s.Mint(acc.QuoteMint)
	if !ok {
		return MarketCreated{}, fail(op, KindInvalidArgument, "quote mint %s does not exist", acc.QuoteMint)
	}

	addrs, err := DeriveMarket(e.program, args.IssuerName)
	if err != nil {
		return MarketCreated{}, err
	}
	if err := expect(op, "market", acc.Market, addrs.Market); err != nil {
		return MarketCreated{}, err
	}
	if err := expect(op, "authority", acc.Authority, addrs.Authority); err != nil {
		return MarketCreated{}, err
	}
	if err := expect(op, "bond mint", acc.BondMint, addrs.BondMint); err != nil {
		return MarketCreated{}, err
	}
	if s.Exists(addrs.Market) {
		return MarketCreated{}, fail(op, KindAccountInUse, "market %s already exists", addrs.Market)
	}
	if s.Exists(addrs.BondMint) {
		return MarketCreated{}, fail(op, KindAccountInUse, "bond mint %s already exists", addrs.BondMint)
	}

	s.PutMint(&token.Mint{
		ID:        addrs.BondMint,
		Authority: addrs.Authority,
		Decimals:  BondDecimals,
	})
	s.PutMarket(&Market{
		ID:                addrs.Market,
		Bump:              addrs.MarketBump,
		Admin:             acc.Admin,
		Authority:         addrs.Authority,
		AuthorityBump:     addrs.AuthorityBump,
		IssuerName:        args.IssuerName,
		BondMint:          addrs.BondMint,
		QuoteMint:         acc.QuoteMint,
		MaturityTimestamp: args.MaturityTimestamp,
		CouponRateBps:     args.CouponRateBps,
		State:             StateUninitialized,
	})

	return MarketCreated{
		Market:            addrs.Market,
		Admin:             acc.Admin,
		IssuerName:        args.IssuerName,
		BondMint:          addrs.BondMint,
		QuoteMint:         acc.QuoteMint,
		QuoteDecimals:     quote.Decimals,
		MaturityTimestamp: args.MaturityTimestamp,
		CouponRateBps:     args.CouponRateBps,
	}, nil
}

// InitializeMarket fixes the price and binds the custody vaults, creating
// them if they do not exist yet.
func (e *Engine) InitializeMarket(s Store, signers Signers, acc InitializeMarketAccounts, price uint64) (MarketInitialized, error) {
	const op = "initialize_market"

	m, err := loadMarket(op, s, acc.Market)
	if err != nil {
		return MarketInitialized{}, err
	}
	if err := e.authorizeAdmin(op, signers, m, acc.Admin); err != nil {
		return MarketInitialized{}, err
	}
	if m.State == StateInitialized {
		return MarketInitialized{}, fail(op, KindAlreadyInitialized, "market %s", m.ID)
	}
	if price == 0 {
		return MarketInitialized{}, fail(op, KindInvalidArgument, "price must be positive")
	}
	if err := expect(op, "bond mint", acc.BondMint, m.BondMint); err != nil {
		return MarketInitialized{}, err
	}
	if err := expect(op, "quote mint", acc.QuoteMint, m.QuoteMint); err != nil {
		return MarketInitialized{}, err
	}

	addrs, err := DeriveMarketResources(e.program, m.ID)
	if err != nil {
		return MarketInitialized{}, err
	}
	if err := expect(op, "bond vault", acc.VaultBond, addrs.VaultBond); err != nil {
		return MarketInitialized{}, err
	}
	if err := expect(op, "quote vault", acc.VaultQuote, addrs.VaultQuote); err != nil {
		return MarketInitialized{}, err
	}

	vaultBond, err := openVault(op, s, acc.VaultBond, m.BondMint, m.Authority)
	if err != nil {
		return MarketInitialized{}, err
	}
	vaultQuote, err := openVault(op, s, acc.VaultQuote, m.QuoteMint, m.Authority)
	if err != nil {
		return MarketInitialized{}, err
	}

	m.PricePerToken = price
	m.VaultBond = vaultBond.ID
	m.VaultQuote = vaultQuote.ID
	m.State = StateInitialized

	s.PutTokenAccount(vaultBond)
	s.PutTokenAccount(vaultQuote)
	s.PutMarket(m)

	return MarketInitialized{
		Market:        m.ID,
		PricePerToken: price,
		VaultBond:     vaultBond.ID,
		VaultQuote:    vaultQuote.ID,
	}, nil
}

// IssueBonds mints new bond supply into the market's bond vault. The bond
// mint authority is the market authority, so this is the only way supply
// enters circulation.
func (e *Engine) IssueBonds(s Store, signers Signers, acc IssueBondsAccounts, amount uint64) (BondsIssued, error) {
	const op = "issue_bonds"

	m, err := loadMarket(op, s, acc.Market)
	if err != nil {
		return BondsIssued{}, err
	}
	if err := e.authorizeAdmin(op, signers, m, acc.Admin); err != nil {
		return BondsIssued{}, err
	}
	if m.State != StateInitialized {
		return BondsIssued{}, fail(op, KindNotInitialized, "market %s", m.ID)
	}
	if amount == 0 {
		return BondsIssued{}, fail(op, KindInvalidArgument, "amount must be positive")
	}
	if err := expect(op, "bond mint", acc.BondMint, m.BondMint); err != nil {
		return BondsIssued{}, err
	}
	if err := expect(op, "bond vault", acc.VaultBond, m.VaultBond); err != nil {
		return BondsIssued{}, err
	}

	mint, ok := s.Mint(m.BondMint)
	if !ok {
		return BondsIssued{}, fail(op, KindAccountNotFound, "bond mint %s", m.BondMint)
	}
	vault, err := loadTokenAccount(op, s, m.VaultBond)
	if err != nil {
		return BondsIssued{}, err
	}
	issued, err := num.AddU64(m.BondsIssued, amount)
	if err != nil {
		return BondsIssued{}, fail(op, KindArithmeticOverflow, "bonds issued")
	}
	if err := token.MintTo(mint, vault, amount); err != nil {
		return BondsIssued{}, tokenFailure(op, err)
	}

	m.BondsIssued = issued
	s.PutMint(mint)
	s.PutTokenAccount(vault)
	s.PutMarket(m)

	return BondsIssued{Market: m.ID, Amount: amount, TotalIssued: issued}, nil
}

// SetPaused halts or resumes trading on an initialized market.
func (e *Engine) SetPaused(s Store, signers Signers, acc SetPausedAccounts, paused bool) (MarketPauseChanged, error) {
	const op = "set_paused"

	m, err := loadMarket(op, s, acc.Market)
	if err != nil {
		return MarketPauseChanged{}, err
	}
	if err := e.authorizeAdmin(op, signers, m, acc.Admin); err != nil {
		return MarketPauseChanged{}, err
	}
	if m.State != StateInitialized {
		return MarketPauseChanged{}, fail(op, KindNotInitialized, "market %s", m.ID)
	}

	m.Paused = paused
	s.PutMarket(m)
	return MarketPauseChanged{Market: m.ID, Paused: paused}, nil
}

// Buy exchanges amount*price quote tokens from the buyer for amount bond
// tokens from the vault.
func (e *Engine) Buy(s Store, signers Signers, acc BuyAccounts, amount uint64) (TradeEvent, error) {
	const op = "buy"

	m, err := loadMarket(op, s, acc.Market)
	if err != nil {
		return TradeEvent{}, err
	}
	buyerQuote, err := loadTokenAccount(op, s, acc.BuyerQuote)
	if err != nil {
		return TradeEvent{}, err
	}
	buyerBond, err := loadTokenAccount(op, s, acc.BuyerBond)
	if err != nil {
		return TradeEvent{}, err
	}
	if err := e.authorizeTrader(op, signers, acc.Buyer, buyerQuote, buyerBond); err != nil {
		return TradeEvent{}, err
	}
	if err := checkTradable(op, m); err != nil {
		return TradeEvent{}, err
	}
	if err := expect(op, "quote vault", acc.VaultQuote, m.VaultQuote); err != nil {
		return TradeEvent{}, err
	}
	if err := expect(op, "bond vault", acc.VaultBond, m.VaultBond); err != nil {
		return TradeEvent{}, err
	}
	if err := expectMint(op, "buyer quote account", buyerQuote, m.QuoteMint); err != nil {
		return TradeEvent{}, err
	}
	if err := expectMint(op, "buyer bond account", buyerBond, m.BondMint); err != nil {
		return TradeEvent{}, err
	}
	vaultQuote, err := loadTokenAccount(op, s, m.VaultQuote)
	if err != nil {
		return TradeEvent{}, err
	}
	vaultBond, err := loadTokenAccount(op, s, m.VaultBond)
	if err != nil {
		return TradeEvent{}, err
	}

	if amount == 0 {
		return TradeEvent{}, fail(op, KindInvalidArgument, "amount must be positive")
	}
	cost, err := num.MulU64(amount, m.PricePerToken)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "%d * %d", amount, m.PricePerToken)
	}
	if vaultBond.Amount < amount {
		return TradeEvent{}, fail(op, KindInsufficientInventory, "vault holds %d bonds, need %d", vaultBond.Amount, amount)
	}
	if buyerQuote.Amount < cost {
		return TradeEvent{}, fail(op, KindInsufficientFunds, "buyer holds %d, cost %d", buyerQuote.Amount, cost)
	}

	bought, err := num.AddU64(m.BondsBought, amount)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "bonds bought")
	}
	received, err := num.AddU64(m.QuoteReceived, cost)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "quote received")
	}
	if _, err := num.AddU64(vaultQuote.Amount, cost); err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "crediting quote vault")
	}
	if _, err := num.AddU64(buyerBond.Amount, amount); err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "crediting buyer bond account")
	}

	if err := token.Transfer(buyerQuote, vaultQuote, cost); err != nil {
		return TradeEvent{}, tokenFailure(op, err)
	}
	if err := token.Transfer(vaultBond, buyerBond, amount); err != nil {
		return TradeEvent{}, tokenFailure(op, err)
	}

	m.BondsBought = bought
	m.QuoteReceived = received
	s.PutTokenAccount(buyerQuote)
	s.PutTokenAccount(vaultQuote)
	s.PutTokenAccount(vaultBond)
	s.PutTokenAccount(buyerBond)
	s.PutMarket(m)

	return TradeEvent{
		Market:        m.ID,
		Trader:        acc.Buyer,
		Side:          SideBuy,
		Amount:        amount,
		PricePerToken: m.PricePerToken,
		Cost:          cost,
		BondsBought:   m.BondsBought,
		BondsSold:     m.BondsSold,
	}, nil
}

// Sell exchanges amount bond tokens from the seller for amount*price quote
// tokens from the vault.
func (e *Engine) Sell(s Store, signers Signers, acc SellAccounts, amount uint64) (TradeEvent, error) {
	const op = "sell"

	m, err := loadMarket(op, s, acc.Market)
	if err != nil {
		return TradeEvent{}, err
	}
	sellerBond, err := loadTokenAccount(op, s, acc.SellerBond)
	if err != nil {
		return TradeEvent{}, err
	}
	sellerQuote, err := loadTokenAccount(op, s, acc.SellerQuote)
	if err != nil {
		return TradeEvent{}, err
	}
	if err := e.authorizeTrader(op, signers, acc.Seller, sellerBond, sellerQuote); err != nil {
		return TradeEvent{}, err
	}
	if err := checkTradable(op, m); err != nil {
		return TradeEvent{}, err
	}
	if err := expect(op, "bond vault", acc.VaultBond, m.VaultBond); err != nil {
		return TradeEvent{}, err
	}
	if err := expect(op, "quote vault", acc.VaultQuote, m.VaultQuote); err != nil {
		return TradeEvent{}, err
	}
	if err := expectMint(op, "seller bond account", sellerBond, m.BondMint); err != nil {
		return TradeEvent{}, err
	}
	if err := expectMint(op, "seller quote account", sellerQuote, m.QuoteMint); err != nil {
		return TradeEvent{}, err
	}
	vaultBond, err := loadTokenAccount(op, s, m.VaultBond)
	if err != nil {
		return TradeEvent{}, err
	}
	vaultQuote, err := loadTokenAccount(op, s, m.VaultQuote)
	if err != nil {
		return TradeEvent{}, err
	}

	if amount == 0 {
		return TradeEvent{}, fail(op, KindInvalidArgument, "amount must be positive")
	}
	cost, err := num.MulU64(amount, m.PricePerToken)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "%d * %d", amount, m.PricePerToken)
	}
	if vaultQuote.Amount < cost {
		return TradeEvent{}, fail(op, KindInsufficientInventory, "vault holds %d quote, need %d", vaultQuote.Amount, cost)
	}
	if sellerBond.Amount < amount {
		return TradeEvent{}, fail(op, KindInsufficientFunds, "seller holds %d bonds, selling %d", sellerBond.Amount, amount)
	}

	sold, err := num.AddU64(m.BondsSold, amount)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "bonds sold")
	}
	paid, err := num.AddU64(m.QuotePaid, cost)
	if err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "quote paid")
	}
	if _, err := num.AddU64(vaultBond.Amount, amount); err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "crediting bond vault")
	}
	if _, err := num.AddU64(sellerQuote.Amount, cost); err != nil {
		return TradeEvent{}, fail(op, KindArithmeticOverflow, "crediting seller quote account")
	}

	if err := token.Transfer(sellerBond, vaultBond, amount); err != nil {
		return TradeEvent{}, tokenFailure(op, err)
	}
	if err := token.Transfer(vaultQuote, sellerQuote, cost); err != nil {
		return TradeEvent{}, tokenFailure(op, err)
	}

	m.BondsSold = sold
	m.QuotePaid = paid
	s.PutTokenAccount(sellerBond)
	s.PutTokenAccount(vaultBond)
	s.PutTokenAccount(vaultQuote)
	s.PutTokenAccount(sellerQuote)
	s.PutMarket(m)

	return TradeEvent{
		Market:        m.ID,
		Trader:        acc.Seller,
		Side:          SideSell,
		Amount:        amount,
		PricePerToken: m.PricePerToken,
		Cost:          cost,
		BondsBought:   m.BondsBought,
		BondsSold:     m.BondsSold,
	}, nil
}

func (e *Engine) authorizeAdmin(op string, signers Signers, m *Market, claimed address.ID) error {
	if claimed != m.Admin {
		return fail(op, KindUnauthorized, "%s is not the admin of market %s", claimed, m.ID)
	}
	return e.gate.Authorize(op, AdminOnly, signers, m.Admin)
}

// authorizeTrader requires the trader to sign and to own both of the
// accounts it names; the first one is the account being debited.
func (e *Engine) authorizeTrader(op string, signers Signers, trader address.ID, debited, credited *token.Account) error {
	if debited.Owner != trader {
		return fail(op, KindUnauthorized, "%s does not own %s", trader, debited.ID)
	}
	if err := e.gate.Authorize(op, CounterpartySigner, signers, debited.Owner); err != nil {
		return err
	}
	if credited.Owner != trader {
		return fail(op, KindUnauthorized, "%s does not own %s", trader, credited.ID)
	}
	return nil
}

func checkTradable(op string, m *Market) error {
	if m.State != StateInitialized {
		return fail(op, KindNotInitialized, "market %s", m.ID)
	}
	if m.Paused {
		return fail(op, KindMarketPaused, "market %s", m.ID)
	}
	return nil
}

func loadMarket(op string, s Store, id address.ID) (*Market, error) {
	m, ok := s.Market(id)
	if !ok {
		return nil, fail(op, KindAccountNotFound, "market %s", id)
	}
	return m, nil
}

func loadTokenAccount(op string, s Store, id address.ID) (*token.Account, error) {
	a, ok := s.TokenAccount(id)
	if !ok {
		return nil, fail(op, KindAccountNotFound, "token account %s", id)
	}
	return a, nil
}

// openVault returns the existing vault at id or a new empty one. An existing
// account must already be held by the market authority in the right mint.
func openVault(op string, s Store, id, mint, authority address.ID) (*token.Account, error) {
	if a, ok := s.TokenAccount(id); ok {
		if a.Owner != authority {
			return nil, fail(op, KindAccountMismatch, "vault %s is owned by %s, not the market authority", id, a.Owner)
		}
		if err := expectMint(op, "vault", a, mint); err != nil {
			return nil, err
		}
		return a, nil
	}
	if s.Exists(id) {
		return nil, fail(op, KindAccountMismatch, "vault %s is not a token account", id)
	}
	if _, ok := s.Mint(mint); !ok {
		return nil, fail(op, KindAccountNotFound, "mint %s", mint)
	}
	return &token.Account{ID: id, Mint: mint, Owner: authority}, nil
}

func expect(op, what string, got, want address.ID) error {
	if got != want {
		return fail(op, KindAccountMismatch, "%s is %s, expected %s", what, got, want)
	}
	return nil
}

func expectMint(op, what string, a *token.Account, mint address.ID) error {
	if a.Mint != mint {
		return fail(op, KindAccountMismatch, "%s %s holds mint %s, expected %s", what, a.ID, a.Mint, mint)
	}
	return nil
}

func tokenFailure(op string, err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientFunds):
		return fail(op, KindInsufficientFunds, "%v", err)
	case errors.Is(err, token.ErrOverflow):
		return fail(op, KindArithmeticOverflow, "%v", err)
	default:
		return fail(op, KindAccountMismatch, "%v", err)
	}
}
