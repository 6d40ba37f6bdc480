package ledger

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
	"github.com/atmx/bond-market/internal/wallet"
)

var genesis = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func keypair(t *testing.T, name string) *wallet.Keypair {
	t.Helper()
	seed := sha256.Sum256([]byte(name))
	kp, err := wallet.FromSeed(seed[:])
	require.NoError(t, err)
	return kp
}

type harness struct {
	t      *testing.T
	ledger *Ledger
	nonce  uint64
	admin  *wallet.Keypair
	quote  *wallet.Keypair
	addrs  settlement.MarketAddresses
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ledger: New(settlement.NewEngine(address.Namespace("ledger-test")), WithClock(func() time.Time { return genesis })),
		admin:  keypair(t, "admin"),
		quote:  keypair(t, "quote mint"),
	}
	h.submit(h.admin, CreateMint(h.quote.Public(), h.admin.Public(), 6))
	return h
}

func (h *harness) tx(ixs ...Instruction) *Transaction {
	h.nonce++
	return NewTransaction(h.nonce, ixs...)
}

func (h *harness) submit(signer *wallet.Keypair, ixs ...Instruction) *Receipt {
	h.t.Helper()
	tx := h.tx(ixs...)
	keys := []*wallet.Keypair{signer}
	// A new mint co-signs its own creation.
	if ixs[0].Kind == KindCreateMint {
		keys = append(keys, h.quote)
	}
	tx.Sign(keys...)
	r, err := h.ledger.Submit(context.Background(), tx)
	require.NoError(h.t, err)
	return r
}

func (h *harness) trySubmit(ixs []Instruction, keys ...*wallet.Keypair) (*Receipt, error) {
	tx := h.tx(ixs...)
	tx.Sign(keys...)
	return h.ledger.Submit(context.Background(), tx)
}

func (h *harness) ata(owner address.ID, mint address.ID) address.ID {
	id, err := token.AssociatedAddress(owner, mint)
	require.NoError(h.t, err)
	return id
}

func (h *harness) fundedAccount(owner *wallet.Keypair, amount uint64) address.ID {
	acct := h.ata(owner.Public(), h.quote.Public())
	h.submit(owner, CreateAccount(acct, owner.Public(), h.quote.Public()))
	if amount > 0 {
		h.submit(h.admin, MintTo(h.quote.Public(), acct, h.admin.Public(), amount))
	}
	return acct
}

func (h *harness) balance(id address.ID) uint64 {
	info, err := h.ledger.Account(context.Background(), id)
	require.NoError(h.t, err)
	require.NotNil(h.t, info.TokenAccount)
	return info.TokenAccount.Amount
}

// openMarket creates, initializes and stocks a market.
func (h *harness) openMarket(price, inventory uint64) {
	h.t.Helper()
	program := h.ledger.Program()
	var err error
	h.addrs, err = settlement.DeriveMarket(program, "Acme Treasury")
	require.NoError(h.t, err)

	admin := h.admin.Public()
	h.submit(h.admin,
		CreateMarket(program, settlement.CreateMarketAccounts{
			Admin:     admin,
			Market:    h.addrs.Market,
			Authority: h.addrs.Authority,
			BondMint:  h.addrs.BondMint,
			QuoteMint: h.quote.Public(),
		}, settlement.CreateMarketArgs{
			IssuerName:        "Acme Treasury",
			MaturityTimestamp: genesis.AddDate(5, 0, 0).Unix(),
			CouponRateBps:     500,
			QuoteMint:         h.quote.Public(),
		}),
		InitializeMarket(program, settlement.InitializeMarketAccounts{
			Admin:      admin,
			Market:     h.addrs.Market,
			BondMint:   h.addrs.BondMint,
			QuoteMint:  h.quote.Public(),
			VaultBond:  h.addrs.VaultBond,
			VaultQuote: h.addrs.VaultQuote,
		}, price),
		IssueBonds(program, settlement.IssueBondsAccounts{
			Admin:     admin,
			Market:    h.addrs.Market,
			BondMint:  h.addrs.BondMint,
			VaultBond: h.addrs.VaultBond,
		}, inventory),
	)
}

func (h *harness) buy(buyer *wallet.Keypair, amount uint64) Instruction {
	return Buy(h.ledger.Program(), settlement.BuyAccounts{
		Buyer:      buyer.Public(),
		Market:     h.addrs.Market,
		BuyerQuote: h.ata(buyer.Public(), h.quote.Public()),
		BuyerBond:  h.ata(buyer.Public(), h.addrs.BondMint),
		VaultQuote: h.addrs.VaultQuote,
		VaultBond:  h.addrs.VaultBond,
	}, amount)
}

func TestLedger_MarketFlow(t *testing.T) {
	h := newHarness(t)
	var receipts []*Receipt
	h.ledger.OnCommit(func(r *Receipt) { receipts = append(receipts, r) })

	h.openMarket(1_000_000, 1000)
	require.Len(t, receipts, 1)
	require.Len(t, receipts[0].Events, 3)
	assert.Equal(t, "market_created", receipts[0].Events[0].EventName())
	assert.Equal(t, "market_initialized", receipts[0].Events[1].EventName())
	assert.Equal(t, "bonds_issued", receipts[0].Events[2].EventName())
	assert.Equal(t, genesis, receipts[0].Time)

	buyer := keypair(t, "buyer")
	buyerQuote := h.fundedAccount(buyer, 10_000_000)
	buyerBond := h.ata(buyer.Public(), h.addrs.BondMint)
	h.submit(buyer, CreateAccount(buyerBond, buyer.Public(), h.addrs.BondMint))

	r := h.submit(buyer, h.buy(buyer, 2))
	require.Len(t, r.Events, 1)
	trade, ok := r.Events[0].(settlement.TradeEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(2_000_000), trade.Cost)
	assert.Equal(t, r.Signature, receipts[len(receipts)-1].Signature)

	assert.Equal(t, uint64(8_000_000), h.balance(buyerQuote))
	assert.Equal(t, uint64(2), h.balance(buyerBond))
	assert.Equal(t, uint64(998), h.balance(h.addrs.VaultBond))
	assert.Equal(t, uint64(2_000_000), h.balance(h.addrs.VaultQuote))

	_, err := h.trySubmit([]Instruction{h.buy(buyer, 1000)}, buyer)
	require.ErrorIs(t, err, settlement.ErrInsufficientInventory)
	assert.Equal(t, "InsufficientInventory", Reason(err))
	assert.Equal(t, uint64(998), h.balance(h.addrs.VaultBond))
	assert.Equal(t, uint64(8_000_000), h.balance(buyerQuote))

	info, err := h.ledger.Account(context.Background(), h.addrs.Market)
	require.NoError(t, err)
	assert.Equal(t, AccountTypeMarket, info.Type)
	assert.Equal(t, uint64(2), info.Market.BondsBought)
}

func TestLedger_AtomicAcrossInstructions(t *testing.T) {
	h := newHarness(t)
	h.openMarket(100, 10)

	buyer := keypair(t, "buyer")
	buyerQuote := h.fundedAccount(buyer, 5_000)
	buyerBond := h.ata(buyer.Public(), h.addrs.BondMint)
	slot := h.ledger.Slot()

	// The account creation and first buy succeed; the second buy exceeds
	// inventory and must take the whole transaction down with it.
	_, err := h.trySubmit([]Instruction{
		CreateAccount(buyerBond, buyer.Public(), h.addrs.BondMint),
		h.buy(buyer, 5),
		h.buy(buyer, 6),
	}, buyer)
	require.ErrorIs(t, err, settlement.ErrInsufficientInventory)

	assert.Equal(t, slot, h.ledger.Slot())
	assert.Equal(t, uint64(5_000), h.balance(buyerQuote))
	assert.Equal(t, uint64(10), h.balance(h.addrs.VaultBond))
	_, err = h.ledger.Account(context.Background(), buyerBond)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLedger_Signatures(t *testing.T) {
	h := newHarness(t)
	buyer := keypair(t, "buyer")
	acct := h.ata(buyer.Public(), h.quote.Public())

	tx := h.tx(CreateAccount(acct, buyer.Public(), h.quote.Public()))
	_, err := h.ledger.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ErrMissingSignature)

	tx.Sign(buyer)
	tx.Instructions[0].Accounts[0] = address.Namespace("tampered")
	_, err = h.ledger.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tx = h.tx(CreateAccount(acct, buyer.Public(), h.quote.Public()))
	tx.Sign(buyer, buyer)
	_, err = h.ledger.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = h.ledger.Submit(context.Background(), h.tx())
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestLedger_RejectsReplay(t *testing.T) {
	h := newHarness(t)
	buyer := keypair(t, "buyer")
	acct := h.fundedAccount(buyer, 0)
	other := h.fundedAccount(keypair(t, "other"), 0)
	h.submit(h.admin, MintTo(h.quote.Public(), acct, h.admin.Public(), 100))

	tx := h.tx(Transfer(acct, other, buyer.Public(), 40))
	tx.Sign(buyer)
	_, err := h.ledger.Submit(context.Background(), tx)
	require.NoError(t, err)

	_, err = h.ledger.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, uint64(60), h.balance(acct))
	assert.Equal(t, uint64(40), h.balance(other))
}

func TestLedger_TokenProgram(t *testing.T) {
	h := newHarness(t)
	alice, bob := keypair(t, "alice"), keypair(t, "bob")
	a := h.fundedAccount(alice, 50)
	b := h.fundedAccount(bob, 0)

	tests := []struct {
		name string
		ix   Instruction
		key  *wallet.Keypair
		want error
	}{
		{"transfer by non-owner", Transfer(a, b, bob.Public(), 1), bob, ErrUnauthorized},
		{"overdraw", Transfer(a, b, alice.Public(), 51), alice, token.ErrInsufficientFunds},
		{"mint without authority", MintTo(h.quote.Public(), a, alice.Public(), 1), alice, ErrUnauthorized},
		{"account off its canonical address", CreateAccount(address.Namespace("elsewhere"), alice.Public(), h.quote.Public()), alice, ErrAddressMismatch},
		{"account exists", CreateAccount(a, alice.Public(), h.quote.Public()), alice, ErrAccountInUse},
		{"unknown program", Instruction{Program: address.Namespace("nope"), Kind: "x"}, alice, ErrUnknownProgram},
		{"bad data", Instruction{Program: token.ProgramID, Kind: KindTransfer, Accounts: []address.ID{a, b, alice.Public()}, Data: []byte{1}}, alice, ErrMalformed},
		{"mint must sign", CreateMint(address.Namespace("new mint"), alice.Public(), 6), alice, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.trySubmit([]Instruction{tt.ix}, tt.key)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, uint64(50), h.balance(a))
	assert.Equal(t, uint64(0), h.balance(b))
}

func TestLedger_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := h.tx(CreateMint(address.Namespace("m"), h.admin.Public(), 6))
	tx.Sign(h.admin)
	_, err := h.ledger.Submit(ctx, tx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLedger_ConcurrentBuys(t *testing.T) {
	h := newHarness(t)
	h.openMarket(10, 100)

	var buyers []*wallet.Keypair
	for _, name := range []string{"b1", "b2", "b3", "b4", "b5"} {
		kp := keypair(t, name)
		h.fundedAccount(kp, 1_000)
		h.submit(kp, CreateAccount(h.ata(kp.Public(), h.addrs.BondMint), kp.Public(), h.addrs.BondMint))
		buyers = append(buyers, kp)
	}

	// 5 buyers x 5 attempts x 5 bonds = 125 requested against 100 in stock.
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		filled uint64
	)
	for i, kp := range buyers {
		for j := 0; j < 5; j++ {
			tx := NewTransaction(uint64(1000+i*10+j), h.buy(kp, 5))
			tx.Sign(kp)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.ledger.Submit(context.Background(), tx); err == nil {
					mu.Lock()
					filled += 5
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, uint64(100), filled)
	assert.Equal(t, uint64(0), h.balance(h.addrs.VaultBond))
	assert.Equal(t, uint64(1000), h.balance(h.addrs.VaultQuote))
}

func TestLedger_HooksRunInSlotOrder(t *testing.T) {
	h := newHarness(t)
	h.openMarket(1, 1000)
	buyer := keypair(t, "buyer")
	h.fundedAccount(buyer, 1000)
	h.submit(buyer, CreateAccount(h.ata(buyer.Public(), h.addrs.BondMint), buyer.Public(), h.addrs.BondMint))

	var (
		mu      sync.Mutex
		slots   []uint64
		running int
		overlap bool
	)
	h.ledger.OnCommit(func(r *Receipt) {
		mu.Lock()
		running++
		overlap = overlap || running > 1
		mu.Unlock()

		time.Sleep(200 * time.Microsecond)

		mu.Lock()
		slots = append(slots, r.Slot)
		running--
		mu.Unlock()
	})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		tx := NewTransaction(uint64(5000+i), h.buy(buyer, 1))
		tx.Sign(buyer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Submit(context.Background(), tx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, slots, n)
	assert.False(t, overlap, "hooks for different slots ran concurrently")
	for i := range slots {
		assert.Equal(t, slots[0]+uint64(i), slots[i], "hook order at %d", i)
	}
	assert.Equal(t, h.ledger.Slot(), slots[n-1])
}

func TestReason(t *testing.T) {
	assert.Equal(t, "MarketPaused", Reason(settlement.ErrMarketPaused))
	assert.Equal(t, "DuplicateTransaction", Reason(ErrDuplicate))
	assert.Equal(t, "InsufficientFunds", Reason(token.ErrInsufficientFunds))
	assert.Equal(t, "Unknown", Reason(context.Canceled))
}
