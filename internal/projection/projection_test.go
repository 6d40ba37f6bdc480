package projection_test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/client"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/model"
	"github.com/atmx/bond-market/internal/projection"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/store"
	"github.com/atmx/bond-market/internal/wallet"
)

type recorder struct {
	mu   sync.Mutex
	msgs []projection.Message
}

func (r *recorder) Broadcast(m projection.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func keypair(t *testing.T, name string) *wallet.Keypair {
	t.Helper()
	seed := sha256.Sum256([]byte(name))
	kp, err := wallet.FromSeed(seed[:])
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func TestProjector_MirrorsLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	program := address.Namespace("projection-test")
	l := ledger.New(settlement.NewEngine(program), ledger.WithClock(func() time.Time { return now }))

	ms := store.NewMemoryStore()
	hub := &recorder{}
	l.OnCommit(projection.New(ms, hub, nil).Apply)

	admin := keypair(t, "admin")
	c := client.New(l, program, admin)
	quote := keypair(t, "usdc")
	if _, err := c.CreateMint(ctx, admin, quote, 6); err != nil {
		t.Fatal(err)
	}

	mc, err := c.CreateMarket(ctx, client.CreateMarketParams{
		IssuerName:        "Harbor Authority",
		MaturityTimestamp: now.AddDate(3, 0, 0).Unix(),
		CouponRateBps:     450,
		QuoteMint:         quote.Public(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.InitializeMarket(ctx, mc.MarketID, 1_500_000); err != nil {
		t.Fatal(err)
	}
	if _, err := c.IssueBonds(ctx, mc.MarketID, 100); err != nil {
		t.Fatal(err)
	}

	buyer := keypair(t, "buyer")
	if _, err := c.CreateTokenAccount(ctx, buyer, quote.Public()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.MintTo(ctx, admin, quote.Public(), buyer.Public(), 10_000_000); err != nil {
		t.Fatal(err)
	}
	r, err := c.Buy(ctx, buyer, mc.MarketID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Sell(ctx, buyer, mc.MarketID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetPaused(ctx, mc.MarketID, true); err != nil {
		t.Fatal(err)
	}

	m, err := ms.GetMarket(ctx, mc.MarketID.String())
	if err != nil {
		t.Fatalf("market not projected: %v", err)
	}
	if m.Status != model.StatusPaused {
		t.Errorf("status = %q, want paused", m.Status)
	}
	if !m.Price.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("price = %s, want 1.5", m.Price)
	}
	if !m.CouponRate.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("coupon rate = %s, want 4.5", m.CouponRate)
	}
	if m.BondsIssued != 100 || m.BondsBought != 4 || m.BondsSold != 1 {
		t.Errorf("counters = %d/%d/%d, want 100/4/1", m.BondsIssued, m.BondsBought, m.BondsSold)
	}
	if m.TransactionSignature != mc.Signature {
		t.Errorf("transaction signature = %q, want %q", m.TransactionSignature, mc.Signature)
	}

	trades, _ := ms.GetTradesByMarket(ctx, mc.MarketID.String())
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	buy := trades[0]
	if buy.Side != "buy" || buy.Amount != 4 || buy.Cost != 6_000_000 || buy.Signature != r.Signature {
		t.Errorf("unexpected buy record: %+v", buy)
	}
	if !buy.Notional.Equal(decimal.NewFromInt(6)) {
		t.Errorf("notional = %s, want 6", buy.Notional)
	}
	if buy.Trader != buyer.Public().String() {
		t.Errorf("trader = %s, want %s", buy.Trader, buyer.Public())
	}

	var types []string
	for _, msg := range hub.msgs {
		types = append(types, msg.Type)
	}
	want := []string{"market_created", "market_initialized", "bonds_issued", "trade", "trade", "market_status"}
	if len(types) != len(want) {
		t.Fatalf("feed = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("feed[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

// laggyStore widens the window between reading and rewriting a market row.
type laggyStore struct {
	store.Store
}

func (s laggyStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	time.Sleep(time.Millisecond)
	return s.Store.GetMarket(ctx, id)
}

func TestProjector_ConcurrentTrades(t *testing.T) {
	ctx := context.Background()
	program := address.Namespace("projection-concurrency")
	l := ledger.New(settlement.NewEngine(program))

	ms := store.NewMemoryStore()
	hub := &recorder{}
	l.OnCommit(projection.New(laggyStore{ms}, hub, nil).Apply)

	admin := keypair(t, "admin")
	c := client.New(l, program, admin)
	quote := keypair(t, "usdc")
	if _, err := c.CreateMint(ctx, admin, quote, 6); err != nil {
		t.Fatal(err)
	}

	const (
		buyers = 16
		each   = 20
	)
	mc, err := c.CreateMarket(ctx, client.CreateMarketParams{
		IssuerName:        "Delta Water",
		MaturityTimestamp: time.Now().AddDate(2, 0, 0).Unix(),
		CouponRateBps:     300,
		QuoteMint:         quote.Public(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.InitializeMarket(ctx, mc.MarketID, 1_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := c.IssueBonds(ctx, mc.MarketID, buyers*each); err != nil {
		t.Fatal(err)
	}

	traders := make([]*wallet.Keypair, buyers)
	for i := range traders {
		traders[i] = keypair(t, fmt.Sprintf("buyer-%d", i))
		if _, err := c.CreateTokenAccount(ctx, traders[i], quote.Public()); err != nil {
			t.Fatal(err)
		}
		if _, err := c.CreateTokenAccount(ctx, traders[i], mc.BondMint); err != nil {
			t.Fatal(err)
		}
		if _, err := c.MintTo(ctx, admin, quote.Public(), traders[i].Public(), each*1_000_000); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers*each)
	for _, trader := range traders {
		for range each {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Buy(ctx, trader, mc.MarketID, 1); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("buy: %v", err)
	}

	if _, err := c.SetPaused(ctx, mc.MarketID, true); err != nil {
		t.Fatal(err)
	}

	onChain, err := c.Market(ctx, mc.MarketID)
	if err != nil {
		t.Fatal(err)
	}
	m, err := ms.GetMarket(ctx, mc.MarketID.String())
	if err != nil {
		t.Fatal(err)
	}
	if m.BondsBought != onChain.BondsBought || m.BondsBought != buyers*each {
		t.Errorf("bonds bought = %d, ledger has %d, want %d", m.BondsBought, onChain.BondsBought, buyers*each)
	}
	if m.Status != model.StatusPaused {
		t.Errorf("status = %q, want paused", m.Status)
	}

	trades, err := ms.GetTradesByMarket(ctx, mc.MarketID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != buyers*each {
		t.Errorf("got %d trades, want %d", len(trades), buyers*each)
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for i := 1; i < len(hub.msgs); i++ {
		if hub.msgs[i].Slot < hub.msgs[i-1].Slot {
			t.Fatalf("feed out of order at %d: slot %d after %d", i, hub.msgs[i].Slot, hub.msgs[i-1].Slot)
		}
	}
}

func TestCouponRate(t *testing.T) {
	tests := []struct {
		bps  uint16
		want string
	}{
		{0, "0"},
		{1, "0.01"},
		{450, "4.5"},
		{10_000, "100"},
	}
	for _, tt := range tests {
		if got := projection.CouponRate(tt.bps); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("CouponRate(%d) = %s, want %s", tt.bps, got, tt.want)
		}
	}
}
