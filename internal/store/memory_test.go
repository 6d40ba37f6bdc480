package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/bond-market/internal/model"
)

func TestMemoryStore_Markets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &model.Market{ID: "older", Status: model.StatusUninitialized, CreatedAt: t0}
	newer := &model.Market{ID: "newer", Status: model.StatusUninitialized, CreatedAt: t0.Add(time.Hour)}
	for _, m := range []*model.Market{older, newer} {
		if err := s.CreateMarket(ctx, m); err != nil {
			t.Fatalf("CreateMarket(%s): %v", m.ID, err)
		}
	}

	if err := s.CreateMarket(ctx, older); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate CreateMarket = %v, want ErrConflict", err)
	}

	list, err := s.ListMarkets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "newer" {
		t.Errorf("ListMarkets order = %+v, want newest first", list)
	}

	upd := *older
	upd.Status = model.StatusInitialized
	upd.PricePerToken = 1_000_000
	upd.Price = decimal.NewFromInt(1)
	upd.IssuerName = "ignored"
	if err := s.UpdateMarketState(ctx, &upd); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMarket(ctx, "older")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusInitialized || got.PricePerToken != 1_000_000 {
		t.Errorf("state not updated: %+v", got)
	}
	if got.IssuerName != "" {
		t.Errorf("UpdateMarketState changed immutable field IssuerName to %q", got.IssuerName)
	}

	// Returned values are copies.
	got.Status = "tampered"
	again, _ := s.GetMarket(ctx, "older")
	if again.Status != model.StatusInitialized {
		t.Error("GetMarket returned shared state")
	}

	if _, err := s.GetMarket(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMarket(missing) = %v, want ErrNotFound", err)
	}
	if err := s.UpdateMarketState(ctx, &model.Market{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateMarketState(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Trades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	trades := []model.Trade{
		{ID: "1", MarketID: "m1", Trader: "alice", Side: "buy", Amount: 2},
		{ID: "2", MarketID: "m2", Trader: "alice", Side: "sell", Amount: 1},
		{ID: "3", MarketID: "m1", Trader: "bob", Side: "buy", Amount: 5},
	}
	for i := range trades {
		if err := s.InsertTrade(ctx, &trades[i]); err != nil {
			t.Fatal(err)
		}
	}

	m1, _ := s.GetTradesByMarket(ctx, "m1")
	if len(m1) != 2 || m1[0].ID != "1" || m1[1].ID != "3" {
		t.Errorf("GetTradesByMarket(m1) = %+v", m1)
	}
	alice, _ := s.GetTradesByTrader(ctx, "alice")
	if len(alice) != 2 {
		t.Errorf("GetTradesByTrader(alice) returned %d trades, want 2", len(alice))
	}
}
