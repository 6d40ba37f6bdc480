// Package projection mirrors committed ledger receipts into the read model
// and the live event feed. It never writes to the ledger.
package projection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/metrics"
	"github.com/atmx/bond-market/internal/model"
	"github.com/atmx/bond-market/internal/num"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/store"
)

// Message is one entry of the live feed.
type Message struct {
	Type          string `json:"type"`
	MarketID      string `json:"market_id"`
	Status        string `json:"status,omitempty"`
	Trader        string `json:"trader,omitempty"`
	Side          string `json:"side,omitempty"`
	Amount        uint64 `json:"amount,omitempty"`
	PricePerToken uint64 `json:"price_per_token,omitempty"`
	Cost          uint64 `json:"cost,omitempty"`
	Price         string `json:"price,omitempty"`
	Signature     string `json:"signature"`
	Slot          uint64 `json:"slot"`
}

// Broadcaster delivers feed messages. It must not block.
type Broadcaster interface {
	Broadcast(Message)
}

// Projector applies receipts to a store. Register Apply with
// ledger.OnCommit, which hands receipts over in slot order.
type Projector struct {
	store store.Store
	hub   Broadcaster
	log   *slog.Logger

	// mu makes each read-modify-write of a market row atomic with respect
	// to other receipts.
	mu sync.Mutex
}

// New returns a Projector. hub may be nil.
func New(st store.Store, hub Broadcaster, log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{store: st, hub: hub, log: log}
}

// Apply projects every event of r in order. Market counters are written
// from the totals carried by each event, not accumulated, so a failed write
// is corrected by the next event for the same market. Failures are logged;
// the ledger stays authoritative.
func (p *Projector) Apply(r *ledger.Receipt) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ev := range r.Events {
		if err := p.apply(ctx, r, ev); err != nil {
			p.log.Error("projection failed",
				"tx", r.Signature,
				"event", ev.EventName(),
				"error", err,
			)
		}
	}
}

func (p *Projector) apply(ctx context.Context, r *ledger.Receipt, ev settlement.Event) error {
	switch ev := ev.(type) {
	case settlement.MarketCreated:
		m := &model.Market{
			ID:                   ev.Market.String(),
			IssuerName:           ev.IssuerName,
			Admin:                ev.Admin.String(),
			BondMint:             ev.BondMint.String(),
			QuoteMint:            ev.QuoteMint.String(),
			QuoteDecimals:        ev.QuoteDecimals,
			CouponRateBps:        ev.CouponRateBps,
			CouponRate:           CouponRate(ev.CouponRateBps),
			Maturity:             time.Unix(ev.MaturityTimestamp, 0).UTC(),
			Price:                decimal.Zero,
			Status:               model.StatusUninitialized,
			TransactionSignature: r.Signature,
			CreatedAt:            r.Time,
		}
		if err := p.store.CreateMarket(ctx, m); err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
		metrics.MarketsTotal.WithLabelValues(model.StatusUninitialized).Inc()
		p.log.Info("market created",
			"id", m.ID,
			"issuer", m.IssuerName,
			"coupon_bps", m.CouponRateBps,
			"maturity", m.Maturity,
		)
		p.broadcast(Message{Type: "market_created", MarketID: m.ID, Status: m.Status}, r)

	case settlement.MarketInitialized:
		m, err := p.store.GetMarket(ctx, ev.Market.String())
		if err != nil {
			return err
		}
		m.PricePerToken = ev.PricePerToken
		m.Price = num.UIAmount(ev.PricePerToken, m.QuoteDecimals)
		m.Status = model.StatusInitialized
		if err := p.store.UpdateMarketState(ctx, m); err != nil {
			return err
		}
		metrics.MarketsTotal.WithLabelValues(model.StatusInitialized).Inc()
		p.log.Info("market initialized", "id", m.ID, "price_per_token", m.PricePerToken, "price", m.Price.String())
		p.broadcast(Message{Type: "market_initialized", MarketID: m.ID, Status: m.Status, PricePerToken: m.PricePerToken, Price: m.Price.String()}, r)

	case settlement.BondsIssued:
		m, err := p.store.GetMarket(ctx, ev.Market.String())
		if err != nil {
			return err
		}
		m.BondsIssued = ev.TotalIssued
		if err := p.store.UpdateMarketState(ctx, m); err != nil {
			return err
		}
		p.broadcast(Message{Type: "bonds_issued", MarketID: m.ID, Amount: ev.Amount}, r)

	case settlement.MarketPauseChanged:
		m, err := p.store.GetMarket(ctx, ev.Market.String())
		if err != nil {
			return err
		}
		m.Status = model.StatusInitialized
		if ev.Paused {
			m.Status = model.StatusPaused
		}
		if err := p.store.UpdateMarketState(ctx, m); err != nil {
			return err
		}
		p.log.Info("market pause changed", "id", m.ID, "paused", ev.Paused)
		p.broadcast(Message{Type: "market_status", MarketID: m.ID, Status: m.Status}, r)

	case settlement.TradeEvent:
		return p.applyTrade(ctx, r, ev)
	}
	return nil
}

func (p *Projector) applyTrade(ctx context.Context, r *ledger.Receipt, ev settlement.TradeEvent) error {
	marketID := ev.Market.String()
	m, err := p.store.GetMarket(ctx, marketID)
	if err != nil {
		return err
	}

	t := &model.Trade{
		ID:            uuid.New().String(),
		MarketID:      marketID,
		Trader:        ev.Trader.String(),
		Side:          string(ev.Side),
		Amount:        ev.Amount,
		PricePerToken: ev.PricePerToken,
		Cost:          ev.Cost,
		Notional:      num.UIAmount(ev.Cost, m.QuoteDecimals),
		Signature:     r.Signature,
		Slot:          r.Slot,
		Timestamp:     r.Time,
	}
	if err := p.store.InsertTrade(ctx, t); err != nil {
		return err
	}

	m.BondsBought = ev.BondsBought
	m.BondsSold = ev.BondsSold
	if err := p.store.UpdateMarketState(ctx, m); err != nil {
		return err
	}

	metrics.TradesTotal.WithLabelValues(t.Side).Inc()
	metrics.MarketVolume.WithLabelValues(marketID, t.Side).Add(float64(ev.Amount))

	p.log.Info("trade settled",
		"trade_id", t.ID,
		"market", marketID,
		"trader", t.Trader,
		"side", t.Side,
		"amount", t.Amount,
		"cost", t.Cost,
		"tx", r.Signature,
	)

	p.broadcast(Message{
		Type:          "trade",
		MarketID:      marketID,
		Trader:        t.Trader,
		Side:          t.Side,
		Amount:        t.Amount,
		PricePerToken: t.PricePerToken,
		Cost:          t.Cost,
		Price:         m.Price.String(),
	}, r)
	return nil
}

func (p *Projector) broadcast(msg Message, r *ledger.Receipt) {
	if p.hub == nil {
		return
	}
	msg.Signature = r.Signature
	msg.Slot = r.Slot
	p.hub.Broadcast(msg)
}

// CouponRate converts basis points to a percentage: 450 -> 4.5.
func CouponRate(bps uint16) decimal.Decimal {
	return decimal.New(int64(bps), -2)
}
