// Package api provides the HTTP handlers of the bond market server: market
// creation through the injected admin identity, read-model queries,
// signed-transaction submission and raw account reads.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/client"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/metrics"
	"github.com/atmx/bond-market/internal/model"
	"github.com/atmx/bond-market/internal/projection"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/store"
)

// Service handles HTTP requests. The ledger serialises execution, so the
// handlers hold no locks of their own.
type Service struct {
	ledger   *ledger.Ledger
	client   *client.Client
	store    store.Store
	validate *validator.Validate
}

// NewService creates the HTTP service. c must carry the admin identity
// used for POST /markets.
func NewService(l *ledger.Ledger, c *client.Client, st store.Store) *Service {
	return &Service{
		ledger:   l,
		client:   c,
		store:    st,
		validate: newValidator(),
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation.
type CreateMarketRequest struct {
	IssuerName        string  `json:"issuerName" validate:"required,seed"`
	MaturityTimestamp int64   `json:"maturityTimestamp" validate:"required,gt=0"`
	CouponRateBps     *uint16 `json:"couponRateBps" validate:"required,lte=10000"`
	QuoteMint         string  `json:"quoteMint" validate:"required,address"`
}

// CreateMarketResponse is returned with 201 Created. Market is the persisted
// read-model row.
type CreateMarketResponse struct {
	Message              string        `json:"message"`
	Market               *model.Market `json:"market"`
	BondMint             string        `json:"bondMint"`
	TransactionSignature string        `json:"transactionSignature"`
}

// EventView is one settlement event in a receipt response.
type EventView struct {
	Name string           `json:"name"`
	Data settlement.Event `json:"data"`
}

// ReceiptResponse is the JSON body returned from POST /transactions.
type ReceiptResponse struct {
	*ledger.Receipt
	Events []EventView `json:"events"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, "invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		details, missing := describe(err)
		msg := "invalid field values"
		if missing {
			msg = "Missing required fields."
		}
		writeError(w, msg, details, http.StatusBadRequest)
		return
	}
	quoteMint, _ := address.Parse(req.QuoteMint)

	ctx := r.Context()
	mc, err := s.client.CreateMarket(ctx, client.CreateMarketParams{
		IssuerName:        req.IssuerName,
		MaturityTimestamp: req.MaturityTimestamp,
		CouponRateBps:     *req.CouponRateBps,
		QuoteMint:         quoteMint,
	})
	if err != nil {
		reason := ledger.Reason(err)
		metrics.SettlementRejections.WithLabelValues(reason).Inc()
		slog.Error("create market failed", "issuer", req.IssuerName, "kind", reason, "err", err)
		writeError(w, "Failed to create market.", reason, http.StatusInternalServerError)
		return
	}

	// The projector normally wrote the row during commit; fill it in if no
	// projector is attached.
	record, err := s.store.GetMarket(ctx, mc.MarketID.String())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("read market failed", "id", mc.MarketID, "err", err)
		}
		record = &model.Market{
			ID:                   mc.MarketID.String(),
			IssuerName:           req.IssuerName,
			Admin:                s.client.Admin().String(),
			BondMint:             mc.BondMint.String(),
			QuoteMint:            req.QuoteMint,
			CouponRateBps:        *req.CouponRateBps,
			CouponRate:           projection.CouponRate(*req.CouponRateBps),
			Maturity:             time.Unix(req.MaturityTimestamp, 0).UTC(),
			Status:               model.StatusUninitialized,
			TransactionSignature: mc.Signature,
			CreatedAt:            mc.Receipt.Time,
		}
		if mint, err := s.client.Mint(ctx, quoteMint); err == nil {
			record.QuoteDecimals = mint.Decimals
		}
		if errors.Is(err, store.ErrNotFound) {
			if err := s.store.CreateMarket(ctx, record); err != nil && !errors.Is(err, store.ErrConflict) {
				slog.Error("persist market failed", "id", record.ID, "err", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateMarketResponse{
		Message:              "Market created successfully.",
		Market:               record,
		BondMint:             mc.BondMint.String(),
		TransactionSignature: mc.Signature,
	})
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", "", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// ListMarkets handles GET /api/v1/markets
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", "", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// GetMarketTrades handles GET /api/v1/markets/{marketID}/trades
func (s *Service) GetMarketTrades(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	trades, err := s.store.GetTradesByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to get market trades", "", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetTraderTrades handles GET /api/v1/traders/{trader}/trades
func (s *Service) GetTraderTrades(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")

	trades, err := s.store.GetTradesByTrader(r.Context(), trader)
	if err != nil {
		writeError(w, "failed to get trader trades", "", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// SubmitTransaction handles POST /api/v1/transactions
// Executes a client-signed transaction and returns its receipt.
func (s *Service) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		writeError(w, "invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	receipt, err := s.ledger.Submit(r.Context(), &tx)
	if err != nil {
		reason := ledger.Reason(err)
		metrics.SettlementRejections.WithLabelValues(reason).Inc()
		writeError(w, err.Error(), reason, http.StatusUnprocessableEntity)
		return
	}
	elapsed := time.Since(start).Seconds()

	resp := ReceiptResponse{Receipt: receipt, Events: make([]EventView, 0, len(receipt.Events))}
	for _, ev := range receipt.Events {
		resp.Events = append(resp.Events, EventView{Name: ev.EventName(), Data: ev})
		if trade, ok := ev.(settlement.TradeEvent); ok {
			metrics.TradeLatency.WithLabelValues(string(trade.Side)).Observe(elapsed)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := address.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, "invalid account id", err.Error(), http.StatusBadRequest)
		return
	}

	info, err := s.ledger.Account(r.Context(), id)
	if err != nil {
		writeError(w, "account not found", ledger.Reason(err), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// writeError writes a JSON error response. details carries the rejection
// kind or validation failures and is omitted when empty.
func writeError(w http.ResponseWriter, message, details string, status int) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
