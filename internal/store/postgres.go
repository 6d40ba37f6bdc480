package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/bond-market/internal/model"
)

// PostgresStore implements Store on PostgreSQL. Token amounts are u64 and
// can exceed BIGINT, so they are stored as NUMERIC(20,0); decimals as
// NUMERIC. Both cross the wire as text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS markets (
	id                    TEXT PRIMARY KEY,
	issuer_name           TEXT NOT NULL,
	admin                 TEXT NOT NULL,
	bond_mint             TEXT NOT NULL,
	quote_mint            TEXT NOT NULL,
	quote_decimals        SMALLINT NOT NULL,
	coupon_rate_bps       INTEGER NOT NULL,
	coupon_rate           NUMERIC NOT NULL,
	maturity              TIMESTAMPTZ NOT NULL,
	price_per_token       NUMERIC(20,0) NOT NULL DEFAULT 0,
	price                 NUMERIC NOT NULL DEFAULT 0,
	status                TEXT NOT NULL,
	bonds_issued          NUMERIC(20,0) NOT NULL DEFAULT 0,
	bonds_bought          NUMERIC(20,0) NOT NULL DEFAULT 0,
	bonds_sold            NUMERIC(20,0) NOT NULL DEFAULT 0,
	transaction_signature TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id              TEXT PRIMARY KEY,
	market_id       TEXT NOT NULL REFERENCES markets(id),
	trader          TEXT NOT NULL,
	side            TEXT NOT NULL,
	amount          NUMERIC(20,0) NOT NULL,
	price_per_token NUMERIC(20,0) NOT NULL,
	cost            NUMERIC(20,0) NOT NULL,
	notional        NUMERIC NOT NULL,
	signature       TEXT NOT NULL,
	slot            NUMERIC(20,0) NOT NULL,
	timestamp       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_market_idx ON trades (market_id, timestamp);
CREATE INDEX IF NOT EXISTS trades_trader_idx ON trades (trader, timestamp);
`

// EnsureSchema creates the read-model tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const marketColumns = `id, issuer_name, admin, bond_mint, quote_mint, quote_decimals,
	coupon_rate_bps, coupon_rate::TEXT, maturity,
	price_per_token::TEXT, price::TEXT, status,
	bonds_issued::TEXT, bonds_bought::TEXT, bonds_sold::TEXT,
	transaction_signature, created_at`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, issuer_name, admin, bond_mint, quote_mint, quote_decimals,
		                      coupon_rate_bps, coupon_rate, maturity,
		                      price_per_token, price, status,
		                      bonds_issued, bonds_bought, bonds_sold,
		                      transaction_signature, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9,
		         $10::NUMERIC, $11::NUMERIC, $12,
		         $13::NUMERIC, $14::NUMERIC, $15::NUMERIC, $16, $17)`,
		m.ID, m.IssuerName, m.Admin, m.BondMint, m.QuoteMint, int16(m.QuoteDecimals),
		int32(m.CouponRateBps), m.CouponRate.String(), m.Maturity,
		u64(m.PricePerToken), m.Price.String(), m.Status,
		u64(m.BondsIssued), u64(m.BondsBought), u64(m.BondsSold),
		m.TransactionSignature, m.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: market %s", ErrConflict, m.ID)
	}
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarketState(ctx context.Context, m *model.Market) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET price_per_token = $2::NUMERIC, price = $3::NUMERIC, status = $4,
		     bonds_issued = $5::NUMERIC, bonds_bought = $6::NUMERIC, bonds_sold = $7::NUMERIC
		 WHERE id = $1`,
		m.ID, u64(m.PricePerToken), m.Price.String(), m.Status,
		u64(m.BondsIssued), u64(m.BondsBought), u64(m.BondsSold),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: market %s", ErrNotFound, m.ID)
	}
	return nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, market_id, trader, side, amount, price_per_token, cost, notional, signature, slot, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10::NUMERIC, $11)`,
		t.ID, t.MarketID, t.Trader, t.Side,
		u64(t.Amount), u64(t.PricePerToken), u64(t.Cost), t.Notional.String(),
		t.Signature, u64(t.Slot), t.Timestamp,
	)
	return err
}

const tradeColumns = `id, market_id, trader, side,
	amount::TEXT, price_per_token::TEXT, cost::TEXT, notional::TEXT,
	signature, slot::TEXT, timestamp`

func (s *PostgresStore) GetTradesByMarket(ctx context.Context, marketID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE market_id = $1 ORDER BY timestamp, slot`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE trader = $1 ORDER BY timestamp, slot`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// numericFields parses NUMERIC text columns into their destinations,
// reporting the first malformed value.
type numericFields struct {
	err error
}

func (n *numericFields) u64(dst *uint64, s string) {
	if n.err != nil {
		return
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		n.err = fmt.Errorf("parse %q: %w", s, err)
		return
	}
	*dst = v
}

func (n *numericFields) decimal(dst *decimal.Decimal, s string) {
	if n.err != nil {
		return
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		n.err = fmt.Errorf("parse %q: %w", s, err)
		return
	}
	*dst = v
}

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var quoteDecimals int16
	var couponBps int32
	var couponRate, price, pricePerToken, issued, bought, sold string
	if err := row.Scan(&m.ID, &m.IssuerName, &m.Admin, &m.BondMint, &m.QuoteMint, &quoteDecimals,
		&couponBps, &couponRate, &m.Maturity,
		&pricePerToken, &price, &m.Status,
		&issued, &bought, &sold,
		&m.TransactionSignature, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.QuoteDecimals = uint8(quoteDecimals)
	m.CouponRateBps = uint16(couponBps)

	var n numericFields
	n.decimal(&m.CouponRate, couponRate)
	n.decimal(&m.Price, price)
	n.u64(&m.PricePerToken, pricePerToken)
	n.u64(&m.BondsIssued, issued)
	n.u64(&m.BondsBought, bought)
	n.u64(&m.BondsSold, sold)
	if n.err != nil {
		return nil, fmt.Errorf("market %s: %w", m.ID, n.err)
	}
	return &m, nil
}

func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var amount, pricePerToken, cost, notional, slot string
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Trader, &t.Side,
			&amount, &pricePerToken, &cost, &notional,
			&t.Signature, &slot, &t.Timestamp); err != nil {
			return nil, err
		}

		var n numericFields
		n.u64(&t.Amount, amount)
		n.u64(&t.PricePerToken, pricePerToken)
		n.u64(&t.Cost, cost)
		n.u64(&t.Slot, slot)
		n.decimal(&t.Notional, notional)
		if n.err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ID, n.err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
