package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/client"
)

func newCmdCreateMarket(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		issuer    string
		maturity  string
		couponBps uint16
		quoteMint string
	)

	cmd := &cobra.Command{
		Use:   "create-market",
		Short: "Create a bond market; the signer becomes its admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			quote, err := parseID("quote-mint", quoteMint)
			if err != nil {
				return err
			}
			ts, err := parseMaturity(maturity)
			if err != nil {
				return err
			}
			admin, err := rf.signer()
			if err != nil {
				return err
			}
			c, err := rf.client(admin)
			if err != nil {
				return err
			}
			mc, err := c.CreateMarket(cmd.Context(), client.CreateMarketParams{
				IssuerName:        issuer,
				MaturityTimestamp: ts,
				CouponRateBps:     couponBps,
				QuoteMint:         quote,
			})
			if err != nil {
				return err
			}
			return printReceipt(w, mc.Receipt, mc)
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer name, at most 32 bytes")
	cmd.Flags().StringVar(&maturity, "maturity", "", "Maturity as unix seconds or RFC 3339")
	cmd.Flags().Uint16Var(&couponBps, "coupon-bps", 0, "Annual coupon in basis points (0-10000)")
	cmd.Flags().StringVar(&quoteMint, "quote-mint", "", "Mint used to pay for bonds")
	cmd.MarkFlagRequired("issuer")
	cmd.MarkFlagRequired("maturity")
	cmd.MarkFlagRequired("quote-mint")
	return cmd
}

func newCmdInitMarket(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mf    marketFlags
		price uint64
	)

	cmd := &cobra.Command{
		Use:   "init-market",
		Short: "Set the price and open the vaults of a created market",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(rf, &mf, func(c *client.Client, market address.ID) error {
				r, err := c.InitializeMarket(cmd.Context(), market, price)
				if err != nil {
					return err
				}
				return printReceipt(w, r, map[string]any{"market": market.String(), "price_per_token": price})
			})
		},
	}
	mf.register(cmd)
	cmd.Flags().Uint64Var(&price, "price", 1_000_000, "Quote base units per whole bond")
	return cmd
}

func newCmdIssue(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mf     marketFlags
		amount uint64
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint bonds into the market's bond vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(rf, &mf, func(c *client.Client, market address.ID) error {
				r, err := c.IssueBonds(cmd.Context(), market, amount)
				if err != nil {
					return err
				}
				return printReceipt(w, r, map[string]any{"market": market.String(), "amount": amount})
			})
		},
	}
	mf.register(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Bonds to issue")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func newCmdPause(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mf     marketFlags
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause trading on a market, or resume it with --resume",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(rf, &mf, func(c *client.Client, market address.ID) error {
				r, err := c.SetPaused(cmd.Context(), market, !resume)
				if err != nil {
					return err
				}
				return printReceipt(w, r, map[string]any{"market": market.String(), "paused": !resume})
			})
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume trading instead of pausing")
	return cmd
}

func withAdmin(rf *rootFlags, mf *marketFlags, fn func(*client.Client, address.ID) error) error {
	market, err := mf.resolve(rf)
	if err != nil {
		return err
	}
	admin, err := rf.signer()
	if err != nil {
		return err
	}
	c, err := rf.client(admin)
	if err != nil {
		return err
	}
	return fn(c, market)
}

func parseMaturity(s string) (int64, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("--maturity: want unix seconds or RFC 3339, got %q", s)
	}
	return t.Unix(), nil
}
