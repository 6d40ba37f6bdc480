package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/settlement"
)

// newCmdTrade builds the buy and sell commands. The signer is the trader.
func newCmdTrade(w io.Writer, rf *rootFlags, side settlement.Side) *cobra.Command {
	var (
		mf     marketFlags
		amount uint64
	)

	short := "Buy bonds from the market's vault at its fixed price"
	if side == settlement.SideSell {
		short = "Sell bonds back to the market's vault at its fixed price"
	}

	cmd := &cobra.Command{
		Use:   string(side),
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			market, err := mf.resolve(rf)
			if err != nil {
				return err
			}
			trader, err := rf.signer()
			if err != nil {
				return err
			}
			c, err := rf.client(nil)
			if err != nil {
				return err
			}

			var r *ledger.Receipt
			if side == settlement.SideBuy {
				r, err = c.Buy(cmd.Context(), trader, market, amount)
			} else {
				r, err = c.Sell(cmd.Context(), trader, market, amount)
			}
			if err != nil {
				return err
			}
			return printReceipt(w, r, map[string]any{"market": market.String(), "side": side, "amount": amount})
		},
	}
	mf.register(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 1, "Bonds to trade")
	return cmd
}

func newCmdFund(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mf     marketFlags
		amount uint64
	)

	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Deposit quote tokens from the signer into a market's quote vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			market, err := mf.resolve(rf)
			if err != nil {
				return err
			}
			funder, err := rf.signer()
			if err != nil {
				return err
			}
			c, err := rf.client(nil)
			if err != nil {
				return err
			}
			r, err := c.FundQuoteVault(cmd.Context(), funder, market, amount)
			if err != nil {
				return err
			}
			return printReceipt(w, r, map[string]any{"market": market.String(), "amount": amount})
		},
	}
	mf.register(cmd)
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Quote base units to deposit")
	cmd.MarkFlagRequired("amount")
	return cmd
}
