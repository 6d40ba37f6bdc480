package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/wallet"
)

func newCmdKeygen(w io.Writer, rf *rootFlags) *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if out == "" {
				out = rf.keypath()
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite", out)
			}
			kp, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := kp.SaveFile(out); err != nil {
				return err
			}
			return printJSON(w, map[string]string{"public_key": kp.Public().String(), "path": out})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (defaults to --keypair)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// newCmdDerive prints the addresses a market would have. It works offline.
func newCmdDerive(w io.Writer, rf *rootFlags) *cobra.Command {
	var issuer string

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the derived addresses of an issuer's market",
		RunE: func(_ *cobra.Command, _ []string) error {
			program, err := rf.program()
			if err != nil {
				return err
			}
			addrs, err := settlement.DeriveMarket(program, issuer)
			if err != nil {
				return err
			}
			return printJSON(w, map[string]any{
				"program":        program.String(),
				"market":         addrs.Market.String(),
				"market_bump":    addrs.MarketBump,
				"authority":      addrs.Authority.String(),
				"authority_bump": addrs.AuthorityBump,
				"bond_mint":      addrs.BondMint.String(),
				"vault_bond":     addrs.VaultBond.String(),
				"vault_quote":    addrs.VaultQuote.String(),
			})
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer name")
	cmd.MarkFlagRequired("issuer")
	return cmd
}
