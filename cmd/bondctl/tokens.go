package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/atmx/bond-market/internal/wallet"
)

func newCmdCreateMint(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mintPath string
		decimals uint8
	)

	cmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Create a token mint with the signer as its authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			authority, err := rf.signer()
			if err != nil {
				return err
			}
			mint, err := loadOrCreateKeypair(mintPath)
			if err != nil {
				return err
			}
			c, err := rf.client(nil)
			if err != nil {
				return err
			}
			r, err := c.CreateMint(cmd.Context(), authority, mint, decimals)
			if err != nil {
				return err
			}
			return printReceipt(w, r, map[string]any{"mint": mint.Public().String(), "decimals": decimals})
		},
	}
	cmd.Flags().StringVar(&mintPath, "mint-keypair", "", "Keypair file for the mint address; generated and saved there if missing")
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "Decimal places of the token")
	cmd.MarkFlagRequired("mint-keypair")
	return cmd
}

func newCmdCreateAccount(w io.Writer, rf *rootFlags) *cobra.Command {
	var mint string

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Open the signer's associated token account for a mint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintID, err := parseID("mint", mint)
			if err != nil {
				return err
			}
			owner, err := rf.signer()
			if err != nil {
				return err
			}
			c, err := rf.client(nil)
			if err != nil {
				return err
			}
			id, err := c.CreateTokenAccount(cmd.Context(), owner, mintID)
			if err != nil {
				return err
			}
			return printJSON(w, map[string]string{"account": id.String(), "owner": owner.Public().String(), "mint": mint})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "Mint id")
	return cmd
}

func newCmdMintTo(w io.Writer, rf *rootFlags) *cobra.Command {
	var (
		mint   string
		to     string
		amount uint64
	)

	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Mint tokens into an owner's associated account (signer is the mint authority)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintID, err := parseID("mint", mint)
			if err != nil {
				return err
			}
			owner, err := parseID("to", to)
			if err != nil {
				return err
			}
			authority, err := rf.signer()
			if err != nil {
				return err
			}
			c, err := rf.client(nil)
			if err != nil {
				return err
			}
			r, err := c.MintTo(cmd.Context(), authority, mintID, owner, amount)
			if err != nil {
				return err
			}
			return printReceipt(w, r, map[string]any{"mint": mint, "owner": to, "amount": amount})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "Mint id")
	cmd.Flags().StringVar(&to, "to", "", "Owner whose associated account receives the tokens")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "Amount in base units")
	return cmd
}

// loadOrCreateKeypair reads path, or generates a keypair and writes it there
// when the file does not exist yet.
func loadOrCreateKeypair(path string) (*wallet.Keypair, error) {
	kp, err := wallet.LoadFile(path)
	if err == nil {
		return kp, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, err
	}
	kp, err = wallet.Generate()
	if err != nil {
		return nil, err
	}
	return kp, kp.SaveFile(path)
}
