package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/client"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/wallet"
)

// rootFlags are shared by every subcommand. Each may also come from a
// BONDCTL_* environment variable.
type rootFlags struct {
	v *viper.Viper
}

func (rf *rootFlags) server() string  { return rf.v.GetString("server") }
func (rf *rootFlags) keypath() string { return rf.v.GetString("keypair") }

func (rf *rootFlags) program() (address.ID, error) {
	s := rf.v.GetString("program")
	if s == "" {
		return settlement.DefaultProgramID, nil
	}
	id, err := address.Parse(s)
	if err != nil {
		return address.Zero, fmt.Errorf("--program: %w", err)
	}
	return id, nil
}

// signer loads the keypair named by --keypair.
func (rf *rootFlags) signer() (*wallet.Keypair, error) {
	path := rf.keypath()
	if path == "" {
		return nil, errors.New("--keypair must be specified")
	}
	kp, err := wallet.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return kp, nil
}

// client returns a client for the configured server. When admin is set the
// signer keypair doubles as the client's admin identity.
func (rf *rootFlags) client(admin *wallet.Keypair) (*client.Client, error) {
	program, err := rf.program()
	if err != nil {
		return nil, err
	}
	return client.New(client.NewHTTPSubmitter(rf.server(), nil), program, admin), nil
}

func newRootCmd(w io.Writer) *cobra.Command {
	rf := &rootFlags{v: viper.New()}
	rf.v.SetEnvPrefix("BONDCTL")
	rf.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rf.v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bondctl",
		Short:         "Create, fund and trade bond markets",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if rf.v.GetBool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("server", "http://localhost:8080", "Base URL of the bond market server")
	pf.String("program", "", "Settlement program id (defaults to the built-in program)")
	pf.String("keypair", "id.json", "Path to the signing keypair (JSON array of 64 bytes)")
	pf.BoolP("verbose", "v", false, "Log debug output")
	rf.v.BindPFlags(pf)

	cmd.AddCommand(
		newCmdKeygen(w, rf),
		newCmdDerive(w, rf),
		newCmdCreateMint(w, rf),
		newCmdCreateAccount(w, rf),
		newCmdMintTo(w, rf),
		newCmdCreateMarket(w, rf),
		newCmdInitMarket(w, rf),
		newCmdIssue(w, rf),
		newCmdFund(w, rf),
		newCmdTrade(w, rf, settlement.SideBuy),
		newCmdTrade(w, rf, settlement.SideSell),
		newCmdPause(w, rf),
	)
	return cmd
}

// marketFlags selects a market either by id or by issuer name.
type marketFlags struct {
	Market string
	Issuer string
}

func (f *marketFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Market, "market", "m", "", "Market id")
	cmd.Flags().StringVar(&f.Issuer, "issuer", "", "Issuer name; the market id is derived from it")
	cmd.MarkFlagsMutuallyExclusive("market", "issuer")
	cmd.MarkFlagsOneRequired("market", "issuer")
}

func (f *marketFlags) resolve(rf *rootFlags) (address.ID, error) {
	if f.Market != "" {
		id, err := address.Parse(f.Market)
		if err != nil {
			return address.Zero, fmt.Errorf("--market: %w", err)
		}
		return id, nil
	}
	program, err := rf.program()
	if err != nil {
		return address.Zero, err
	}
	addrs, err := settlement.DeriveMarket(program, f.Issuer)
	if err != nil {
		return address.Zero, fmt.Errorf("--issuer: %w", err)
	}
	return addrs.Market, nil
}

func parseID(flag, s string) (address.ID, error) {
	if s == "" {
		return address.Zero, fmt.Errorf("--%s must be specified", flag)
	}
	id, err := address.Parse(s)
	if err != nil {
		return address.Zero, fmt.Errorf("--%s: %w", flag, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// receiptView is the printed form of a committed transaction.
type receiptView struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	Extra     any      `json:"result,omitempty"`
	Signers   []string `json:"signers,omitempty"`
}

func printReceipt(w io.Writer, r *ledger.Receipt, extra any) error {
	view := receiptView{Signature: r.Signature, Slot: r.Slot, Extra: extra}
	for _, s := range r.Signers {
		view.Signers = append(view.Signers, s.String())
	}
	slog.Debug("transaction committed", "signature", r.Signature, "slot", r.Slot)
	return printJSON(w, view)
}
