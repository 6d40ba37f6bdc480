package ledger

import (
	"errors"

	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
)

var (
	ErrDuplicate          = errors.New("ledger: transaction already processed")
	ErrUnknownProgram     = errors.New("ledger: unknown program")
	ErrUnknownInstruction = errors.New("ledger: unknown instruction")
	ErrAccountNotFound    = errors.New("ledger: account not found")
	ErrAccountInUse       = errors.New("ledger: account already in use")
	ErrAddressMismatch    = errors.New("ledger: account is not at its canonical address")
	ErrUnauthorized       = errors.New("ledger: required signer missing")
)

var reasons = []struct {
	err  error
	name string
}{
	{ErrEmptyTransaction, "EmptyTransaction"},
	{ErrMissingSignature, "MissingSignature"},
	{ErrInvalidSignature, "InvalidSignature"},
	{ErrTooLarge, "TransactionTooLarge"},
	{ErrMalformed, "MalformedInstruction"},
	{ErrDuplicate, "DuplicateTransaction"},
	{ErrUnknownProgram, "UnknownProgram"},
	{ErrUnknownInstruction, "UnknownInstruction"},
	{ErrAccountNotFound, settlement.KindAccountNotFound.String()},
	{ErrAccountInUse, settlement.KindAccountInUse.String()},
	{ErrAddressMismatch, settlement.KindAccountMismatch.String()},
	{ErrUnauthorized, settlement.KindUnauthorized.String()},
	{token.ErrInsufficientFunds, settlement.KindInsufficientFunds.String()},
	{token.ErrOverflow, settlement.KindArithmeticOverflow.String()},
	{token.ErrMintMismatch, settlement.KindAccountMismatch.String()},
	{token.ErrSameAccount, settlement.KindInvalidArgument.String()},
}

// Reason names why a submission failed. Settlement rejections yield their
// kind; token program and ledger failures map onto the closest kind or a
// ledger-specific name. Unrecognised errors yield "Unknown".
func Reason(err error) string {
	if k := settlement.KindOf(err); k != settlement.KindUnknown {
		return k.String()
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return settlement.KindUnknown.String()
}

// ReasonError maps a name produced by Reason back to an error that matches
// the source error with errors.Is. It returns nil for unknown names.
func ReasonError(name string) error {
	if k := settlement.ParseKind(name); k != settlement.KindUnknown {
		return &settlement.Error{Kind: k}
	}
	for _, r := range reasons {
		if r.name == name {
			return r.err
		}
	}
	return nil
}
