package ledger

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/wallet"
)

const (
	maxSigners      = 8
	maxInstructions = 16
	maxAccounts     = 16
)

var (
	ErrEmptyTransaction = errors.New("ledger: transaction has no instructions")
	ErrMissingSignature = errors.New("ledger: missing signature")
	ErrInvalidSignature = errors.New("ledger: invalid signature")
	ErrTooLarge         = errors.New("ledger: transaction too large")
)

// Instruction invokes one operation of one program.
type Instruction struct {
	Program  address.ID   `json:"program"`
	Kind     string       `json:"kind"`
	Accounts []address.ID `json:"accounts"`
	Data     []byte       `json:"data"`
}

// Transaction is a signed, ordered list of instructions applied all or
// nothing. Signatures[i] is Signers[i]'s ed25519 signature over Message().
type Transaction struct {
	Nonce        uint64        `json:"nonce"`
	Signers      []address.ID  `json:"signers"`
	Instructions []Instruction `json:"instructions"`
	Signatures   [][]byte      `json:"signatures"`
}

// NewTransaction returns an unsigned transaction. Call Sign before
// submitting it.
func NewTransaction(nonce uint64, ixs ...Instruction) *Transaction {
	return &Transaction{Nonce: nonce, Instructions: ixs}
}

// Message is the canonical byte encoding every signer signs: the nonce, the
// signer list and each instruction's program, discriminator, accounts and
// data.
func (tx *Transaction) Message() []byte {
	var e encoder
	e.u64(tx.Nonce)
	e.u8(uint8(len(tx.Signers)))
	for _, s := range tx.Signers {
		e.id(s)
	}
	e.u8(uint8(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		e.id(ix.Program)
		d := Discriminator(ix.Kind)
		e.buf = append(e.buf, d[:]...)
		e.u8(uint8(len(ix.Accounts)))
		for _, a := range ix.Accounts {
			e.id(a)
		}
		e.bytes(ix.Data)
	}
	return e.buf
}

// Sign replaces the signer list with the keypairs' public keys, in order,
// and signs the resulting message with each of them.
func (tx *Transaction) Sign(keys ...*wallet.Keypair) {
	tx.Signers = make([]address.ID, len(keys))
	for i, k := range keys {
		tx.Signers[i] = k.Public()
	}
	msg := tx.Message()
	tx.Signatures = make([][]byte, len(keys))
	for i, k := range keys {
		tx.Signatures[i] = k.Sign(msg)
	}
}

// Verify checks the transaction's shape and every signature.
func (tx *Transaction) Verify() error {
	if len(tx.Instructions) == 0 {
		return ErrEmptyTransaction
	}
	if len(tx.Instructions) > maxInstructions || len(tx.Signers) > maxSigners {
		return ErrTooLarge
	}
	for _, ix := range tx.Instructions {
		if len(ix.Accounts) > maxAccounts {
			return fmt.Errorf("%w: %s names %d accounts", ErrTooLarge, ix.Kind, len(ix.Accounts))
		}
	}
	if len(tx.Signers) == 0 || len(tx.Signatures) != len(tx.Signers) {
		return fmt.Errorf("%w: %d signers, %d signatures", ErrMissingSignature, len(tx.Signers), len(tx.Signatures))
	}

	seen := make(map[address.ID]bool, len(tx.Signers))
	msg := tx.Message()
	for i, signer := range tx.Signers {
		if seen[signer] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidSignature, signer)
		}
		seen[signer] = true
		if !wallet.Verify(signer, msg, tx.Signatures[i]) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// ID is the base-58 form of the first signature. It identifies the
// transaction in receipts and logs.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}
