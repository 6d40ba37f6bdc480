package settlement

import "github.com/atmx/bond-market/internal/address"

// Capability names what an operation needs from its signers.
type Capability uint8

const (
	// AdminOnly requires the market's administrator.
	AdminOnly Capability = iota + 1

	// CounterpartySigner requires the owner of the account being debited.
	CounterpartySigner
)

func (c Capability) String() string {
	switch c {
	case AdminOnly:
		return "AdminOnly"
	case CounterpartySigner:
		return "CounterpartySigner"
	default:
		return "Capability(?)"
	}
}

// Signers is the set of identities whose signatures the ledger verified
// for the current transaction.
type Signers []address.ID

// Has reports whether id signed.
func (s Signers) Has(id address.ID) bool {
	if id.IsZero() {
		return false
	}
	for _, signer := range s {
		if signer == id {
			return true
		}
	}
	return false
}

// Gate checks signatures before any settlement logic runs.
type Gate struct{}

// Authorize succeeds only if principal is among signers. For AdminOnly the
// principal is the market admin; for CounterpartySigner it is the owner of
// the source token account.
func (Gate) Authorize(op string, c Capability, signers Signers, principal address.ID) error {
	switch c {
	case AdminOnly:
		if !signers.Has(principal) {
			return fail(op, KindUnauthorized, "admin %s did not sign", principal)
		}
	case CounterpartySigner:
		if !signers.Has(principal) {
			return fail(op, KindUnauthorized, "source account owner %s did not sign", principal)
		}
	default:
		return fail(op, KindUnauthorized, "unknown capability %s", c)
	}
	return nil
}
