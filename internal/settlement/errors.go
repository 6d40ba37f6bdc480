package settlement

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was rejected. Every rejection carries a
// specific kind; callers may resubmit a corrected request but the engine
// never retries.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindInvalidArgument
	KindAlreadyInitialized
	KindNotInitialized
	KindInsufficientFunds
	KindInsufficientInventory
	KindArithmeticOverflow
	KindAccountMismatch
	KindAccountNotFound
	KindAccountInUse
	KindMarketPaused
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindUnauthorized:          "Unauthorized",
	KindInvalidArgument:       "InvalidArgument",
	KindAlreadyInitialized:    "AlreadyInitialized",
	KindNotInitialized:        "NotInitialized",
	KindInsufficientFunds:     "InsufficientFunds",
	KindInsufficientInventory: "InsufficientInventory",
	KindArithmeticOverflow:    "ArithmeticOverflow",
	KindAccountMismatch:       "AccountMismatch",
	KindAccountNotFound:       "AccountNotFound",
	KindAccountInUse:          "AccountInUse",
	KindMarketPaused:          "MarketPaused",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its value; unknown names yield
// KindUnknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// Error is a rejected settlement operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Msg == "":
		return "settlement: " + e.Kind.String()
	case e.Msg == "":
		return fmt.Sprintf("settlement: %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("settlement: %s: %s: %s", e.Op, e.Kind, e.Msg)
	}
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of op and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrAlreadyInitialized    = &Error{Kind: KindAlreadyInitialized}
	ErrNotInitialized        = &Error{Kind: KindNotInitialized}
	ErrInsufficientFunds     = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientInventory = &Error{Kind: KindInsufficientInventory}
	ErrArithmeticOverflow    = &Error{Kind: KindArithmeticOverflow}
	ErrAccountMismatch       = &Error{Kind: KindAccountMismatch}
	ErrAccountNotFound       = &Error{Kind: KindAccountNotFound}
	ErrAccountInUse          = &Error{Kind: KindAccountInUse}
	ErrMarketPaused          = &Error{Kind: KindMarketPaused}
)

// KindOf extracts the kind of a settlement error anywhere in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func fail(op string, kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
