package token

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/bond-market/internal/address"
)

var (
	usdc  = address.Namespace("usdc")
	bond  = address.Namespace("bond")
	alice = address.Namespace("alice")
	bob   = address.Namespace("bob")
)

func account(name string, mint, owner address.ID, amount uint64) *Account {
	return &Account{ID: address.Namespace(name), Mint: mint, Owner: owner, Amount: amount}
}

func TestTransfer(t *testing.T) {
	from := account("a", usdc, alice, 100)
	to := account("b", usdc, bob, 5)

	require.NoError(t, Transfer(from, to, 40))
	assert.Equal(t, uint64(60), from.Amount)
	assert.Equal(t, uint64(45), to.Amount)
}

func TestTransfer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		from    *Account
		to      *Account
		amount  uint64
		wantErr error
	}{
		{"insufficient", account("a", usdc, alice, 10), account("b", usdc, bob, 0), 11, ErrInsufficientFunds},
		{"mint mismatch", account("a", usdc, alice, 10), account("b", bond, bob, 0), 1, ErrMintMismatch},
		{"same account", account("a", usdc, alice, 10), account("a", usdc, alice, 10), 1, ErrSameAccount},
		{"credit overflow", account("a", usdc, alice, 10), account("b", usdc, bob, math.MaxUint64), 1, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromBefore, toBefore := *tt.from, *tt.to

			err := Transfer(tt.from, tt.to, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, fromBefore, *tt.from, "source must be untouched")
			assert.Equal(t, toBefore, *tt.to, "destination must be untouched")
		})
	}
}

func TestMintTo(t *testing.T) {
	m := &Mint{ID: bond, Authority: alice, Decimals: 6}
	vault := account("vault", bond, bob, 0)

	require.NoError(t, MintTo(m, vault, 1000))
	assert.Equal(t, uint64(1000), m.Supply)
	assert.Equal(t, uint64(1000), vault.Amount)

	err := MintTo(m, account("x", usdc, bob, 0), 1)
	assert.ErrorIs(t, err, ErrMintMismatch)

	m.Supply = math.MaxUint64
	err = MintTo(m, vault, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(1000), vault.Amount)
}

func TestAssociatedAddress(t *testing.T) {
	a1, err := AssociatedAddress(alice, usdc)
	require.NoError(t, err)
	a2, err := AssociatedAddress(alice, usdc)
	require.NoError(t, err)
	b, err := AssociatedAddress(bob, usdc)
	require.NoError(t, err)
	c, err := AssociatedAddress(alice, bond)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.NotEqual(t, a1, c)
	assert.False(t, a1.IsOnCurve())
}
