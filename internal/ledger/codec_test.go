package ledger

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/bond-market/internal/address"
)

func TestDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("global:buy"))
	d := Discriminator(KindBuy)
	assert.Equal(t, sum[:8], d[:])
	assert.NotEqual(t, Discriminator(KindBuy), Discriminator(KindSell))
}

func TestMessage_CoversAmountAndAccounts(t *testing.T) {
	acct := []address.ID{address.Namespace("a"), address.Namespace("b"), address.Namespace("c")}
	base := NewTransaction(1, Transfer(acct[0], acct[1], acct[2], 10))

	assert.Equal(t, base.Message(), NewTransaction(1, Transfer(acct[0], acct[1], acct[2], 10)).Message())
	assert.NotEqual(t, base.Message(), NewTransaction(1, Transfer(acct[0], acct[1], acct[2], 11)).Message())
	assert.NotEqual(t, base.Message(), NewTransaction(1, Transfer(acct[1], acct[0], acct[2], 10)).Message())
	assert.NotEqual(t, base.Message(), NewTransaction(2, Transfer(acct[0], acct[1], acct[2], 10)).Message())
}

func TestDecoder_Strict(t *testing.T) {
	var e encoder
	e.str("Acme")
	e.i64(-5)
	e.boolean(true)

	d := decoder{buf: e.buf}
	assert.Equal(t, "Acme", d.str())
	assert.Equal(t, int64(-5), d.i64())
	assert.True(t, d.boolean())
	require.NoError(t, d.finish())

	d = decoder{buf: append(e.buf, 0)}
	d.str()
	d.i64()
	d.boolean()
	assert.ErrorIs(t, d.finish(), ErrMalformed)

	d = decoder{buf: []byte{2}}
	d.boolean()
	assert.ErrorIs(t, d.finish(), ErrMalformed)

	d = decoder{buf: []byte{0xff, 0xff, 0xff, 0xff}}
	d.str()
	assert.ErrorIs(t, d.finish(), ErrMalformed)
}

func TestReasonError_RoundTrip(t *testing.T) {
	for _, err := range []error{ErrDuplicate, ErrInvalidSignature, ErrMalformed} {
		assert.ErrorIs(t, ReasonError(Reason(err)), err)
	}
	assert.Nil(t, ReasonError("NoSuchReason"))
}
