package wallet

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("buy 2 bonds")
	sig := kp.Sign(msg)

	assert.True(t, Verify(kp.Public(), msg, sig))
	assert.False(t, Verify(kp.Public(), []byte("buy 3 bonds"), sig))

	other, err := Generate()
	require.NoError(t, err)
	assert.False(t, Verify(other.Public(), msg, sig))
	assert.False(t, Verify(kp.Public(), msg, sig[:10]))
}

func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.Public(), b.Public())

	_, err = FromSeed([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestSecretKeyJSON_RoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	data, err := kp.SecretKeyJSON()
	require.NoError(t, err)

	parsed, err := ParseSecretKeyJSON(string(data))
	require.NoError(t, err)
	assert.Equal(t, kp.Public(), parsed.Public())
}

func TestParseSecretKeyJSON_Invalid(t *testing.T) {
	for _, s := range []string{"", "not json", "[1,2,3]", "[256" + repeatZeros(63) + "]"} {
		_, err := ParseSecretKeyJSON(s)
		assert.ErrorIs(t, err, ErrInvalidSecretKey, "input %q", s)
	}
}

func TestFromSecretKey_MismatchedPublicHalf(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	secret := append([]byte(nil), kp.priv...)
	secret[63] ^= 0xff
	_, err = FromSecretKey(secret)
	assert.ErrorIs(t, err, ErrInvalidSecretKey)
}

func TestSaveLoadFile(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "admin.json")
	require.NoError(t, kp.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Public(), loaded.Public())
}

func repeatZeros(n int) string {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		b.WriteString(",0")
	}
	return b.String()
}
