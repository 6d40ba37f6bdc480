package address

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = Namespace("test-program")

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("market"), []byte("Acme Treasury")}

	id1, bump1, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)
	id2, bump2, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, id1.IsZero())
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	for _, name := range []string{"a", "Acme Treasury", "Municipal 2030", "x"} {
		id, _, err := FindProgramAddress([][]byte{[]byte("market"), []byte(name)}, testProgram)
		require.NoError(t, err)
		assert.False(t, id.IsOnCurve(), "derived address for %q lies on the curve", name)
	}
}

func TestFindProgramAddress_NonceMatchesCreate(t *testing.T) {
	seeds := [][]byte{[]byte("authority"), []byte("some market")}

	id, bump, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)

	recreated, err := CreateProgramAddress(append(seeds, []byte{bump}), testProgram)
	require.NoError(t, err)
	assert.Equal(t, id, recreated)

	// Every nonce above the chosen one must have been rejected as on-curve.
	for nonce := 255; nonce > int(bump); nonce-- {
		_, err := CreateProgramAddress(append(seeds, []byte{byte(nonce)}), testProgram)
		assert.ErrorIs(t, err, ErrOnCurve)
	}
}

func TestFindProgramAddress_DifferentSeedsDiffer(t *testing.T) {
	a, _, err := FindProgramAddress([][]byte{[]byte("market"), []byte("issuer-a")}, testProgram)
	require.NoError(t, err)
	b, _, err := FindProgramAddress([][]byte{[]byte("market"), []byte("issuer-b")}, testProgram)
	require.NoError(t, err)
	c, _, err := FindProgramAddress([][]byte{[]byte("market"), []byte("issuer-a")}, Namespace("other-program"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)
	_, err := CreateProgramAddress([][]byte{long}, testProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, testProgram)
	assert.ErrorIs(t, err, ErrTooManySeeds)

	// FindProgramAddress needs room for the nonce seed.
	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), testProgram)
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

func TestIsOnCurve_PublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id, err := FromBytes(pub)
	require.NoError(t, err)
	assert.True(t, id.IsOnCurve())
	assert.Equal(t, id, FromPublicKey(pub))
}

func TestParse_RoundTrip(t *testing.T) {
	id := Namespace("round-trip")

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "0OIl", "abc", Namespace("x").String() + "1111"} {
		_, err := Parse(s)
		assert.Error(t, err, "expected error for %q", s)
	}
}

func TestID_JSON(t *testing.T) {
	type wrapper struct {
		Market ID `json:"market"`
	}
	in := wrapper{Market: Namespace("json")}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"market":"`+in.Market.String()+`"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
