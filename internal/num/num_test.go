package num

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulU64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"zero", 0, math.MaxUint64, 0, nil},
		{"price times amount", 2, 1_000_000, 2_000_000, nil},
		{"boundary", math.MaxUint64 / 2, 2, math.MaxUint64 - 1, nil},
		{"max times one", math.MaxUint64, 1, math.MaxUint64, nil},
		{"overflow by one unit", math.MaxUint64/2 + 1, 2, 0, ErrOverflow},
		{"overflow large", math.MaxUint64, math.MaxUint64, 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulU64(tt.a, tt.b)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddU64(t *testing.T) {
	got, err := AddU64(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = AddU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSubU64(t *testing.T) {
	got, err := SubU64(1000, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(998), got)

	_, err = SubU64(1, 2)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestUIAmount(t *testing.T) {
	assert.Equal(t, "2", UIAmount(2_000_000, 6).String())
	assert.Equal(t, "0.000001", UIAmount(1, 6).String())
	assert.Equal(t, "18446744073709.551615", UIAmount(math.MaxUint64, 6).String())
}
