package settlement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", fail("buy", KindInsufficientFunds, "have %d", 3))

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, errors.Is(err, ErrInsufficientInventory))
	assert.Equal(t, KindInsufficientFunds, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "settlement: buy: InsufficientFunds: have 3", errors.Unwrap(err).Error())
}

func TestParseKind(t *testing.T) {
	for k := KindUnauthorized; k <= KindMarketPaused; k++ {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("NoSuchKind"))
}
