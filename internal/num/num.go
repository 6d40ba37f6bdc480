// Package num provides overflow-checked arithmetic on token amounts.
//
// Token amounts are u64 smallest units. Every product and sum is computed in
// 256 bits and narrowed back, so an operation either yields the exact result
// or reports overflow. Nothing wraps.
package num

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow  = errors.New("num: result exceeds uint64")
	ErrUnderflow = errors.New("num: result below zero")
)

// MulU64 returns a*b or ErrOverflow.
func MulU64(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// AddU64 returns a+b or ErrOverflow.
func AddU64(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// SubU64 returns a-b or ErrUnderflow.
func SubU64(a, b uint64) (uint64, error) {
	z, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, ErrUnderflow
	}
	return z.Uint64(), nil
}

// UIAmount renders a smallest-unit amount as a decimal in whole tokens.
func UIAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}
