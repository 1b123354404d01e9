/*
This file contains common utility functions for converting between raw on-chain token amounts
and human decimal amounts, and between human and raw prices.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// RawToHuman converts a raw token amount to a decimal amount with the given precision.
func RawToHuman(amount sdkmath.Int, precision int) (decimal.Decimal, error) {
	if err := checkPrecision(precision); err != nil {
		return decimal.Zero, err
	}
	if amount.IsNil() {
		return decimal.Zero, ErrAmountNil
	}
	if amount.IsNegative() {
		return decimal.Zero, ErrAmountNegative
	}
	return decimal.NewFromBigInt(amount.BigInt(), int32(-precision)), nil
}

// HumanToRaw converts a decimal amount to raw token units, truncating sub-unit dust.
func HumanToRaw(amount decimal.Decimal, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	raw := amount.Shift(int32(precision)).BigInt()
	if raw.BitLen() > 255 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s does not fit in 256 bits", ErrConversionFailed, amount)
	}
	return sdkmath.NewIntFromBigInt(raw), nil
}

// HumanToRawPrice converts a price quoted in human units (B per A) into raw units
// (raw B per raw A): price * 10^(decimalsB - decimalsA).
func HumanToRawPrice(price decimal.Decimal, decimalsA, decimalsB int) (decimal.Decimal, error) {
	if err := checkPrecision(decimalsA); err != nil {
		return decimal.Zero, err
	}
	if err := checkPrecision(decimalsB); err != nil {
		return decimal.Zero, err
	}
	return price.Shift(int32(decimalsB - decimalsA)), nil
}

// RawToHumanPrice is the inverse of HumanToRawPrice.
func RawToHumanPrice(price decimal.Decimal, decimalsA, decimalsB int) (decimal.Decimal, error) {
	if err := checkPrecision(decimalsA); err != nil {
		return decimal.Zero, err
	}
	if err := checkPrecision(decimalsB); err != nil {
		return decimal.Zero, err
	}
	return price.Shift(int32(decimalsA - decimalsB)), nil
}

// Float64ToDecimal converts a float64 coming from an external feed into a decimal,
// rejecting NaN and infinities.
func Float64ToDecimal(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, fmt.Errorf("%w: value is %f", ErrNotFinite, value)
	}
	return decimal.NewFromFloat(value), nil
}

func checkPrecision(precision int) error {
	if precision < 0 || precision > 18 {
		return fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	return nil
}
