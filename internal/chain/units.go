package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/nft-marketplace/backend/internal/models"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the fixed-point precision of the native currency.
const EtherDecimals = 18

// ParseEther converts a human decimal amount into wei. Only positive amounts
// with at most 18 fractional digits are accepted.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: price is required", models.ErrValidationFailed)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q is not a number", models.ErrValidationFailed, amount)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", models.ErrValidationFailed)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("%w: price %q has more than %d decimal places", models.ErrValidationFailed, amount, EtherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as a decimal ether string without
// trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}
