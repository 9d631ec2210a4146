package submission

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"price-relay/internal/domain"
	"price-relay/internal/ledger"
)

// Ledger encoding constraints.
const (
	PriceScale      = 8  // decimal places of the fixed-point price
	MaxSymbolLength = 32 // ledger symbol identifier limit
)

// ErrEncoding is returned when a group cannot be expressed as ledger arguments.
var ErrEncoding = errors.New("encoding error")

var maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
var minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

// ScalePrice converts a decimal price string to a fixed-point integer with
// PriceScale decimals, rounding half away from zero.
func ScalePrice(price string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return nil, fmt.Errorf("%w: price %q: %v", ErrEncoding, price, err)
	}

	v := d.Shift(PriceScale).Round(0).BigInt()
	if v.Cmp(maxI128) > 0 || v.Cmp(minI128) < 0 {
		return nil, fmt.Errorf("%w: price %q overflows i128", ErrEncoding, price)
	}
	return v, nil
}

// EncodeSymbol keeps the characters allowed in a ledger symbol
// ([A-Za-z0-9_]) and truncates to MaxSymbolLength.
func EncodeSymbol(symbol string) (string, error) {
	var b strings.Builder
	for _, r := range symbol {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
		if b.Len() == MaxSymbolLength {
			break
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: symbol %q has no valid characters", ErrEncoding, symbol)
	}
	return b.String(), nil
}

// WindowSeconds converts a window start in milliseconds to Unix seconds.
func WindowSeconds(windowStartMs int64) uint64 {
	if windowStartMs < 0 {
		return 0
	}
	return uint64(windowStartMs / 1000)
}

// BuildInvocation encodes a window group as a contract call
// (symbol, price_vector, window_timestamp).
func BuildInvocation(contract, function string, g *domain.WindowGroup) (ledger.Invocation, error) {
	symbol, err := EncodeSymbol(g.Symbol)
	if err != nil {
		return ledger.Invocation{}, err
	}

	prices := make([]ledger.Arg, 0, len(g.Prices))
	for _, p := range g.Prices {
		v, err := ScalePrice(p)
		if err != nil {
			return ledger.Invocation{}, err
		}
		prices = append(prices, ledger.I128(v))
	}

	return ledger.Invocation{
		Contract: contract,
		Function: function,
		Args: []ledger.Arg{
			ledger.Symbol(symbol),
			ledger.Vec(prices...),
			ledger.U64(WindowSeconds(g.WindowStart)),
		},
	}, nil
}
