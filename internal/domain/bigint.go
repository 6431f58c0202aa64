package domain

import (
	"fmt"
	"math/big"
)

// BigInt wraps math/big.Int and encodes to JSON as a decimal string.
// Raw token amounts are uint256 on chain; JSON numbers and float64 cannot
// carry them without losing precision, strings can.
type BigInt struct {
	big.Int
}

func NewBigInt(v int64) *BigInt {
	b := new(BigInt)
	b.SetInt64(v)
	return b
}

func ParseBigInt(s string) (*BigInt, error) {
	b := new(BigInt)
	if _, ok := b.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid integer amount: %q", s)
	}
	return b, nil
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		b.SetInt64(0)
		return nil
	}
	if _, ok := b.SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer amount: %q", s)
	}
	return nil
}

// Unwrap returns the underlying big.Int, never nil.
func (b *BigInt) Unwrap() *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return &b.Int
}

// WrapBig copies v into a fresh BigInt. nil is treated as zero.
func WrapBig(v *big.Int) *BigInt {
	b := new(BigInt)
	if v != nil {
		b.Set(v)
	}
	return b
}
