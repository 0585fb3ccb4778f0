// Package params contains syntactic validators for the values wallet
// clients send to the gateway.
package params

import (
	"encoding/json"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

var (
	addressRE   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	signatureRE = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)
	txHashRE    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ErrInvalidInteger is returned by ParseInt for values that are not
// representable as a non-negative integer.
var ErrInvalidInteger = errors.New("invalid integer")

// IsValidAddress checks that s is a hex-encoded 20-byte value with the
// conventional 0x prefix.
func IsValidAddress(s string) bool {
	return addressRE.MatchString(s)
}

// IsValidSignature checks that s is a hex-encoded 65-byte signature
// with the conventional 0x prefix.
func IsValidSignature(s string) bool {
	return signatureRE.MatchString(s)
}

// IsValidTransactionHash checks that s is a hex-encoded 32-byte hash
// with the conventional 0x prefix.
func IsValidTransactionHash(s string) bool {
	return txHashRE.MatchString(s)
}

// ParseInt accepts either a JSON number or a string holding a decimal
// or a 0x-prefixed hexadecimal integer and returns its value. Negative
// and fractional values are rejected. Callers that require a positive
// amount must additionally check the sign of the result.
func ParseInt(v any) (*big.Int, error) {
	switch val := v.(type) {
	case json.Number:
		i, ok := new(big.Int).SetString(val.String(), 10)
		if !ok || i.Sign() < 0 {
			return nil, ErrInvalidInteger
		}
		return i, nil
	case float64:
		// Plain json decoding without UseNumber.
		i, acc := big.NewFloat(val).Int(nil)
		if acc != big.Exact || i.Sign() < 0 {
			return nil, ErrInvalidInteger
		}
		return i, nil
	case string:
		var (
			i  *big.Int
			ok bool
		)
		if strings.HasPrefix(val, "0x") || strings.HasPrefix(val, "0X") {
			i, ok = new(big.Int).SetString(val[2:], 16)
		} else {
			i, ok = new(big.Int).SetString(val, 10)
		}
		if !ok || i.Sign() < 0 {
			return nil, ErrInvalidInteger
		}
		return i, nil
	default:
		return nil, ErrInvalidInteger
	}
}

// ParseUint64 is like ParseInt restricted to values that fit uint64.
func ParseUint64(v any) (uint64, error) {
	i, err := ParseInt(v)
	if err != nil {
		return 0, err
	}
	if !i.IsUint64() {
		return 0, ErrInvalidInteger
	}
	return i.Uint64(), nil
}
