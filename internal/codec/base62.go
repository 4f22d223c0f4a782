// Package codec implements the Base62 bijection between non-negative
// integers and the short codes handed out to clients.
package codec

import "errors"

// alphabet is the canonical Base62 symbol table: digit 0-9, lowercase a-z,
// uppercase A-Z, in that order. The digit at index i is the symbol for i.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = int64(len(alphabet))

// ErrInvalidSymbol is returned by Decode when s contains a byte outside the
// Base62 alphabet.
var ErrInvalidSymbol = errors.New("codec: invalid base62 symbol")

// ErrNegative is returned by Encode when n is negative; short codes only
// ever encode non-negative Snowflake IDs.
var ErrNegative = errors.New("codec: cannot encode negative integer")

// decodeTable maps a byte to its alphabet index, or 0xFF if the byte is not
// part of the alphabet.
var decodeTable [256]byte

func init() {
	for i := range decodeTable {
		decodeTable[i] = 0xFF
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = byte(i)
	}
}

// Encode converts a non-negative integer into its canonical Base62
// representation. Encode(0) returns "0". The result never has a leading
// zero unless the value itself is zero.
func Encode(n int64) (string, error) {
	if n < 0 {
		return "", ErrNegative
	}
	if n == 0 {
		return string(alphabet[0]), nil
	}

	// 64-bit values fit in at most 11 base62 digits; build the string
	// back-to-front and slice the unused prefix off.
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%base]
		n /= base
	}
	return string(buf[i:]), nil
}

// Decode parses a canonical Base62 string back into its integer value.
// A byte outside the alphabet is a hard error; there is no lenient mode.
func Decode(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidSymbol
	}

	var acc int64
	for i := 0; i < len(s); i++ {
		digit := decodeTable[s[i]]
		if digit == 0xFF {
			return 0, ErrInvalidSymbol
		}
		acc = acc*base + int64(digit)
	}
	return acc, nil
}
