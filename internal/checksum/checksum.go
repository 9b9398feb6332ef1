// Package checksum implements EIP-55 mixed-case checksum encoding for
// EVM account addresses.
package checksum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidAddressFormat is returned when an input is not 40 hex characters
// (after an optional 0x prefix).
var ErrInvalidAddressFormat = errors.New("invalid address format")

// addressHexLen is the number of hex digits in a 20-byte address.
const addressHexLen = 40

// Encode returns the EIP-55 checksummed form of raw. The case of the input
// digits is ignored; only the Keccak-256 digest of the lowercase hex text
// decides which letters are uppercased.
func Encode(raw string) (string, error) {
	digits, err := normalize(raw)
	if err != nil {
		return "", err
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(digits))
	digest := hex.EncodeToString(h.Sum(nil))

	var sb strings.Builder
	sb.Grow(2 + addressHexLen)
	sb.WriteString("0x")
	for i := 0; i < addressHexLen; i++ {
		c := digits[i]
		// Digest nibble > 7 uppercases the letter; digits are case-invariant.
		if digest[i] >= '8' && c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

// Validate reports whether address is accepted as a checksummed address.
//
// It is true when address already equals its encoding, and otherwise falls
// back to checking that re-encoding the encoded form is stable. Since Encode
// is idempotent, the fallback accepts any well-formed address; use
// IsChecksummed for the strict check.
func Validate(address string) bool {
	check, err := Encode(address)
	if err != nil {
		return false
	}
	if check == address {
		return true
	}
	again, err := Encode(check)
	return err == nil && again == check
}

// IsChecksummed reports whether address is byte-for-byte equal to its
// EIP-55 encoding, including the 0x prefix.
func IsChecksummed(address string) bool {
	check, err := Encode(address)
	return err == nil && check == address
}

// Equal reports whether a and b are well-formed and denote the same address.
func Equal(a, b string) bool {
	na, err := normalize(a)
	if err != nil {
		return false
	}
	nb, err := normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// normalize strips the prefix, validates length and charset, and lowercases.
func normalize(raw string) (string, error) {
	s := raw
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s) != addressHexLen {
		return "", fmt.Errorf("%w: %q: expected %d hex chars, got %d", ErrInvalidAddressFormat, raw, addressHexLen, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return "", fmt.Errorf("%w: %q: non-hex character at position %d", ErrInvalidAddressFormat, raw, i)
		}
	}
	return strings.ToLower(s), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
