package tx

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the length in bytes of an account address.
const AddressSize = 20

// Address is a 20-byte account address.
type Address [AddressSize]byte

// Hex returns the 0x-prefixed hex encoding of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// AddressFromHex parses a 0x-prefixed (or bare) hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if len(decoded) != AddressSize {
		return Address{}, fmt.Errorf("invalid address: got %d bytes, want %d", len(decoded), AddressSize)
	}
	var a Address
	copy(a[:], decoded)
	return a, nil
}
