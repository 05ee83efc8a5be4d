package tx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSize is the length in bytes of a transaction hash.
	HashSize = 32
	// MaxTxSize caps the accepted size of a raw signed transaction.
	MaxTxSize = 128 * 1024
)

var (
	ErrEmptyTransaction = errors.New("transaction data is empty")
	ErrTooLarge         = fmt.Errorf("transaction exceeds %d bytes", MaxTxSize)
	ErrInvalidHash      = errors.New("invalid transaction hash")
)

// Hash is the unique identifier assigned to a transaction at submission
// time, used as the join key between submission and block inclusion.
type Hash [HashSize]byte

// HashData hashes the input data using Keccak-256
func HashData(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	hashed := h.Sum(nil)

	var result Hash
	copy(result[:], hashed)
	return result
}

// Hex returns the 0x-prefixed hex encoding of the hash.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// HashFromHex parses a 0x-prefixed (or bare) hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(decoded) != HashSize {
		return Hash{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHash, len(decoded), HashSize)
	}
	var h Hash
	copy(h[:], decoded)
	return h, nil
}

// Transaction wraps the raw signed bytes of a submitted transaction
// together with the hash derived from them. The raw encoding is opaque to
// this node; only size and emptiness are validated here.
type Transaction struct {
	Raw  []byte `cbor:"0,keyasint"`
	hash Hash
}

// NewTransaction validates the raw bytes and derives the transaction hash.
func NewTransaction(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyTransaction
	}
	if len(raw) > MaxTxSize {
		return nil, ErrTooLarge
	}
	return &Transaction{Raw: raw, hash: HashData(raw)}, nil
}

// Hash returns the transaction identifier. For transactions reconstructed
// from storage or the wire the hash is rederived from the raw bytes.
func (t *Transaction) Hash() Hash {
	if t.hash == (Hash{}) {
		t.hash = HashData(t.Raw)
	}
	return t.hash
}
