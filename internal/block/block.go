package block

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bramblenode/bramble/internal/tx"
)

// Header holds the chain coordinates of a block.
type Header struct {
	Number     uint64  `cbor:"0,keyasint"`
	ParentHash tx.Hash `cbor:"1,keyasint"`
	Timestamp  uint64  `cbor:"2,keyasint"`
}

// Hash returns the block hash, the Keccak-256 digest of the CBOR-encoded
// header.
func (h *Header) Hash() (tx.Hash, error) {
	b, err := cbor.Marshal(h)
	if err != nil {
		return tx.Hash{}, fmt.Errorf("marshal header: %w", err)
	}
	return tx.HashData(b), nil
}

// Block is a header plus the ordered list of transactions it includes.
type Block struct {
	Header       Header            `cbor:"0,keyasint"`
	Transactions []*tx.Transaction `cbor:"1,keyasint,omitempty"`
}

// Bytes returns the CBOR encoding of the block, used both for storage and
// for the block feed wire format.
func (b *Block) Bytes() ([]byte, error) {
	data, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal block: %w", err)
	}
	return data, nil
}

// FromBytes decodes a block from its CBOR encoding.
func FromBytes(data []byte) (*Block, error) {
	var b Block
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &b, nil
}
