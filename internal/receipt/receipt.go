package receipt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bramblenode/bramble/internal/tx"
)

// Transaction execution status values.
const (
	StatusFailed     uint64 = 0
	StatusSuccessful uint64 = 1
)

// Log is a single event emitted during transaction execution.
type Log struct {
	Address tx.Address `cbor:"0,keyasint"`
	Topics  []tx.Hash  `cbor:"1,keyasint"`
	Data    []byte     `cbor:"2,keyasint"`
}

// Receipt is the outcome record of an included transaction. It is produced
// once by the block import pipeline and immutable afterwards; the first
// receipt seen for a transaction hash is authoritative.
type Receipt struct {
	TxHash            tx.Hash     `cbor:"0,keyasint"`
	TxIndex           uint32      `cbor:"1,keyasint"`
	BlockHash         tx.Hash     `cbor:"2,keyasint"`
	BlockNumber       uint64      `cbor:"3,keyasint"`
	Status            uint64      `cbor:"4,keyasint"`
	GasUsed           uint64      `cbor:"5,keyasint"`
	CumulativeGasUsed uint64      `cbor:"6,keyasint"`
	ContractAddress   *tx.Address `cbor:"7,keyasint,omitempty"`
	Logs              []Log       `cbor:"8,keyasint,omitempty"`
}

// Bytes returns the CBOR storage encoding of the receipt.
func (r *Receipt) Bytes() ([]byte, error) {
	b, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}
	return b, nil
}

// FromBytes decodes a receipt from its CBOR storage encoding.
func FromBytes(data []byte) (*Receipt, error) {
	var r Receipt
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}
