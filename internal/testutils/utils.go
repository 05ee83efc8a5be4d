package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/tx"
)

func RandomHash(t *testing.T) tx.Hash {
	hash := make([]byte, tx.HashSize)
	_, err := rand.Read(hash)
	require.NoError(t, err)
	return tx.Hash(hash)
}

func RandomAddress(t *testing.T) tx.Address {
	addr := make([]byte, tx.AddressSize)
	_, err := rand.Read(addr)
	require.NoError(t, err)
	return tx.Address(addr)
}

func RandomTransaction(t *testing.T) *tx.Transaction {
	raw := make([]byte, 64)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	transaction, err := tx.NewTransaction(raw)
	require.NoError(t, err)
	return transaction
}

// RandomReceipt builds a successful receipt for the given transaction hash
// with random block coordinates.
func RandomReceipt(t *testing.T, txHash tx.Hash) *receipt.Receipt {
	return &receipt.Receipt{
		TxHash:            txHash,
		TxIndex:           0,
		BlockHash:         RandomHash(t),
		BlockNumber:       1,
		Status:            receipt.StatusSuccessful,
		GasUsed:           21000,
		CumulativeGasUsed: 21000,
	}
}
