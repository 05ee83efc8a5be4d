package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramblenode/bramble/internal/tx"
)

func TestBlockRoundTrip(t *testing.T) {
	t1, err := tx.NewTransaction([]byte{1, 2, 3})
	require.NoError(t, err)
	t2, err := tx.NewTransaction([]byte{4, 5, 6})
	require.NoError(t, err)

	b := &Block{
		Header: Header{
			Number:     7,
			ParentHash: tx.HashData([]byte("parent")),
			Timestamp:  1700000000,
		},
		Transactions: []*tx.Transaction{t1, t2},
	}

	data, err := b.Bytes()
	require.NoError(t, err)

	decoded, err := FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, b.Header, decoded.Header)
	require.Len(t, decoded.Transactions, 2)
	assert.Equal(t, t1.Hash(), decoded.Transactions[0].Hash())
	assert.Equal(t, t2.Hash(), decoded.Transactions[1].Hash())
}

func TestHeaderHashChangesWithContent(t *testing.T) {
	h1 := Header{Number: 1, ParentHash: tx.HashData([]byte("a"))}
	h2 := Header{Number: 2, ParentHash: tx.HashData([]byte("a"))}

	hash1, err := h1.Hash()
	require.NoError(t, err)
	hash2, err := h2.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2)

	again, err := h1.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash1, again)
}
