package store

const (
	prefixReceipt byte = iota + 1
	prefixBlock
	prefixBlockNumber
	prefixHead
	prefixMinedTx
)

// makeKey creates a key from a prefix and a hash or other suffix bytes
func makeKey(prefix byte, suffix []byte) []byte {
	key := make([]byte, 1+len(suffix))
	key[0] = prefix
	copy(key[1:], suffix)
	return key
}
