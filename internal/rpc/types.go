package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bramblenode/bramble/internal/receipt"
)

// RPCLog is the hex-encoded wire representation of an execution log.
type RPCLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockHash   string   `json:"blockHash"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	TxIndex     string   `json:"transactionIndex"`
	LogIndex    string   `json:"logIndex"`
}

// RPCReceipt is the receipt object returned by eth_getTransactionReceipt
// and eth_sendRawTransactionSync, all quantity fields hex-encoded.
type RPCReceipt struct {
	TransactionHash   string   `json:"transactionHash"`
	TransactionIndex  string   `json:"transactionIndex"`
	BlockHash         string   `json:"blockHash"`
	BlockNumber       string   `json:"blockNumber"`
	CumulativeGasUsed string   `json:"cumulativeGasUsed"`
	GasUsed           string   `json:"gasUsed"`
	ContractAddress   *string  `json:"contractAddress"`
	Logs              []RPCLog `json:"logs"`
	Status            string   `json:"status"`
}

// NewRPCReceipt converts a stored receipt into its wire representation.
func NewRPCReceipt(rec *receipt.Receipt) *RPCReceipt {
	out := &RPCReceipt{
		TransactionHash:   rec.TxHash.Hex(),
		TransactionIndex:  encodeUint64(uint64(rec.TxIndex)),
		BlockHash:         rec.BlockHash.Hex(),
		BlockNumber:       encodeUint64(rec.BlockNumber),
		CumulativeGasUsed: encodeUint64(rec.CumulativeGasUsed),
		GasUsed:           encodeUint64(rec.GasUsed),
		Logs:              make([]RPCLog, 0, len(rec.Logs)),
		Status:            encodeUint64(rec.Status),
	}
	if rec.ContractAddress != nil {
		addr := rec.ContractAddress.Hex()
		out.ContractAddress = &addr
	}
	for i, l := range rec.Logs {
		topics := make([]string, 0, len(l.Topics))
		for _, topic := range l.Topics {
			topics = append(topics, topic.Hex())
		}
		out.Logs = append(out.Logs, RPCLog{
			Address:     l.Address.Hex(),
			Topics:      topics,
			Data:        encodeBytes(l.Data),
			BlockHash:   rec.BlockHash.Hex(),
			BlockNumber: encodeUint64(rec.BlockNumber),
			TxHash:      rec.TxHash.Hex(),
			TxIndex:     encodeUint64(uint64(rec.TxIndex)),
			LogIndex:    encodeUint64(uint64(i)),
		})
	}
	return out
}

// encodeUint64 hex-encodes a quantity with no leading zeros, per the
// Ethereum JSON-RPC quantity convention.
func encodeUint64(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// encodeBytes hex-encodes unformatted data with the 0x prefix.
func encodeBytes(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// decodeBytes parses 0x-prefixed hex data.
func decodeBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("hex data must have 0x prefix")
	}
	data, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}
