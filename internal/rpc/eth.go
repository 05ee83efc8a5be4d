package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/syncwait"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/internal/txpool"
)

// EthAPI exposes the eth_ method namespace. It is a thin layer: parameter
// decoding and result encoding only, with all waiting logic delegated to
// the sync coordinator.
type EthAPI struct {
	pool        *txpool.Pool
	receipts    *store.Receipts
	chain       *store.Chain
	coordinator *syncwait.Coordinator
}

func NewEthAPI(pool *txpool.Pool, receipts *store.Receipts, chain *store.Chain, coordinator *syncwait.Coordinator) *EthAPI {
	return &EthAPI{
		pool:        pool,
		receipts:    receipts,
		chain:       chain,
		coordinator: coordinator,
	}
}

// RegisterMethods installs the eth_ handlers on the server.
func (api *EthAPI) RegisterMethods(server *Server) {
	server.Register("eth_sendRawTransaction", api.SendRawTransaction)
	server.Register("eth_sendRawTransactionSync", api.SendRawTransactionSync)
	server.Register("eth_getTransactionReceipt", api.GetTransactionReceipt)
	server.Register("eth_blockNumber", api.BlockNumber)
}

// SendRawTransaction submits a raw signed transaction and returns its hash
// without waiting for inclusion.
func (api *EthAPI) SendRawTransaction(ctx context.Context, params []json.RawMessage) (any, *Error) {
	raw, rpcErr := decodeRawTxParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := api.pool.Add(raw)
	if err != nil {
		return nil, &Error{Code: CodeServerError, Message: err.Error()}
	}
	return hash.Hex(), nil
}

// SendRawTransactionSync submits a raw signed transaction and blocks until
// its receipt is available or the deployment-configured wait elapses. On
// timeout the error data carries the transaction hash so the client can
// resume polling with eth_getTransactionReceipt.
func (api *EthAPI) SendRawTransactionSync(ctx context.Context, params []json.RawMessage) (any, *Error) {
	raw, rpcErr := decodeRawTxParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := api.coordinator.SubmitAndWait(ctx, raw)
	if err != nil {
		var timeoutErr *syncwait.TimeoutError
		if errors.As(err, &timeoutErr) {
			return nil, &Error{
				Code:    CodeWaitTimeout,
				Message: timeoutErr.Error(),
				Data:    timeoutErr.TxHash.Hex(),
			}
		}
		return nil, &Error{Code: CodeServerError, Message: err.Error()}
	}
	return NewRPCReceipt(rec), nil
}

// GetTransactionReceipt returns the receipt for a transaction hash, or
// null if the transaction has not been included in a block.
func (api *EthAPI) GetTransactionReceipt(ctx context.Context, params []json.RawMessage) (any, *Error) {
	if len(params) != 1 {
		return nil, invalidParams("expected one parameter: transaction hash")
	}
	var hashHex string
	if err := json.Unmarshal(params[0], &hashHex); err != nil {
		return nil, invalidParams(err.Error())
	}
	hash, err := tx.HashFromHex(hashHex)
	if err != nil {
		return nil, invalidParams(err.Error())
	}

	rec, err := api.receipts.Get(hash)
	if err != nil {
		if errors.Is(err, store.ErrReceiptNotFound) {
			return nil, nil
		}
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return NewRPCReceipt(rec), nil
}

// BlockNumber returns the number of the most recently imported block.
func (api *EthAPI) BlockNumber(ctx context.Context, params []json.RawMessage) (any, *Error) {
	head, err := api.chain.Head()
	if err != nil {
		if errors.Is(err, store.ErrEmptyChain) {
			return encodeUint64(0), nil
		}
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return encodeUint64(head.Header.Number), nil
}

// decodeRawTxParam decodes the single-element [DATA] parameter array
// shared by eth_sendRawTransaction and eth_sendRawTransactionSync.
func decodeRawTxParam(params []json.RawMessage) ([]byte, *Error) {
	if len(params) != 1 {
		return nil, invalidParams(fmt.Sprintf("expected one parameter, got %d", len(params)))
	}
	var dataHex string
	if err := json.Unmarshal(params[0], &dataHex); err != nil {
		return nil, invalidParams(err.Error())
	}
	raw, err := decodeBytes(dataHex)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	return raw, nil
}

func invalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: "invalid params: " + msg}
}
