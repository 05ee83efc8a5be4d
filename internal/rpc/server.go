package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bramblenode/bramble/pkg/log"
)

// JSON-RPC 2.0 error codes. CodeWaitTimeout is the reserved code clients
// use to distinguish a sync wait timeout from a terminal failure.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeWaitTimeout    = -32002
)

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Handler implements one JSON-RPC method. Params arrive as the raw
// positional array; the returned value is encoded as the result.
type Handler func(ctx context.Context, params []json.RawMessage) (any, *Error)

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// successResponse always carries a result field, even when the result is
// null (e.g. a receipt lookup for an unknown transaction).
type successResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *Error          `json:"error"`
}

// Server is a minimal JSON-RPC 2.0 server over HTTP POST. Methods are
// registered by name before Start.
type Server struct {
	addr     string
	methods  map[string]Handler
	listener net.Listener
	httpSrv  *http.Server
}

func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		methods: make(map[string]Handler),
	}
}

// Register adds a method handler. Not safe to call after Start.
func (s *Server) Register(method string, handler Handler) {
	s.methods[method] = handler
}

// Addr returns the bound listen address. Only valid after Start, which
// matters when the configured address uses port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Start begins serving requests in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.RPC.Error().Err(err).Msg("rpc server stopped")
		}
	}()
	log.RPC.Info().Str("addr", s.Addr()).Msg("rpc server listening")
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, &Error{Code: CodeParseError, Message: "parse error: " + err.Error()})
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeError(w, req.ID, &Error{Code: CodeInvalidRequest, Message: "invalid request"})
		return
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, req.ID, &Error{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method),
		})
		return
	}

	start := time.Now()
	result, rpcErr := handler(r.Context(), req.Params)
	if rpcErr != nil {
		log.RPC.Debug().
			Str("method", req.Method).
			Int("code", rpcErr.Code).
			Dur("took", time.Since(start)).
			Msg("request failed")
		writeError(w, req.ID, rpcErr)
		return
	}
	log.RPC.Debug().
		Str("method", req.Method).
		Dur("took", time.Since(start)).
		Msg("request served")
	writeJSON(w, successResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *Error) {
	writeJSON(w, errorResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.RPC.Error().Err(err).Msg("write response")
	}
}
