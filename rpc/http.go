package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"daochain/core/runtime"
	"daochain/indexer"
	"daochain/native/bank"
	"daochain/native/dao"
	"daochain/native/staking"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeDuplicate      = -32010
	codeRateLimited    = -32020
	codeRejected       = -32030
)

// Chain is the read side of the runtime.
type Chain interface {
	Height() uint64
	Account(asset bank.Asset, addr [20]byte) (*bank.Account, error)
	TotalIssuance(asset bank.Asset) (*big.Int, error)
	TokenBalance(daoID uint32, addr [20]byte) (*big.Int, error)
	TokenIssuance(daoID uint32) (*big.Int, error)
	Dao(id uint32) (*dao.DAO, error)
	Multisig(daoID uint32, callHash [32]byte) (*dao.Multisig, error)
	CurrentEra() (uint32, error)
	Ledger(addr [20]byte) (*staking.AccountLedger, error)
	StakerInfo(daoID uint32, addr [20]byte) (*staking.StakerInfo, error)
	DaoStake(daoID uint32, era uint32) (*staking.DaoStakeInfo, error)
	EraInfo(era uint32) (*staking.EraInfo, bool, error)
	Registration(daoID uint32) (*staking.DaoRegistration, error)
	RegisteredDaos() ([]uint32, error)
	UnregisterQueueLen() (uint64, error)
	StakingHalted() (bool, error)
}

// Producer accepts extrinsics and remembers recent receipts.
type Producer interface {
	Submit(ext runtime.Extrinsic) ([32]byte, error)
	Receipt(hash [32]byte) (*runtime.Receipt, bool)
	LastBlock() *runtime.BlockResult
	Pending() int
}

// Archive serves historical data.
type Archive interface {
	Events(ctx context.Context, filter indexer.EventFilter) ([]indexer.EventRecord, error)
	Block(ctx context.Context, height uint64) (*indexer.BlockRecord, error)
	Extrinsic(ctx context.Context, hash [32]byte) (*indexer.ExtrinsicRecord, error)
}

// Config tunes the server.
type Config struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	SubmitRatePerSec float64
	SubmitBurst      int
	JWTSecret        string
}

type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, *RPCError)

// Server exposes the chain over JSON-RPC on POST /, plus /metrics,
// /healthz and a websocket event stream on /ws/events.
type Server struct {
	chain    Chain
	producer Producer
	archive  Archive
	hub      *EventHub
	logger   *slog.Logger
	cfg      Config
	limiter  *submitLimiter
	auth     *authenticator
	methods  map[string]handlerFunc

	mu      sync.Mutex
	httpSrv *http.Server
	closed  bool
}

// NewServer wires the handlers. archive and hub may be nil.
func NewServer(chain Chain, producer Producer, archive Archive, hub *EventHub, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		chain:    chain,
		producer: producer,
		archive:  archive,
		hub:      hub,
		logger:   logger,
		cfg:      cfg,
		limiter:  newSubmitLimiter(cfg.SubmitRatePerSec, cfg.SubmitBurst),
		auth:     newAuthenticator(cfg.JWTSecret),
	}
	s.methods = map[string]handlerFunc{
		"chain_getHeight":         s.handleGetHeight,
		"chain_getLatestBlock":    s.handleGetLatestBlock,
		"chain_getBlock":          s.handleGetBlock,
		"chain_getBalance":        s.handleGetBalance,
		"chain_getIssuance":       s.handleGetIssuance,
		"chain_submitExtrinsic":   s.handleSubmitExtrinsic,
		"chain_getReceipt":        s.handleGetReceipt,
		"chain_getEvents":         s.handleGetEvents,
		"dao_get":                 s.handleGetDao,
		"dao_getMultisig":         s.handleGetMultisig,
		"dao_getTokenBalance":     s.handleGetTokenBalance,
		"staking_status":          s.handleStakingStatus,
		"staking_getLedger":       s.handleGetLedger,
		"staking_getStakerInfo":   s.handleGetStakerInfo,
		"staking_getDaoStake":     s.handleGetDaoStake,
		"staking_getEraInfo":      s.handleGetEraInfo,
		"staking_getRegistration": s.handleGetRegistration,
		"staking_listDaos":        s.handleListDaos,
	}
	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(middleware.Recoverer)
	router.Post("/", s.handle)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		router.Get("/ws/events", s.handleEventStream)
	}
	return otelhttp.NewHandler(router, "daochain.rpc")
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("starting JSON-RPC server", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a running server. A server shut down before Start never
// serves.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func invalidParams(message string, err error) *RPCError {
	var data interface{}
	if err != nil {
		data = err.Error()
	}
	return newError(http.StatusBadRequest, codeInvalidParams, message, data)
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, newError(status, codeInvalidRequest, message, err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, newError(0, codeInvalidRequest, "request body required", nil))
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, newError(0, codeParseError, "invalid JSON payload", err.Error()))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, newError(0, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC))
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, newError(0, codeInvalidRequest, "method required", nil))
		return
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, newError(0, codeMethodNotFound, "method not found", req.Method))
		return
	}
	result, rpcErr := handler(r, req)
	if rpcErr != nil {
		if rpcErr.status >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed", "method", req.Method, "error", rpcErr.Message, "data", rpcErr.Data, "request_id", w.Header().Get(requestIDHeader))
		}
		writeError(w, rpcErr.status, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"height":  s.chain.Height(),
		"pending": s.producer.Pending(),
	})
}

// requestID tags every response with an X-Request-ID, reusing the caller's
// when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
