package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paracosm-Labs/mintdeals-ledger/collateral"
	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
	"github.com/Paracosm-Labs/mintdeals-ledger/credit"
	"github.com/Paracosm-Labs/mintdeals-ledger/feesplit"
	"github.com/Paracosm-Labs/mintdeals-ledger/ledger"
	"github.com/Paracosm-Labs/mintdeals-ledger/observability/metrics"
	"github.com/Paracosm-Labs/mintdeals-ledger/registry"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// RPCRequest is the inbound JSON-RPC 2.0 envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError is the JSON-RPC error payload.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// EventSource exposes the engine events queued during an operation.
type EventSource interface {
	DrainEvents() []*types.Event
}

type handlerFunc func(req *RPCRequest) (interface{}, *RPCError)

// Server exposes the credit ledger to the club registry and to operators.
type Server struct {
	log        *slog.Logger
	authToken  string
	admin      common.Address
	ledger     *ledger.Engine
	credit     *credit.Engine
	collateral *collateral.Engine
	router     *feesplit.Router
	assets     *registry.Registry
	pauses     *ledgercommon.Pauses
	events     EventSource

	// mu serializes dispatch: the engines require state transitions to run
	// one at a time, and the latch only rejects collaborator reentrancy
	// within a single operation, not concurrent callers.
	mu sync.Mutex

	handlers      map[string]handlerFunc
	adminHandlers map[string]handlerFunc
}

// Deps bundles the collaborators the server dispatches into.
type Deps struct {
	Log        *slog.Logger
	AuthToken  string
	Admin      common.Address
	Ledger     *ledger.Engine
	Credit     *credit.Engine
	Collateral *collateral.Engine
	Router     *feesplit.Router
	Assets     *registry.Registry
	Pauses     *ledgercommon.Pauses
	Events     EventSource
}

// NewServer wires the dispatch tables.
func NewServer(deps Deps) *Server {
	s := &Server{
		log:        deps.Log,
		authToken:  strings.TrimSpace(deps.AuthToken),
		admin:      deps.Admin,
		ledger:     deps.Ledger,
		credit:     deps.Credit,
		collateral: deps.Collateral,
		router:     deps.Router,
		assets:     deps.Assets,
		pauses:     deps.Pauses,
		events:     deps.Events,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.handlers = map[string]handlerFunc{
		"ledger_deposit":               s.handleLedgerDeposit,
		"ledger_withdraw":              s.handleLedgerWithdraw,
		"ledger_borrow":                s.handleLedgerBorrow,
		"ledger_repay":                 s.handleLedgerRepay,
		"ledger_getPosition":           s.handleLedgerGetPosition,
		"collateral_getBorrowingPower": s.handleCollateralPower,
		"collateral_getReserveValue":   s.handleCollateralReserve,
		"credit_registerUser":          s.handleCreditRegister,
		"credit_getInfo":               s.handleCreditGetInfo,
		"credit_draw":                  s.handleCreditDraw,
		"credit_settle":                s.handleCreditSettle,
		"feesplit_routeInflow":         s.handleFeeSplitRoute,
		"feesplit_sweep":               s.handleFeeSplitSweep,
		"registry_resolveAdapter":      s.handleRegistryResolve,
	}
	s.adminHandlers = map[string]handlerFunc{
		"admin_advanceStep":          s.handleAdminAdvanceStep,
		"admin_adjustScore":          s.handleAdminAdjustScore,
		"admin_setGlobalCeiling":     s.handleAdminSetGlobalCeiling,
		"admin_deriveGlobalCeiling":  s.handleAdminDeriveGlobalCeiling,
		"admin_setCollateralFactors": s.handleAdminSetCollateralFactors,
		"admin_setLedgerParams":      s.handleAdminSetLedgerParams,
		"admin_setFeeSplit":          s.handleAdminSetFeeSplit,
		"admin_setSweepPolicy":       s.handleAdminSetSweepPolicy,
		"admin_withdrawRepayFees":    s.handleAdminWithdrawRepayFees,
		"admin_withdrawCommission":   s.handleAdminWithdrawCommission,
		"admin_setPause":             s.handleAdminSetPause,
	}
	return s
}

// Router builds the HTTP mux: JSON-RPC on POST /, health and metrics
// alongside.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handleRPC)
	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}
	method := strings.TrimSpace(req.Method)
	log := s.log.With("rpcMethod", method, "requestId", requestID)

	handler, isAdmin := s.lookup(method)
	if handler == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", method)
		return
	}
	if isAdmin && !s.authorized(r) {
		metrics.RPCRequests.WithLabelValues(method, "unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}

	started := time.Now()
	s.mu.Lock()
	result, rpcErr := handler(&req)
	s.flushEvents(log)
	s.mu.Unlock()
	metrics.RPCDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())

	if rpcErr != nil {
		metrics.RPCRequests.WithLabelValues(method, "error").Inc()
		log.Warn("rpc call failed", "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, httpStatusFor(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	metrics.RPCRequests.WithLabelValues(method, "ok").Inc()
	writeResult(w, req.ID, result)
}

func (s *Server) lookup(method string) (handlerFunc, bool) {
	if h, ok := s.adminHandlers[method]; ok {
		return h, true
	}
	if h, ok := s.handlers[method]; ok {
		return h, false
	}
	return nil, false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) == 1
}

func (s *Server) flushEvents(log *slog.Logger) {
	if s.events == nil {
		return
	}
	for _, evt := range s.events.DrainEvents() {
		metrics.LedgerEvents.WithLabelValues(evt.Type).Inc()
		attrs := make([]any, 0, len(evt.Attributes)*2)
		for k, v := range evt.Attributes {
			attrs = append(attrs, k, v)
		}
		log.Info(evt.Type, attrs...)
	}
}

func httpStatusFor(code int) int {
	switch code {
	case codeInvalidParams, codeInvalidRequest, codeParseError:
		return http.StatusBadRequest
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter", Data: err.Error()}
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, &RPCError{Code: codeInvalidParams, Message: field + " is not a hex address", Data: raw}
	}
	return common.HexToAddress(trimmed), nil
}

func parsePositiveAmount(field, raw string) (*big.Int, *RPCError) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: field + " must be a positive integer", Data: raw}
	}
	return value, nil
}

func engineError(err error) *RPCError {
	if errors.Is(err, ledgercommon.ErrUnauthorized) {
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	return &RPCError{Code: codeServerError, Message: err.Error()}
}
