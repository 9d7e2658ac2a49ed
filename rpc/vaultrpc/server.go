// Package vaultrpc exposes the vesting vault and grant engines over a
// JSON-RPC-over-HTTP surface, following the dispatch and error-envelope
// conventions of rpc/http.go and rpc/escrow_handlers.go without depending on
// that package's monolithic Server.
package vaultrpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"nhbchain/crypto"
	"nhbchain/native/grant"
	"nhbchain/native/vault"
)

const jsonRPCVersion = "2.0"

// JSON-RPC error codes. Domain errors of the vault and grant engines share
// one reserved -321xx block, mirroring the codeEscrow* convention of a block
// per surface rather than one flat namespace.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeVaultNotFound     = -32110
	codeVaultFrozen       = -32111
	codeVaultIrrevocable  = -32112
	codeNothingToRevoke   = -32113
	codeInsufficientFunds = -32114
	codeInvalidAmount     = -32115
	codeInvalidDuration   = -32116
	codeDeprecated        = -32117
	codePaused            = -32118
	codeAlreadyInit       = -32119
	codeNotInitialized    = -32120
	codeVaultNotFrozen    = -32121
)

// RPCRequest is the single-object JSON-RPC envelope accepted by the surface.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// RPCResponse is the envelope written back for every request.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError follows the JSON-RPC 2.0 error object shape.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}})
}

// vaultErrorCode maps the engine's sentinel errors to a stable numeric code,
// the way rpc/escrow_handlers.go maps escrow sentinels to -3202x codes.
func vaultErrorCode(err error) (int, int) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized), errors.Is(err, grant.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, vault.ErrVaultNotFound):
		return http.StatusNotFound, codeVaultNotFound
	case errors.Is(err, vault.ErrVaultFrozen):
		return http.StatusConflict, codeVaultFrozen
	case errors.Is(err, vault.ErrVaultNotFrozen):
		return http.StatusConflict, codeVaultNotFrozen
	case errors.Is(err, vault.ErrVaultIrrevocable):
		return http.StatusConflict, codeVaultIrrevocable
	case errors.Is(err, vault.ErrNothingToRevoke):
		return http.StatusConflict, codeNothingToRevoke
	case errors.Is(err, vault.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, codeInsufficientFunds
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, grant.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidAmount
	case errors.Is(err, vault.ErrInvalidDuration), errors.Is(err, grant.ErrInvalidDuration):
		return http.StatusBadRequest, codeInvalidDuration
	case errors.Is(err, vault.ErrDeprecated):
		return http.StatusConflict, codeDeprecated
	case errors.Is(err, vault.ErrPaused):
		return http.StatusServiceUnavailable, codePaused
	case errors.Is(err, vault.ErrAlreadyInitialized), errors.Is(err, grant.ErrAlreadyInitialized):
		return http.StatusConflict, codeAlreadyInit
	case errors.Is(err, vault.ErrNotInitialized), errors.Is(err, grant.ErrNotInitialized):
		return http.StatusConflict, codeNotInitialized
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

// JWTConfig configures bearer-token verification for the surface. It mirrors
// rpc/http.go's JWTConfig but only supports the HS256 path; the vault domain
// has no need for the RSA verifier variant the chain RPC carries for
// multi-tenant federation.
type JWTConfig struct {
	Secret         []byte
	Issuer         string
	MaxSkewSeconds int64
}

// Config bundles the engines and auth policy the router dispatches to.
type Config struct {
	Vault *vault.Engine
	Grant *grant.Engine
	JWT   JWTConfig
	Now   func() time.Time
}

// Server is the vault/grant JSON-RPC-over-HTTP surface.
type Server struct {
	vaultEngine *vault.Engine
	grantEngine *grant.Engine
	jwt         JWTConfig
	now         func() time.Time

	router http.Handler

	idempotencyMu    sync.Mutex
	idempotencyCache map[string][]uint64
}

// New constructs a configured router. Routes are registered eagerly so
// Handler() never observes a half-built mux.
func New(cfg Config) *Server {
	s := &Server{vaultEngine: cfg.Vault, grantEngine: cfg.Grant, jwt: cfg.JWT, now: cfg.Now}
	if s.now == nil {
		s.now = time.Now
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Post("/", s.handleRPC)
	return r
}

type callerIdentityKey struct{}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC envelope")
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method is required")
		return
	}

	h, ok := methodTable[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
		return
	}

	var caller *crypto.Address
	if h.authenticated {
		identity, authErr := s.authenticate(r)
		if authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, authErr.Error())
			return
		}
		caller = identity
	}

	result, err := h.fn(s, caller, req.Params)
	if err != nil {
		status, code := vaultErrorCode(err)
		writeError(w, status, req.ID, code, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

// authenticate verifies the bearer token and returns the caller identity
// encoded in its subject claim, mirroring rpc/http.go's requireAuth but
// scoped to this surface's own JWTConfig rather than the chain-wide one.
func (s *Server) authenticate(r *http.Request) (*crypto.Address, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, errors.New("missing bearer token")
	}
	if len(s.jwt.Secret) == 0 {
		return nil, errors.New("JWT authentication not configured")
	}

	leeway := time.Duration(s.jwt.MaxSkewSeconds) * time.Second
	if s.jwt.MaxSkewSeconds <= 0 {
		leeway = 30 * time.Second
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.jwt.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwt.Issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwt.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid bearer token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, errors.New("token subject must carry the caller address")
	}
	addr, err := crypto.DecodeAddress(subject)
	if err != nil {
		return nil, errors.New("token subject is not a valid address")
	}
	return &addr, nil
}
