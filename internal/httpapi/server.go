// Package httpapi exposes the ledger engine as a JSON HTTP API.
//
// Amounts travel as decimal strings and accounts as 0x-prefixed hex.
// Ledger rejections map to 422 with the error kind in the body.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
)

// Engine is the ledger surface served over HTTP. *ledger.Engine satisfies it.
type Engine interface {
	Metadata() domain.TokenMetadata
	BalanceOf(account domain.Account) *uint256.Int
	AllowanceOf(owner, spender domain.Account) *uint256.Int
	Holders() int
	Conserved() bool
	EventsSince(afterSeq uint64, limit int) []*domain.Event
	Transfer(caller, to domain.Account, value *uint256.Int) (*domain.Event, error)
	Approve(caller, spender domain.Account, value *uint256.Int) (*domain.Event, error)
	TransferFrom(caller, from, to domain.Account, value *uint256.Int) (*domain.Event, error)
}

// Options contains configuration for creating the API handler.
type Options struct {
	Engine         Engine
	Feed           http.Handler // Served at /ws when set
	MetricsHandler http.Handler // Default: observability.Handler()
	RateLimiter    *RateLimiter // Applied to write endpoints when set
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	StartedAt      time.Time
}

type server struct {
	engine    Engine
	startedAt time.Time
}

// NewHandler returns a router exposing the ledger API.
func NewHandler(opts Options) http.Handler {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = observability.Handler()
	}
	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	s := &server{engine: opts.Engine, startedAt: startedAt}

	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger.Named("http")), metricsMiddleware(metrics))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	r.HandleFunc("/token", s.handleToken).Methods(http.MethodGet)
	r.HandleFunc("/balances/{account}", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/allowances/{owner}/{spender}", s.handleAllowance).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	if opts.Feed != nil {
		r.Handle("/ws", opts.Feed).Methods(http.MethodGet)
	}

	limit := func(h http.HandlerFunc) http.Handler { return h }
	if opts.RateLimiter != nil {
		limit = func(h http.HandlerFunc) http.Handler { return opts.RateLimiter.Middleware(h) }
	}
	r.Handle("/transfer", limit(s.handleTransfer)).Methods(http.MethodPost)
	r.Handle("/approve", limit(s.handleApprove)).Methods(http.MethodPost)
	r.Handle("/transfer-from", limit(s.handleTransferFrom)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, kindInvalidRequest, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, kindInvalidRequest, "method not allowed")
	})

	return r
}
