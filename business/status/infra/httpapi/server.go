// Package httpapi serves the read-only engine status API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	arbDomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/business/status/domain"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Chain checks the connected node.
type Chain interface {
	Ping(ctx context.Context) (blockchainDomain.ChainStatus, error)
	LastStatus() (blockchainDomain.ChainStatus, error)
}

// Engine exposes the tracked engine state.
type Engine interface {
	Status() domain.EngineStatus
	Opportunities(limit int) []arbDomain.Opportunity
	Attempts(limit int) []arbDomain.Attempt
}

// Settings are the effective engine settings.
type Settings struct {
	GasThreshold            string   `json:"gasThreshold"`
	MinimumProfitPercentage string   `json:"minimumProfitPercentage"`
	MinimumProfitAbsolute   string   `json:"minimumProfitAbsolute"`
	TradingAmount           string   `json:"tradingAmount"`
	TradingInterval         int64    `json:"tradingInterval"`
	ExecutionMode           string   `json:"executionMode"`
	Exchanges               []string `json:"exchanges"`
}

// Market is the static market description.
type Market struct {
	Network    string
	Exchanges  []string
	Tokens     []asset.Token
	QuoteToken asset.Token
}

// Deps are the server's collaborators. Stream may be nil.
type Deps struct {
	Chain    Chain
	Engine   Engine
	Settings Settings
	Market   Market
	Stream   http.Handler
	Version  string
	Logger   logger.LoggerInterface
}

// Server is the status API server.
type Server struct {
	port   int
	deps   Deps
	server *http.Server
}

// NewServer creates a status API server.
func NewServer(port int, deps Deps) *Server {
	return &Server{port: port, deps: deps}
}

// Handler returns the instrumented API mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/ping", s.handleChainPing)
	mux.HandleFunc("GET /api/arbitrage/opportunities", s.handleOpportunities)
	mux.HandleFunc("GET /api/arbitrage/attempts", s.handleAttempts)
	mux.HandleFunc("GET /api/arbitrage/settings", s.handleSettings)
	mux.HandleFunc("GET /api/arbitrage/status", s.handleEngineStatus)
	mux.HandleFunc("GET /api/markets/exchanges", s.handleExchanges)
	mux.HandleFunc("GET /api/markets/tokens", s.handleTokens)
	if s.deps.Stream != nil {
		mux.Handle("GET /api/stream", s.deps.Stream)
	}
	return otelhttp.NewHandler(mux, "status-api")
}

// Start listens in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error(context.Background(), "status api stopped", "port", s.port, "error", err)
		}
	}()

	s.deps.Logger.Info(context.Background(), "status api listening", "port", s.port)
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	chain := "healthy"
	if _, err := s.deps.Chain.LastStatus(); err != nil {
		chain = "unhealthy"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  now(),
		"blockchain": chain,
		"version":    s.deps.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Chain.LastStatus()
	body := map[string]any{
		"connected": err == nil && st.BlockNumber > 0,
		"network":   s.deps.Market.Network,
		"engine":    s.deps.Engine.Status().Health,
		"timestamp": now(),
	}
	if err != nil {
		body["status"] = "disconnected"
		body["error"] = err.Error()
	} else {
		body["status"] = "connected"
		body["block_number"] = st.BlockNumber
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleChainPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	st, err := s.deps.Chain.Ping(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"connected": false,
			"error":     err.Error(),
			"timestamp": now(),
		})
		return
	}

	body := map[string]any{
		"connected":    true,
		"latency_ms":   st.Latency.Milliseconds(),
		"latency":      st.Latency.String(),
		"block_number": st.BlockNumber,
		"chain_id":     st.ChainID,
		"timestamp":    now(),
	}
	if st.GasPrice != nil {
		body["gas_price_wei"] = st.GasPrice.Wei.String()
		body["gas_price_gwei"] = st.GasPrice.Gwei().String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	opps := s.deps.Engine.Opportunities(limit)
	if opps == nil {
		opps = []arbDomain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	attempts := s.deps.Engine.Attempts(limit)
	if attempts == nil {
		attempts = []arbDomain.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings)
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"active": st.Health != domain.HealthDegraded,
		"since":  st.Since,
		"engine": st,
	})
}

type exchangeJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	out := make([]exchangeJSON, 0, len(s.deps.Market.Exchanges))
	for i, name := range s.deps.Market.Exchanges {
		out = append(out, exchangeJSON{ID: strconv.Itoa(i + 1), Name: name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"exchanges": out})
}

type tokenJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Address  string `json:"address"`
	Quote    bool   `json:"quote,omitempty"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.deps.Market.Tokens
	out := make([]tokenJSON, 0, len(tokens)+1)
	add := func(t asset.Token, quote bool) {
		out = append(out, tokenJSON{
			ID:       t.ID().String(),
			Name:     t.Symbol(),
			Symbol:   t.Symbol(),
			Decimals: t.Decimals(),
			Address:  t.Address().Hex(),
			Quote:    quote,
		})
	}
	for _, t := range tokens {
		add(t, false)
	}
	if !s.deps.Market.QuoteToken.IsZero() {
		add(s.deps.Market.QuoteToken, true)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxLimit), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
