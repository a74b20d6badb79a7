package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/config"
	"github.com/sipeed/algoconnect/pkg/connectors"
	"github.com/sipeed/algoconnect/pkg/logger"
	"github.com/sipeed/algoconnect/pkg/session"
)

// Session is the part of the bootstrapper the gateway drives.
type Session interface {
	Start(ctx context.Context)
	Loading() bool
	Ready() <-chan struct{}
	LoadError() error
	Options() []session.Option
	Selected() connectors.Kind
	ConnectWallet(ctx context.Context, kind connectors.Kind) (session.Balance, error)
}

type walletStatus struct {
	Wallet    string `json:"wallet"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Loading   bool           `json:"loading"`
	Ready     bool           `json:"ready"`
	LoadError string         `json:"load_error,omitempty"`
	Selected  string         `json:"selected,omitempty"`
	Wallets   []walletStatus `json:"wallets"`
}

type connectResponse struct {
	Wallet   string `json:"wallet"`
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	Raw      string `json:"raw"`
	Decimals int    `json:"decimals"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isReady(s Session) bool {
	select {
	case <-s.Ready():
		return true
	default:
		return false
	}
}

// notReady answers a request that needs a loaded session. A session that
// is neither ready nor loading is started again so a failed load does not
// stick.
func notReady(s Session, r *http.Request) (int, errorResponse) {
	if s.Loading() {
		return http.StatusServiceUnavailable, errorResponse{Error: "Wallets are still loading", Reason: "not_ready"}
	}

	loadErr := s.LoadError()
	s.Start(context.WithoutCancel(r.Context()))
	if loadErr == nil {
		return http.StatusServiceUnavailable, errorResponse{Error: "Wallets are still loading", Reason: "not_ready"}
	}

	logger.WarnCF("gateway", "Retrying failed wallet load", map[string]any{"error": loadErr.Error()})
	return http.StatusServiceUnavailable, errorResponse{
		Error:  "Wallet client failed to load, retrying: " + loadErr.Error(),
		Reason: "load_failed",
	}
}

// NewHandler builds the gateway routes. limiter may be nil to disable
// rate limiting of /connect.
func NewHandler(s Session, limiter *rate.Limiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "algoconnect-gateway",
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		switch loadErr := s.LoadError(); {
		case isReady(s):
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "ready",
				"service": "algoconnect-gateway",
			})
		case !s.Loading() && loadErr != nil:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "load_failed",
				"service": "algoconnect-gateway",
				"error":   loadErr.Error(),
			})
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "loading",
				"service": "algoconnect-gateway",
			})
		}
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := statusResponse{
			Loading:  s.Loading(),
			Ready:    isReady(s),
			Selected: string(s.Selected()),
			Wallets:  []walletStatus{},
		}
		if err := s.LoadError(); err != nil {
			resp.LoadError = err.Error()
		}
		for _, opt := range s.Options() {
			ws := walletStatus{Wallet: string(opt.Kind), Available: opt.Available}
			if opt.Err != nil {
				ws.Error = opt.Err.Error()
			}
			resp.Wallets = append(resp.Wallets, ws)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/connect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if limiter != nil && !limiter.Allow() {
			logger.WarnC("gateway", "Connect rate limit exceeded")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many connection attempts, try again shortly"})
			return
		}

		var req struct {
			Wallet string `json:"wallet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnCF("gateway", "Invalid JSON in connect request", map[string]any{"error": err.Error()})
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
			return
		}
		if req.Wallet == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "wallet is required"})
			return
		}

		if !isReady(s) {
			status, resp := notReady(s, r)
			writeJSON(w, status, resp)
			return
		}

		bal, err := s.ConnectWallet(r.Context(), connectors.Kind(req.Wallet))
		if err != nil {
			status, resp := classifyError(err)
			writeJSON(w, status, resp)
			return
		}

		writeJSON(w, http.StatusOK, connectResponse{
			Wallet:   bal.Connector,
			Address:  bal.Address,
			Balance:  bal.Formatted,
			Raw:      bal.Raw.String(),
			Decimals: bal.Decimals,
		})

		logger.InfoCF("gateway", "Connect request processed", map[string]any{
			"wallet":  bal.Connector,
			"address": bal.Address,
		})
	})

	return mux
}

func classifyError(err error) (int, errorResponse) {
	var (
		lerr *session.LibraryLoadError
		cerr *session.ConnectError
	)
	switch {
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable, errorResponse{Error: "Wallets are still loading", Reason: "not_ready"}
	case errors.Is(err, session.ErrUnknownConnector):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Reason: "unknown_wallet"}
	case errors.Is(err, session.ErrConnectInProgress):
		return http.StatusConflict, errorResponse{Error: err.Error(), Reason: "busy"}
	case errors.As(err, &lerr), errors.Is(err, chain.ErrIncompatibleConnector):
		return http.StatusConflict, errorResponse{Error: err.Error(), Reason: "wallet_unavailable"}
	case errors.As(err, &cerr):
		status := http.StatusBadGateway
		switch cerr.Reason {
		case session.UserRejected:
			status = http.StatusForbidden
		case session.NoWallet:
			status = http.StatusNotFound
		}
		return status, errorResponse{Error: cerr.Err.Error(), Reason: string(cerr.Reason)}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

// NewLimiter turns the configured connect budget into a token bucket.
func NewLimiter(cfg config.GatewayConfig) *rate.Limiter {
	if cfg.ConnectPerMinute <= 0 {
		return nil
	}
	burst := cfg.ConnectBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.ConnectPerMinute/60), burst)
}

// NewServer wires the handler into an http.Server sized for wallet
// approval round trips.
func NewServer(cfg *config.Config, s Session) *http.Server {
	writeTimeout := cfg.Session.DiscoveryTimeout.Std() + cfg.Session.BalanceTimeout.Std() + 10*time.Second

	return &http.Server{
		Addr:         cfg.GatewayAddr(),
		Handler:      NewHandler(s, NewLimiter(cfg.Gateway)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
