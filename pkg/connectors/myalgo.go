package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/logger"
)

// MyAlgoConnector waits for the MyAlgo web wallet to post the approved
// accounts back to a short-lived local callback endpoint.
type MyAlgoConnector struct {
	listenAddr string
	notify     func(approvalURL string)
}

type myAlgoCallback struct {
	Nonce    string   `json:"nonce"`
	Accounts []string `json:"accounts"`
	Error    string   `json:"error,omitempty"`
}

// LoadMyAlgo checks the callback address can be bound.
func LoadMyAlgo(ctx context.Context, listenAddr string, out io.Writer) (*MyAlgoConnector, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("myalgo callback address %s unavailable: %w", listenAddr, err)
	}
	ln.Close()

	return &MyAlgoConnector{
		listenAddr: listenAddr,
		notify: func(approvalURL string) {
			fmt.Fprintf(out, "Approve the MyAlgo connection at %s\n", approvalURL)
		},
	}, nil
}

func (c *MyAlgoConnector) Name() string { return string(KindMyAlgo) }

func (c *MyAlgoConnector) Supports(mode chain.Mode) bool { return mode == chain.ModeALGO }

// Connect serves the callback until an answer arrives or ctx ends.
func (c *MyAlgoConnector) Connect(ctx context.Context, providerEnv string) (chain.Account, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.listenAddr)
	if err != nil {
		return chain.Account{}, fmt.Errorf("failed to open myalgo callback: %w", err)
	}

	nonce := uuid.NewString()
	results := make(chan myAlgoCallback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// the nonce only travels in the approval URL
		json.NewEncoder(w).Encode(map[string]string{
			"wallet":       "MyAlgo",
			"provider_env": providerEnv,
			"callback":     "/callback",
		})
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var cb myAlgoCallback
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&cb); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if cb.Nonce != nonce {
			http.Error(w, "Unknown session", http.StatusForbidden)
			return
		}

		select {
		case results <- cb:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Already answered", http.StatusConflict)
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WarnCF("myalgo", "Callback server stopped", map[string]any{"error": err.Error()})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	approvalURL := fmt.Sprintf("http://%s/?nonce=%s", ln.Addr().String(), nonce)
	logger.DebugCF("myalgo", "Waiting for approval", map[string]any{"url": approvalURL})
	c.notify(approvalURL)

	select {
	case <-ctx.Done():
		return chain.Account{}, ctx.Err()
	case cb := <-results:
		switch {
		case cb.Error != "":
			return chain.Account{}, fmt.Errorf("%w: %s", ErrUserRejected, cb.Error)
		case len(cb.Accounts) == 0:
			return chain.Account{}, ErrNoWallet
		}
		return chain.Account{Address: cb.Accounts[0], Connector: c.Name()}, nil
	}
}
