package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mdp/qrterminal/v3"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/logger"
)

// bridgeMessage is the pub/sub envelope spoken by the WalletConnect bridge.
type bridgeMessage struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"` // "pub" or "sub"
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

// sessionRequest is published on the handshake topic for the wallet to pick up.
type sessionRequest struct {
	PeerID      string `json:"peerId"`
	ProviderEnv string `json:"providerEnv"`
	ChainFamily string `json:"chain"`
}

// sessionResponse is what the wallet publishes back on the peer topic.
type sessionResponse struct {
	Approved bool     `json:"approved"`
	Accounts []string `json:"accounts"`
	Message  string   `json:"message,omitempty"`
}

// PeraConnector pairs with Pera Wallet through a WalletConnect bridge.
// The pairing URI is shown as a terminal QR code for the phone to scan.
type PeraConnector struct {
	bridgeURL string
	dialer    *websocket.Dialer
	showURI   func(uri string)
}

// LoadPera validates the bridge URL. No connection is opened until Connect.
func LoadPera(ctx context.Context, bridgeURL string, showQR bool, out io.Writer) (*PeraConnector, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pera bridge url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("pera bridge url must be ws:// or wss://, got %q", bridgeURL)
	}

	return &PeraConnector{
		bridgeURL: bridgeURL,
		dialer:    websocket.DefaultDialer,
		showURI: func(uri string) {
			fmt.Fprintf(out, "Scan with Pera Wallet or open: %s\n", uri)
			if showQR {
				qrterminal.GenerateHalfBlock(uri, qrterminal.L, out)
			}
		},
	}, nil
}

func (c *PeraConnector) Name() string { return string(KindPera) }

func (c *PeraConnector) Supports(mode chain.Mode) bool { return mode == chain.ModeALGO }

// PairingURI is the wc: URI a wallet scans to join handshakeTopic.
func (c *PeraConnector) PairingURI(handshakeTopic string) string {
	return fmt.Sprintf("wc:%s@1?bridge=%s", handshakeTopic, url.QueryEscape(c.bridgeURL))
}

func (c *PeraConnector) Connect(ctx context.Context, providerEnv string) (chain.Account, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.bridgeURL, nil)
	if err != nil {
		return chain.Account{}, fmt.Errorf("failed to reach walletconnect bridge: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	handshakeTopic := uuid.NewString()
	peerTopic := uuid.NewString()

	if err := conn.WriteJSON(bridgeMessage{Topic: peerTopic, Type: "sub", Silent: true}); err != nil {
		return chain.Account{}, fmt.Errorf("failed to subscribe to bridge: %w", err)
	}

	req, _ := json.Marshal(sessionRequest{
		PeerID:      peerTopic,
		ProviderEnv: providerEnv,
		ChainFamily: string(chain.ModeALGO),
	})
	if err := conn.WriteJSON(bridgeMessage{Topic: handshakeTopic, Type: "pub", Payload: string(req), Silent: true}); err != nil {
		return chain.Account{}, fmt.Errorf("failed to publish session request: %w", err)
	}

	logger.InfoCF("pera", "Waiting for wallet approval", map[string]any{
		"bridge": c.bridgeURL,
		"topic":  handshakeTopic,
	})
	c.showURI(c.PairingURI(handshakeTopic))

	for {
		var msg bridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return chain.Account{}, ctx.Err()
			}
			return chain.Account{}, fmt.Errorf("walletconnect bridge closed: %w", err)
		}
		if msg.Type != "pub" || msg.Topic != peerTopic {
			continue
		}

		var resp sessionResponse
		if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
			logger.WarnCF("pera", "Ignoring malformed session response", map[string]any{"error": err.Error()})
			continue
		}

		switch {
		case !resp.Approved:
			if resp.Message != "" {
				return chain.Account{}, fmt.Errorf("%w: %s", ErrUserRejected, resp.Message)
			}
			return chain.Account{}, ErrUserRejected
		case len(resp.Accounts) == 0:
			return chain.Account{}, ErrNoWallet
		}
		return chain.Account{Address: resp.Accounts[0], Connector: c.Name()}, nil
	}
}
