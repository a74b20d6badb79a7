package connectors

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBridge runs a one-wallet WalletConnect bridge: it reads the session
// request and publishes respond's answer on the requester's peer topic.
func newBridge(t *testing.T, respond func(req sessionRequest) *sessionResponse) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg bridgeMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "pub" {
				continue
			}

			var req sessionRequest
			if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
				return
			}
			resp := respond(req)
			if resp == nil {
				continue
			}

			// noise on another topic is ignored by the connector
			conn.WriteJSON(bridgeMessage{Topic: "other", Type: "pub", Payload: `{"approved":true,"accounts":["X"]}`})

			payload, _ := json.Marshal(resp)
			conn.WriteJSON(bridgeMessage{Topic: req.PeerID, Type: "pub", Payload: string(payload)})
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPera_Approved(t *testing.T) {
	envs := make(chan string, 1)
	bridge := newBridge(t, func(req sessionRequest) *sessionResponse {
		envs <- req.ProviderEnv
		return &sessionResponse{Approved: true, Accounts: []string{testAlgoAddress}}
	})

	c, err := LoadPera(context.Background(), bridge, true, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acct, err := c.Connect(ctx, "TestNet")
	require.NoError(t, err)
	assert.Equal(t, testAlgoAddress, acct.Address)
	assert.Equal(t, "pera", acct.Connector)
	assert.Equal(t, "TestNet", <-envs)
}

func TestPera_Rejected(t *testing.T) {
	bridge := newBridge(t, func(req sessionRequest) *sessionResponse {
		return &sessionResponse{Approved: false, Message: "declined"}
	})

	c, err := LoadPera(context.Background(), bridge, false, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, ErrUserRejected)
}

func TestPera_ApprovedWithoutAccounts(t *testing.T) {
	bridge := newBridge(t, func(req sessionRequest) *sessionResponse {
		return &sessionResponse{Approved: true}
	})

	c, err := LoadPera(context.Background(), bridge, false, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestPera_ContextCancelUnblocks(t *testing.T) {
	bridge := newBridge(t, func(req sessionRequest) *sessionResponse { return nil })

	c, err := LoadPera(context.Background(), bridge, false, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadPera_RejectsNonWebsocketURL(t *testing.T) {
	_, err := LoadPera(context.Background(), "https://bridge.example.org", false, io.Discard)
	assert.Error(t, err)
}

func TestPera_PairingURI(t *testing.T) {
	c, err := LoadPera(context.Background(), "wss://bridge.example.org", false, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "wc:abc@1?bridge=wss%3A%2F%2Fbridge.example.org", c.PairingURI("abc"))
}
