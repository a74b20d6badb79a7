package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/algoconnect/pkg/chain"
)

const testAlgoAddress = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"

// answerWith makes the connector's approval prompt post cb to the callback.
func answerWith(t *testing.T, c *MyAlgoConnector, cb func(nonce string) myAlgoCallback) {
	t.Helper()
	c.notify = func(approvalURL string) {
		u, err := url.Parse(approvalURL)
		if err != nil {
			t.Errorf("parse approval url: %v", err)
			return
		}
		body, _ := json.Marshal(cb(u.Query().Get("nonce")))
		go func() {
			resp, err := http.Post("http://"+u.Host+"/callback", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Errorf("post callback: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
}

func TestMyAlgo_Approved(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)
	assert.True(t, c.Supports(chain.ModeALGO))
	assert.False(t, c.Supports(chain.ModeETH))

	answerWith(t, c, func(nonce string) myAlgoCallback {
		return myAlgoCallback{Nonce: nonce, Accounts: []string{testAlgoAddress}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acct, err := c.Connect(ctx, "TestNet")
	require.NoError(t, err)
	assert.Equal(t, testAlgoAddress, acct.Address)
	assert.Equal(t, "myalgo", acct.Connector)
}

func TestMyAlgo_Rejected(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)
	answerWith(t, c, func(nonce string) myAlgoCallback {
		return myAlgoCallback{Nonce: nonce, Error: "user closed the popup"}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, ErrUserRejected)
}

func TestMyAlgo_NoAccounts(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)
	answerWith(t, c, func(nonce string) myAlgoCallback {
		return myAlgoCallback{Nonce: nonce}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestMyAlgo_TimesOutWithoutAnswer(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)
	c.notify = func(string) {}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadMyAlgo_BadAddress(t *testing.T) {
	_, err := LoadMyAlgo(context.Background(), "not-an-address", io.Discard)
	assert.Error(t, err)
}

func TestMyAlgo_InfoDoesNotExposeNonce(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)

	var info map[string]string
	var nonce string
	c.notify = func(approvalURL string) {
		u, err := url.Parse(approvalURL)
		if err != nil {
			t.Errorf("parse approval url: %v", err)
			return
		}
		nonce = u.Query().Get("nonce")

		resp, err := http.Get("http://" + u.Host + "/")
		if err != nil {
			t.Errorf("get info: %v", err)
			return
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			t.Errorf("decode info: %v", err)
		}

		body, _ := json.Marshal(myAlgoCallback{Nonce: nonce, Accounts: []string{testAlgoAddress}})
		go func() {
			resp, err := http.Post("http://"+u.Host+"/callback", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Errorf("post callback: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	assert.Equal(t, "TestNet", info["provider_env"])
	_, leaked := info["nonce"]
	assert.False(t, leaked)
	for _, v := range info {
		assert.NotEqual(t, nonce, v)
	}
}

func TestMyAlgo_CallbackRejectsWrongNonce(t *testing.T) {
	c, err := LoadMyAlgo(context.Background(), "127.0.0.1:0", io.Discard)
	require.NoError(t, err)

	codes := make(chan int, 1)
	c.notify = func(approvalURL string) {
		u, _ := url.Parse(approvalURL)
		body, _ := json.Marshal(myAlgoCallback{Nonce: "guessed", Accounts: []string{testAlgoAddress}})
		go func() {
			resp, err := http.Post("http://"+u.Host+"/callback", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Errorf("post callback: %v", err)
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = c.Connect(ctx, "TestNet")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, http.StatusForbidden, <-codes)
}
