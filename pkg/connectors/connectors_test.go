package connectors

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/algoconnect/pkg/config"
)

func TestModules_FollowsEnabledWallets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Wallets.MyAlgo.ListenAddr = "127.0.0.1:0"
	cfg.Wallets.Pera.BridgeURL = "wss://bridge.example.org"

	mods := Modules(cfg, io.Discard)
	require.Len(t, mods, 2)
	assert.Equal(t, KindMyAlgo, mods[0].Kind)
	assert.Equal(t, KindPera, mods[1].Kind)

	for _, m := range mods {
		conn, err := m.Load(context.Background())
		require.NoError(t, err, m.Kind)
		assert.Equal(t, string(m.Kind), conn.Name())
	}

	cfg.Wallets.Pera.Enabled = false
	cfg.Wallets.Keystore.Enabled = true
	cfg.Wallets.Keystore.Dir = t.TempDir()

	mods = Modules(cfg, io.Discard)
	require.Len(t, mods, 2)
	assert.Equal(t, KindKeystore, mods[1].Kind)
}

func TestModules_LoadFailureReturnsNilConnector(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Wallets.MyAlgo.Enabled = false
	cfg.Wallets.Pera.BridgeURL = "ftp://nowhere"

	mods := Modules(cfg, io.Discard)
	require.Len(t, mods, 1)

	conn, err := mods[0].Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, conn)
}
