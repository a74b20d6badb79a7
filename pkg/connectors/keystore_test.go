package connectors

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/algoconnect/pkg/chain"
)

func newTestKeystore(t *testing.T, pin string) *KeystoreConnector {
	t.Helper()
	c, err := loadKeystore(t.TempDir(), pin, keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	return c
}

func TestKeystore_CreateAndConnect(t *testing.T) {
	c := newTestKeystore(t, "1234")
	assert.True(t, c.Supports(chain.ModeETH))
	assert.False(t, c.Supports(chain.ModeALGO))
	assert.False(t, c.Exists())

	addr, err := c.Create("1234")
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(addr))

	_, err = c.Create("5678")
	assert.ErrorIs(t, err, ErrWalletAlreadyExists)

	acct, err := c.Connect(context.Background(), "LocalNet")
	require.NoError(t, err)
	assert.Equal(t, addr, acct.Address)
	assert.Equal(t, "keystore", acct.Connector)
}

func TestKeystore_WrongPIN(t *testing.T) {
	c := newTestKeystore(t, "9999")
	_, err := c.Create("1234")
	require.NoError(t, err)

	_, err = c.Connect(context.Background(), "LocalNet")
	assert.ErrorIs(t, err, ErrInvalidPIN)
	assert.ErrorIs(t, err, ErrUserRejected)
}

func TestKeystore_NoPINConfigured(t *testing.T) {
	c := newTestKeystore(t, "")
	_, err := c.Create("1234")
	require.NoError(t, err)

	_, err = c.Connect(context.Background(), "LocalNet")
	assert.ErrorIs(t, err, ErrUserRejected)
}

func TestKeystore_Empty(t *testing.T) {
	_, err := newTestKeystore(t, "1234").Connect(context.Background(), "LocalNet")
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestKeystore_CreateRejectsBadPIN(t *testing.T) {
	_, err := newTestKeystore(t, "").Create("12a4")
	assert.ErrorIs(t, err, ErrInvalidPINFormat)
}

func TestValidatePIN(t *testing.T) {
	for pin, want := range map[string]bool{
		"1234":  true,
		"0000":  true,
		"123":   false,
		"12345": false,
		"abcd":  false,
	} {
		if got := ValidatePIN(pin); got != want {
			t.Errorf("ValidatePIN(%q) = %v, want %v", pin, got, want)
		}
	}
}
