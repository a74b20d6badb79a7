package session

import (
	"errors"
	"fmt"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/connectors"
)

var (
	// ErrNotReady is returned when an operation runs before its prerequisite:
	// SelectConnector before Initialize, or Connect before SelectConnector.
	ErrNotReady = errors.New("wallet session not ready")

	// ErrUnknownConnector is returned when selecting a wallet that was never configured
	ErrUnknownConnector = errors.New("unknown wallet connector")

	// ErrConnectInProgress is returned when another wallet is mid-connect
	ErrConnectInProgress = errors.New("another wallet connection is in progress")
)

// LibraryLoadError reports a client library or connector module that failed to load.
type LibraryLoadError struct {
	Module string
	Err    error
}

func (e *LibraryLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Module, e.Err)
}

func (e *LibraryLoadError) Unwrap() error { return e.Err }

// Reason classifies a failed connection attempt.
type Reason string

const (
	UserRejected Reason = "user_rejected"
	NoWallet     Reason = "no_wallet"
	NetworkError Reason = "network_error"
)

// ConnectError is a recoverable, user-visible connection failure.
type ConnectError struct {
	Reason    Reason
	Connector string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s: %v", e.Connector, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func classify(err error) Reason {
	switch {
	case errors.Is(err, connectors.ErrUserRejected):
		return UserRejected
	case errors.Is(err, connectors.ErrNoWallet), errors.Is(err, chain.ErrInvalidAddress):
		return NoWallet
	default:
		return NetworkError
	}
}
