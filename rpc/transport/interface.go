package transport

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"time"
)

// --------------------------------------------------------------------------
// Socket
// --------------------------------------------------------------------------

// ISocket is a single established byte stream to a broker.
// Every operation is bounded by the socket's timeout; a timed-out operation returns an error.
type ISocket interface {
	// Write writes all bytes or fails
	Write(data []byte) error
	// ReadLine reads up to the next line terminator and returns the line without it
	ReadLine() (string, error)
	// ReadFull reads exactly n bytes
	ReadFull(n int) ([]byte, error)
	// SetTimeout changes the bound applied to every following operation
	SetTimeout(timeout time.Duration)
	// Timeout returns the current bound
	Timeout() time.Duration
	// Close closes the underlying connection
	Close() error
}

// --------------------------------------------------------------------------
// Dialer
// --------------------------------------------------------------------------

// IDialer creates sockets. Every Connection owns a reference to one dialer,
// tests inject their own implementation to script broker behaviour.
type IDialer interface {
	// Dial opens a socket to the endpoint, giving up after connectTimeout
	Dial(endpoint common.EndpointConfig, connectTimeout time.Duration) (ISocket, error)
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}
