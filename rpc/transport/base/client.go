package base

import (
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"strings"
	"time"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint common.EndpointConfig, timeout time.Duration) (net.Conn, error)

	// Accepts reports whether the connector can reach the endpoint (e.g. tcp needs host and port)
	Accepts(endpoint common.EndpointConfig) bool

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Dialer
// -----------------------------------------------------------

// clientDialer implements transport.IDialer on top of one or more connectors
type clientDialer struct {
	connectors []IClientConnector
}

// NewBaseDialer creates a dialer that uses the first connector accepting an endpoint
func NewBaseDialer(connectors ...IClientConnector) transport.IDialer {
	return &clientDialer{connectors: connectors}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDialer)
// --------------------------------------------------------------------------

func (d *clientDialer) GetName() string {
	names := make([]string, 0, len(d.connectors))
	for _, c := range d.connectors {
		names = append(names, c.GetName())
	}
	return strings.Join(names, "+")
}

func (d *clientDialer) Dial(endpoint common.EndpointConfig, connectTimeout time.Duration) (transport.ISocket, error) {
	for _, connector := range d.connectors {
		if !connector.Accepts(endpoint) {
			continue
		}

		conn, err := connector.Connect(endpoint, connectTimeout)
		if err != nil {
			return nil, err
		}

		// Upgrade the connection with protocol-specific settings
		if err := connector.UpgradeConnection(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to upgrade connection to %s: %v", endpoint.Name(), err)
		}

		Logger.Debugf("opened %s socket to %s", connector.GetName(), endpoint.Name())
		return NewSocket(conn, common.DefaultIOTimeout), nil
	}
	return nil, fmt.Errorf("no %s connector accepts endpoint %s", d.GetName(), endpoint.Name())
}
