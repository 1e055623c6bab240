package unix

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/ValentinKolb/dTube/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Accepts(endpoint common.EndpointConfig) bool {
	return endpoint.Path != ""
}

func (c *clientConnector) Connect(endpoint common.EndpointConfig, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint.Path, timeout)
}

func (c *clientConnector) UpgradeConnection(_ net.Conn) error {
	return nil
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// NewConnector returns the unix connector, for use with base.NewBaseDialer
func NewConnector() base.IClientConnector {
	return &clientConnector{}
}

// NewUnixDialer creates a dialer for unix socket endpoints only
func NewUnixDialer() transport.IDialer {
	return base.NewBaseDialer(NewConnector())
}
