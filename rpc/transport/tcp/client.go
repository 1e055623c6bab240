package tcp

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/ValentinKolb/dTube/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct {
	keepAlive time.Duration
	noDelay   bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Accepts(endpoint common.EndpointConfig) bool {
	return endpoint.Path == "" && endpoint.Host != "" && endpoint.Port > 0
}

func (c *clientConnector) Connect(endpoint common.EndpointConfig, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout, KeepAlive: c.keepAlive}
	return dialer.Dial("tcp", endpoint.Name())
}

func (c *clientConnector) UpgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcpConn.SetNoDelay(c.noDelay)
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// NewConnector returns the tcp connector, for use with base.NewBaseDialer
func NewConnector() base.IClientConnector {
	return &clientConnector{keepAlive: 30 * time.Second, noDelay: true}
}

// NewTCPDialer creates a dialer for tcp endpoints only
func NewTCPDialer() transport.IDialer {
	return base.NewBaseDialer(NewConnector())
}
