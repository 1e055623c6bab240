package conn

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"time"
)

var Logger = logger.GetLogger("conn")

const (
	crlf       = "\r\n"
	crlfLength = 2
)

// --------------------------------------------------------------------------
// Connection state
// --------------------------------------------------------------------------

// State is the health of a connection
type State int

const (
	// Unconnected means no socket was ever opened (or the connection was closed)
	Unconnected State = iota
	// Active means the socket is open and the last exchange succeeded
	Active
	// Inactive means a failure occurred, the connection is under backoff
	Inactive
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection owns one lazily created socket to one broker.
// It is not safe for concurrent use.
type Connection struct {
	endpoint       common.EndpointConfig
	name           string
	connectTimeout time.Duration
	ioTimeout      time.Duration
	backoff        time.Duration
	maxPayload     int

	dialer transport.IDialer
	socket transport.ISocket
	dialed bool

	state         State
	nextReconnect time.Time
	now           func() time.Time
}

// NewConnection creates an unconnected connection. No socket is opened until the first exchange.
func NewConnection(endpoint common.EndpointConfig, config common.ClientConfig, dialer transport.IDialer) *Connection {
	config = config.WithDefaults()
	return &Connection{
		endpoint:       endpoint,
		name:           endpoint.Name(),
		connectTimeout: config.ConnectTimeoutFor(endpoint),
		ioTimeout:      config.IOTimeout,
		backoff:        config.ReconnectBackoff,
		maxPayload:     config.MaxPayloadLength,
		dialer:         dialer,
		state:          Unconnected,
		now:            time.Now,
	}
}

// SetClock replaces the time source used for the reconnect backoff
func (c *Connection) SetClock(now func() time.Time) *Connection {
	c.now = now
	return c
}

// SetName overrides the endpoint name used as pool key
func (c *Connection) SetName(name string) *Connection {
	c.name = name
	return c
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) Host() string {
	return c.endpoint.Host
}

func (c *Connection) Port() int {
	return c.endpoint.Port
}

func (c *Connection) Endpoint() common.EndpointConfig {
	return c.endpoint
}

func (c *Connection) ConnectTimeout() time.Duration {
	return c.connectTimeout
}

func (c *Connection) State() State {
	return c.state
}

// IsActive reports whether the connection may be used without a reconnect.
// An unconnected connection counts as active, it connects lazily.
func (c *Connection) IsActive() bool {
	return c.state != Inactive
}

// Connected reports whether a socket is currently open
func (c *Connection) Connected() bool {
	return c.socket != nil
}

// NextReconnect returns the instant from which an inactive connection may be retried
func (c *Connection) NextReconnect() time.Time {
	return c.nextReconnect
}

// ReconnectDue reports whether the backoff of an inactive connection has elapsed
func (c *Connection) ReconnectDue() bool {
	return c.state == Inactive && !c.now().Before(c.nextReconnect)
}

// --------------------------------------------------------------------------
// Health
// --------------------------------------------------------------------------

// SetActive marks the connection healthy and clears the backoff
func (c *Connection) SetActive() {
	c.state = Active
	c.nextReconnect = time.Time{}
}

// SetInactive marks the connection failed; it becomes eligible for a reconnect after the backoff
func (c *Connection) SetInactive() {
	c.state = Inactive
	c.nextReconnect = c.now().Add(c.backoff)
	Logger.Debugf("%s marked inactive until %s", c.name, c.nextReconnect.Format(time.RFC3339))
}

// Reconnect drops any existing socket and opens a new one.
// The result is recorded as active or inactive.
func (c *Connection) Reconnect() bool {
	c.discardSocket()
	return c.isServiceListening()
}

// Close closes the socket, the connection becomes unconnected
func (c *Connection) Close() error {
	var err error
	if c.socket != nil {
		err = c.socket.Close()
		c.socket = nil
	}
	c.dialed = false
	c.state = Unconnected
	c.nextReconnect = time.Time{}
	return err
}

// isServiceListening opens the socket if needed and records the outcome
func (c *Connection) isServiceListening() bool {
	if _, err := c.getSocket(); err != nil {
		Logger.Warningf("%s is not reachable: %v", c.name, err)
		c.SetInactive()
		return false
	}
	c.SetActive()
	return true
}

// --------------------------------------------------------------------------
// Exchange
// --------------------------------------------------------------------------

// Dispatch sends the command and reads its response
func (c *Connection) Dispatch(cmd proto.ICommand) (*proto.Response, error) {
	if err := c.Send(cmd); err != nil {
		return nil, err
	}
	return c.Read(cmd)
}

// Send writes the command line and, if present, the payload, each followed by CRLF
func (c *Connection) Send(cmd proto.ICommand) error {
	socket, err := c.socketForSend()
	if err != nil {
		return err
	}

	line := cmd.CommandLine()
	buf := make([]byte, 0, len(line)+crlfLength+len(cmd.Payload())+crlfLength)
	buf = append(buf, line...)
	buf = append(buf, crlf...)
	if cmd.HasPayload() {
		buf = append(buf, cmd.Payload()...)
		buf = append(buf, crlf...)
	}

	socket.SetTimeout(c.ioTimeout)
	if err := socket.Write(buf); err != nil {
		c.discardSocket()
		return common.NewSocketError(c.name, "write '"+cmd.String()+"'", err)
	}
	Logger.Debugf("%s <- %s", c.name, line)
	return nil
}

// Read reads and frames one response and hands it to the command's parser
func (c *Connection) Read(cmd proto.ICommand) (*proto.Response, error) {
	if c.socket == nil {
		return nil, common.NewSocketError(c.name, "read '"+cmd.String()+"'", errors.New("no socket"))
	}

	timeout := c.ioTimeout
	if blocking, ok := cmd.(proto.IBlockingCommand); ok && timeout > 0 {
		timeout += blocking.BlockFor()
	}
	c.socket.SetTimeout(timeout)

	line, err := c.socket.ReadLine()
	if err != nil {
		c.discardSocket()
		return nil, common.NewSocketError(c.name, "read response to '"+cmd.String()+"'", err)
	}
	Logger.Debugf("%s -> %s", c.name, line)

	name := proto.ResponseName(line)
	class, code := proto.Classify(name)

	var data []byte
	switch class {
	case proto.ClassGlobalError:
		return nil, &common.ServerError{Code: code, Response: line, Command: cmd.String()}

	case proto.ClassData:
		data, err = c.readPayload(line)
		if err != nil {
			return nil, err
		}
	}

	resp, err := cmd.ResponseParser().ParseResponse(line, data)
	if err != nil && errors.Is(err, common.ErrProtocol) {
		c.dropMalformed()
		return nil, errors.Wrapf(err, "%s", c.name)
	}
	return resp, err
}

// readPayload reads <bytes> of data and the terminating CRLF of a data-bearing response
func (c *Connection) readPayload(line string) ([]byte, error) {
	length, err := proto.DataLength(line)
	if err != nil {
		c.dropMalformed()
		return nil, common.NewProtocolError(c.name, "no byte count in %q", line)
	}
	if length > c.maxPayload {
		c.dropMalformed()
		return nil, common.NewProtocolError(c.name, "declared %d bytes, more than the limit of %d", length, c.maxPayload)
	}

	data, err := c.socket.ReadFull(length)
	if err != nil {
		c.discardSocket()
		return nil, common.NewSocketError(c.name, "read payload", err)
	}

	terminator, err := c.socket.ReadFull(crlfLength)
	if err != nil {
		c.discardSocket()
		return nil, common.NewSocketError(c.name, "read payload terminator", err)
	}
	if string(terminator) != crlf {
		c.dropMalformed()
		return nil, common.NewProtocolError(c.name, "expected %d bytes of CRLF after %d bytes of data", crlfLength, length)
	}
	return data, nil
}

// --------------------------------------------------------------------------
// Socket handling
// --------------------------------------------------------------------------

// getSocket returns the socket, dialing it if absent
func (c *Connection) getSocket() (transport.ISocket, error) {
	if c.socket != nil {
		return c.socket, nil
	}
	socket, err := c.dialer.Dial(c.endpoint, c.connectTimeout)
	if err != nil {
		return nil, common.NewConnectionError(c.name, err)
	}
	socket.SetTimeout(c.ioTimeout)
	c.socket = socket
	c.dialed = true
	if c.state == Unconnected {
		c.state = Active
	}
	Logger.Infof("connected to %s", c.name)
	return socket, nil
}

// socketForSend dials lazily only for a connection that never had a socket.
// A socket lost after a failure must come back through Reconnect so the
// owner can restore its session state on it.
func (c *Connection) socketForSend() (transport.ISocket, error) {
	if c.socket == nil && c.dialed {
		return nil, common.NewSocketError(c.name, "send", errors.New("socket was discarded, reconnect required"))
	}
	return c.getSocket()
}

// discardSocket closes and forgets the socket
func (c *Connection) discardSocket() {
	if c.socket == nil {
		return
	}
	if err := c.socket.Close(); err != nil {
		Logger.Debugf("closing socket of %s: %v", c.name, err)
	}
	c.socket = nil
}

// dropMalformed is used after a framing error, the stream position is unknown
func (c *Connection) dropMalformed() {
	Logger.Warningf("%s sent a malformed response, dropping the socket", c.name)
	c.discardSocket()
}
