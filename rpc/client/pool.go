package client

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/conn"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"math/rand"
	"time"
)

var Logger = logger.GetLogger("pool")

// Pool presents several independent brokers as one. It is not safe for concurrent use.
type Pool struct {
	config  common.ClientConfig
	dialer  transport.IDialer
	session *SessionState

	// names keeps the registration order, fan-out operations follow it
	names       []string
	connections map[string]*conn.Connection

	rand *rand.Rand
	now  func() time.Time
}

// NewPool creates a pool with one connection per configured endpoint.
// No socket is opened until the first operation.
func NewPool(config common.ClientConfig, dialer transport.IDialer) *Pool {
	config = config.WithDefaults()
	p := &Pool{
		config:      config,
		dialer:      dialer,
		session:     NewSessionState(),
		connections: map[string]*conn.Connection{},
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
	for _, endpoint := range config.Endpoints {
		p.AddConnection(conn.NewConnection(endpoint, config, dialer))
	}
	return p
}

// SetRandSource replaces the random source used for connection selection and winner picking
func (p *Pool) SetRandSource(r *rand.Rand) *Pool {
	p.rand = r
	return p
}

// SetClock replaces the time source of the pool and all of its connections
func (p *Pool) SetClock(now func() time.Time) *Pool {
	p.now = now
	for _, c := range p.connections {
		c.SetClock(now)
	}
	return p
}

// Session returns the tube selection that is restored after every reconnect
func (p *Pool) Session() *SessionState {
	return p.session
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IPool in interfaces.go)
// --------------------------------------------------------------------------

func (p *Pool) AddConnection(c *conn.Connection) {
	c.SetClock(p.now)
	name := c.Name()
	if old, ok := p.connections[name]; ok {
		Logger.Infof("replacing connection %s", name)
		if err := old.Close(); err != nil {
			Logger.Debugf("closing replaced connection %s: %v", name, err)
		}
	} else {
		p.names = append(p.names, name)
	}
	p.connections[name] = c
}

func (p *Pool) GetConnection(name string) (*conn.Connection, error) {
	c, ok := p.connections[name]
	if !ok {
		return nil, &common.ClientError{Kind: common.KindUnknownConnection, Endpoint: name}
	}
	return c, nil
}

func (p *Pool) GetConnections() []*conn.Connection {
	conns := make([]*conn.Connection, 0, len(p.names))
	for _, name := range p.names {
		conns = append(conns, p.connections[name])
	}
	return conns
}

func (p *Pool) Close() error {
	var first error
	for _, c := range p.GetConnections() {
		if err := c.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing %s", c.Name())
		}
	}
	return first
}

// --------------------------------------------------------------------------
// Selection, dispatch and reconnect
// --------------------------------------------------------------------------

// selectConnection returns a usable connection, trying them in random order
func (p *Pool) selectConnection() (*conn.Connection, error) {
	names := append([]string(nil), p.names...)
	p.rand.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})

	for _, name := range names {
		c := p.connections[name]
		if p.ensureReady(c) {
			return c, nil
		}
	}
	countExhausted()
	return nil, errors.WithStack(common.ErrPoolExhausted)
}

// ensureReady reports whether the connection can be used now. An inactive connection is
// only reconnected once its backoff elapsed; a connection without a socket is (re)connected
// with its session state restored.
func (p *Pool) ensureReady(c *conn.Connection) bool {
	if c.State() == conn.Inactive && !c.ReconnectDue() {
		return false
	}
	if c.State() != conn.Inactive && c.Connected() {
		return true
	}
	return p.reconnectAndRestore(c)
}

// reconnectAndRestore opens a new socket and replays the session state onto it
func (p *Pool) reconnectAndRestore(c *conn.Connection) bool {
	ok := c.Reconnect()
	countReconnect(c.Name(), ok)
	if !ok {
		return false
	}

	for _, cmd := range p.session.restoreCommands() {
		if _, err := c.Dispatch(cmd); err != nil {
			Logger.Warningf("restoring session on %s failed at '%s': %v", c.Name(), cmd, err)
			c.SetInactive()
			return false
		}
	}
	return true
}

// dispatch runs one exchange. A transport error leads to exactly one reconnect and one retry.
func (p *Pool) dispatch(c *conn.Connection, cmd proto.ICommand) (*proto.Response, error) {
	countDispatch(c.Name())
	resp, err := c.Dispatch(cmd)
	if err == nil || !common.IsTransportError(err) {
		return resp, err
	}

	Logger.Infof("'%s' on %s failed, reconnecting: %v", cmd, c.Name(), err)
	if !p.reconnectAndRestore(c) {
		// the failed reconnect left the connection inactive
		return nil, err
	}

	countRetry(c.Name())
	resp, err = c.Dispatch(cmd)
	if err != nil && common.IsTransportError(err) {
		c.SetInactive()
	}
	return resp, err
}

// exchange dispatches to a specific connection if it is usable
func (p *Pool) exchange(c *conn.Connection, cmd proto.ICommand) (*proto.Response, error) {
	if !p.ensureReady(c) {
		return nil, common.NewConnectionError(c.Name(),
			errors.Errorf("endpoint is inactive until %s", c.NextReconnect().Format(time.RFC3339)))
	}
	return p.dispatch(c, cmd)
}

// exchangeWith dispatches to the named connection, or to a selected one if name is empty
func (p *Pool) exchangeWith(name string, cmd proto.ICommand) (*proto.Response, *conn.Connection, error) {
	if name == "" {
		c, err := p.selectConnection()
		if err != nil {
			return nil, nil, err
		}
		resp, err := p.dispatch(c, cmd)
		return resp, c, err
	}

	c, err := p.GetConnection(name)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.exchange(c, cmd)
	return resp, c, err
}

// --------------------------------------------------------------------------
// Broadcast
// --------------------------------------------------------------------------

// endpointResult is the response of one broker to a broadcast command
type endpointResult struct {
	conn *conn.Connection
	resp *proto.Response
}

// broadcast sends the command to every usable connection in registration order.
// Transport failures are skipped (the connection is marked inactive by dispatch).
// Broker and protocol errors do not stop the broadcast, the first one is returned after it.
// If skipNotFound is set, NOT_FOUND answers are skipped too.
// If no broker answered, the result is ErrPoolExhausted (or the NOT_FOUND error).
func (p *Pool) broadcast(cmd proto.ICommand, skipNotFound bool) ([]endpointResult, error) {
	var (
		results  []endpointResult
		firstErr error
		notFound error
	)

	for _, c := range p.GetConnections() {
		if !p.ensureReady(c) {
			Logger.Debugf("skipping %s for '%s', endpoint is inactive", c.Name(), cmd)
			continue
		}

		resp, err := p.dispatch(c, cmd)
		switch {
		case err == nil:
			results = append(results, endpointResult{conn: c, resp: resp})
		case common.IsTransportError(err):
			Logger.Warningf("'%s' failed on %s: %v", cmd, c.Name(), err)
		case skipNotFound && errors.Is(err, common.ErrServerNotFound):
			notFound = err
		case firstErr == nil:
			firstErr = errors.Wrapf(err, "%s", c.Name())
		}
	}

	if firstErr != nil {
		return results, firstErr
	}
	if len(results) == 0 {
		if notFound != nil {
			return nil, notFound
		}
		countExhausted()
		return nil, errors.WithStack(common.ErrPoolExhausted)
	}
	return results, nil
}

// broadcastSession sends a tube selection command to every broker and records it in
// the session with apply. Unreachable brokers get the selection when their session is
// restored. A broker that rejects the command while others accept it is reconnected
// right away, so its subscription is rebuilt from the session. Only if no broker
// accepted it and at least one rejected it, the session stays unchanged and the
// rejection is returned.
func (p *Pool) broadcastSession(cmd proto.ICommand, apply func()) error {
	var (
		accepted int
		rejected []*conn.Connection
		firstErr error
	)

	for _, c := range p.GetConnections() {
		if !p.ensureReady(c) {
			Logger.Debugf("skipping %s for '%s', endpoint is inactive", c.Name(), cmd)
			continue
		}

		_, err := p.dispatch(c, cmd)
		switch {
		case err == nil:
			accepted++
		case common.IsTransportError(err):
			Logger.Warningf("'%s' failed on %s, it is applied on reconnect: %v", cmd, c.Name(), err)
		default:
			Logger.Warningf("'%s' rejected by %s: %v", cmd, c.Name(), err)
			rejected = append(rejected, c)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "%s", c.Name())
			}
		}
	}

	if accepted == 0 && firstErr != nil {
		return firstErr
	}
	if accepted == 0 {
		countExhausted()
		Logger.Infof("no broker reachable for '%s', it is applied on reconnect", cmd)
	}

	apply()
	for _, c := range rejected {
		if !p.reconnectAndRestore(c) {
			Logger.Warningf("restoring the session of %s failed, it stays inactive", c.Name())
		}
	}
	return nil
}
