package testing

import (
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/ValentinKolb/dTube/rpc/transport/base"
	"net"
	"sync"
	"time"
)

// Dialer implements transport.IDialer by connecting to in-memory brokers over net.Pipe.
// Endpoints without a registered broker are refused.
type Dialer struct {
	mu      sync.Mutex
	brokers map[string]*Broker
}

// NewDialer creates a dialer that reaches the given brokers by their names
func NewDialer(brokers ...*Broker) *Dialer {
	d := &Dialer{brokers: map[string]*Broker{}}
	for _, b := range brokers {
		d.brokers[b.Name()] = b
	}
	return d
}

// Add registers another broker
func (d *Dialer) Add(b *Broker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brokers[b.Name()] = b
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDialer)
// --------------------------------------------------------------------------

func (d *Dialer) GetName() string {
	return "memory"
}

func (d *Dialer) Dial(endpoint common.EndpointConfig, _ time.Duration) (transport.ISocket, error) {
	d.mu.Lock()
	b, ok := d.brokers[endpoint.Name()]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", endpoint.Name())
	}

	client, server := net.Pipe()
	if err := b.accept(server); err != nil {
		_ = client.Close()
		_ = server.Close()
		return nil, err
	}
	return base.NewSocket(client, common.DefaultIOTimeout), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// Endpoint returns a tcp endpoint config for "host:port" names used in tests
func Endpoint(host string, port int) common.EndpointConfig {
	return common.EndpointConfig{Host: host, Port: port}
}

// Cluster creates one broker per endpoint and a dialer reaching all of them
func Cluster(endpoints ...common.EndpointConfig) (*Dialer, []*Broker) {
	brokers := make([]*Broker, 0, len(endpoints))
	for _, e := range endpoints {
		brokers = append(brokers, NewBroker(e.Name()))
	}
	return NewDialer(brokers...), brokers
}
