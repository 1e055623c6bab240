package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Protocol defaults
// --------------------------------------------------------------------------

const (
	// DefaultTube is the tube every broker connection uses and watches after connecting
	DefaultTube = "default"
	// DefaultPort is the port beanstalkd listens on by default
	DefaultPort = 11300
	// DefaultPriority is the priority given to jobs when the caller has no preference (0 is most urgent)
	DefaultPriority uint32 = 1024
	// DefaultDelay is the delay before a put job becomes ready
	DefaultDelay time.Duration = 0
	// DefaultTTR is the time a worker may hold a reserved job before the broker releases it again
	DefaultTTR = 60 * time.Second

	// DefaultConnectTimeout is used for endpoints that do not set their own connect timeout
	DefaultConnectTimeout = 2 * time.Second
	// DefaultReconnectBackoff is how long a failed connection is left alone before it is retried
	DefaultReconnectBackoff = 10 * time.Second
	// DefaultIOTimeout bounds a single read or write on an established socket
	DefaultIOTimeout = 10 * time.Second
	// DefaultMaxPayloadLength is the largest job body accepted from a broker (beanstalkd's -z ceiling, 1 GiB)
	DefaultMaxPayloadLength = 1 << 30
)

// --------------------------------------------------------------------------
// Endpoint configuration
// --------------------------------------------------------------------------

// EndpointConfig describes a single broker. A unix endpoint sets Path instead of Host and Port.
type EndpointConfig struct {
	Host string
	Port int
	Path string
	// ConnectTimeout overrides ClientConfig.ConnectTimeout if > 0
	ConnectTimeout time.Duration
}

// Name returns the stable key of the endpoint (host:port, or the socket path)
func (e EndpointConfig) Name() string {
	if e.Path != "" {
		return e.Path
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses "host", "host:port" or "unix:/path/to/socket"
func ParseEndpoint(s string) (EndpointConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EndpointConfig{}, fmt.Errorf("empty endpoint")
	}

	if path, ok := strings.CutPrefix(s, "unix:"); ok {
		if path == "" {
			return EndpointConfig{}, fmt.Errorf("invalid unix endpoint %q", s)
		}
		return EndpointConfig{Path: path}, nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port given, use the beanstalkd default
		return EndpointConfig{Host: s, Port: DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return EndpointConfig{}, fmt.Errorf("invalid port in endpoint %q", s)
	}
	return EndpointConfig{Host: host, Port: port}, nil
}

// ParseEndpoints parses a comma separated list of endpoints
func ParseEndpoints(s string) ([]EndpointConfig, error) {
	var endpoints []EndpointConfig
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ep, err := ParseEndpoint(part)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// --------------------------------------------------------------------------
// Pool client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Endpoints in registration order. The order is used for fan-out operations.
	Endpoints []EndpointConfig
	// ConnectTimeout is the default connect timeout for all endpoints
	ConnectTimeout time.Duration
	// IOTimeout bounds every socket read and write
	IOTimeout time.Duration
	// ReconnectBackoff is the time an inactive connection waits before it is retried
	ReconnectBackoff time.Duration
	// MaxPayloadLength is the largest byte count a data response may declare
	MaxPayloadLength int
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// WithDefaults returns a copy with every zero field replaced by its default
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = DefaultIOTimeout
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = DefaultReconnectBackoff
	}
	if c.MaxPayloadLength <= 0 {
		c.MaxPayloadLength = DefaultMaxPayloadLength
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// ConnectTimeoutFor returns the effective connect timeout of an endpoint
func (c ClientConfig) ConnectTimeoutFor(e EndpointConfig) time.Duration {
	if e.ConnectTimeout > 0 {
		return e.ConnectTimeout
	}
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("IO Timeout", c.IOTimeout.String())
	addField("Reconnect Backoff", c.ReconnectBackoff.String())
	addField("Max Payload Length", strconv.Itoa(c.MaxPayloadLength))
	addField("Log Level", c.LogLevel)

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		value := endpoint.Name()
		if endpoint.ConnectTimeout > 0 {
			value += fmt.Sprintf(" (connect timeout %s)", endpoint.ConnectTimeout)
		}
		addField(strconv.Itoa(i), value)
	}

	return sb.String()
}
