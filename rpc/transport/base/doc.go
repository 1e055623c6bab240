// Package base provides the network side of the transport layer: a socket
// implementation over net.Conn and a dialer that delegates the actual connect
// to protocol specific connectors (tcp, unix).
//
// The package focuses on:
//   - Line oriented reads (ReadLine) and exact length reads (ReadFull) as needed
//     by the beanstalkd framing
//   - Per operation deadlines so no read or write can block forever
//   - Connector selection per endpoint, so tcp and unix brokers can be mixed in one pool
//
// Key Components:
//
//   - IClientConnector: Interface for protocol-specific connect and socket tuning.
//
//   - NewBaseDialer: transport.IDialer implementation that picks the first connector
//     accepting an endpoint and wraps the resulting net.Conn with NewSocket.
//
//   - NewSocket: transport.ISocket implementation with a buffered reader.
//
// Thread Safety:
//
//	Sockets are not safe for concurrent use. Each socket belongs to exactly one
//	connection, which in turn is used by one goroutine at a time.
package base
