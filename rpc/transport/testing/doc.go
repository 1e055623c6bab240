// Package testing provides an in-memory beanstalkd stand-in for tests of the
// connection and pool layers.
//
// A Broker implements enough of the beanstalkd protocol (put, use, watch, ignore,
// reserve-with-timeout, delete, release, bury, touch, peek*, kick*, stats*, list-*,
// pause-tube) to drive a Pool end to end. Brokers are reached through a Dialer
// which connects over net.Pipe, so the real socket implementation of the base
// package sits between the client and the broker.
//
// Faults can be injected per broker:
//   - SetDown: refuse dials and close all open sockets
//   - KillConnections: close open sockets, the broker stays reachable
//   - SetMuted: never answer
//   - SetHandler: script the reply to any command (return HangUp to close the socket)
//
// Example usage:
//
//	dialer, brokers := tptesting.Cluster(tptesting.Endpoint("a", 11300), tptesting.Endpoint("b", 11300))
//	brokers[1].SetDown(true)
//	pool := client.NewPool(config, dialer)
package testing
