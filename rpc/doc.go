// Package rpc provides the client side of the beanstalkd protocol for a pool of
// independent brokers. It acts as the communication layer between an application
// and the brokers, hiding which broker holds a job.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, error types and logging shared by all
//     other packages.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets) and an in-memory broker for tests.
//
//   - proto: The text protocol, i.e. command lines, response framing and the
//     mapping of responses to results and errors.
//
//   - conn: A single lazily dialed connection to one broker with health tracking
//     and a reconnect backoff.
//
//   - client: The pool that presents all brokers as one producer, consumer and
//     admin interface.
package rpc
