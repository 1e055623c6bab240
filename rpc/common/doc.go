// Package common provides core data structures and utilities shared across
// the beanstalkd pool client. It defines configuration structures, protocol
// defaults and the error taxonomy used by the other packages.
//
// The package focuses on:
//   - Configuration structures for the pool and its endpoints
//   - Protocol defaults (default tube, priority, delay, ttr, backoff)
//   - Error kinds for client side and broker reported failures
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - ClientConfig / EndpointConfig: Ordered endpoint list with per endpoint
//     connect timeout overrides, plus io timeout and reconnect backoff.
//
//   - ClientError: Errors raised by the client itself. The sentinels ErrConnection,
//     ErrSocket, ErrProtocol and ErrPoolExhausted are matched with errors.Is.
//     Connection and socket errors together are transport errors (IsTransportError),
//     the only class the pool retries.
//
//   - ServerError: Error responses sent by a broker, keyed by a closed ServerErrorCode
//     enumeration. These are never retried.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
