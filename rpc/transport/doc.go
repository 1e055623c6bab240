// Package transport defines the socket level abstractions the pool client is built on.
// Connections never open sockets themselves, they receive an IDialer and ask it for
// an ISocket whenever they need one.
//
// Key Components:
//
//   - ISocket: A byte stream with line and fixed-length reads, bounded by a timeout.
//
//   - IDialer: Socket factory injected into every connection. The base package
//     implements it for real networks (tcp, unix), tests implement it in memory.
package transport
