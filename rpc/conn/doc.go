// Package conn implements a single connection to one beanstalkd broker.
//
// A Connection owns at most one socket, created lazily on the first exchange. It
// frames commands (command line, optional payload, each terminated by CRLF), reads
// and frames responses (status line, optional length-prefixed payload) and hands
// them to the command's parser from the proto package.
//
// Besides the socket a Connection tracks its health:
//
//	Unconnected --first exchange--> Active --failure (SetInactive)--> Inactive
//	     ^                            ^                                  |
//	     |                            +------ Reconnect succeeded -------+
//	     +--------------------------- Close ---------------------------------
//
// An inactive connection records the instant from which it may be retried
// (now + reconnect backoff). Deciding when to retry is left to the owner, usually
// the Pool of the client package, which also replays session state (used tube,
// watched tubes) after a reconnect. For that reason a socket that was dropped after
// a failure is never silently redialed by Send; only Reconnect opens a new one.
//
// A Connection is not safe for concurrent use.
package conn
