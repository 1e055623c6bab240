// Package proto implements the beanstalkd command codec: command lines,
// payloads and response parsers. It knows nothing about sockets; a connection
// asks a command for its line and payload, frames the response, and hands the
// status line plus payload back to the command's parser.
//
// Key Components:
//
//   - ICommand / IResponseParser: The codec contract consumed by connections.
//
//   - IBlockingCommand: Commands the broker may hold open (reserve-with-timeout),
//     so the connection can extend its read deadline.
//
//   - Classify: Static table that sorts a response name into simple, data-bearing
//     or global error, the latter mapped to a common.ServerErrorCode.
//
//   - Response / Stats: Structured results. YAML bodies of the stats and list
//     commands are decoded with gopkg.in/yaml.v3, keeping scalar values verbatim.
package proto
