package common

import (
	"fmt"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Client side error kinds
// --------------------------------------------------------------------------

// ErrorKind classifies errors raised by the client itself (as opposed to errors reported by a broker)
type ErrorKind int

const (
	// KindConnection means a socket could not be opened
	KindConnection ErrorKind = iota + 1
	// KindSocket means a read or write failed on an established socket
	KindSocket
	// KindProtocol means the broker sent something that does not follow the framing rules
	KindProtocol
	// KindPoolExhausted means no endpoint was reachable
	KindPoolExhausted
	// KindUnknownConnection means an endpoint name is not registered in the pool
	KindUnknownConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindSocket:
		return "socket error"
	case KindProtocol:
		return "protocol error"
	case KindPoolExhausted:
		return "no endpoints reachable"
	case KindUnknownConnection:
		return "unknown connection"
	default:
		return "unknown error"
	}
}

// ClientError is an error of a given kind, optionally tied to an endpoint and a cause
type ClientError struct {
	Kind     ErrorKind
	Endpoint string
	Msg      string
	Err      error
}

func (e *ClientError) Error() string {
	msg := e.Kind.String()
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Endpoint)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is matches every ClientError of the same kind, so the sentinels below work with errors.Is
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrConnection        = &ClientError{Kind: KindConnection}
	ErrSocket            = &ClientError{Kind: KindSocket}
	ErrProtocol          = &ClientError{Kind: KindProtocol}
	ErrPoolExhausted     = &ClientError{Kind: KindPoolExhausted}
	ErrUnknownConnection = &ClientError{Kind: KindUnknownConnection}
)

// NewConnectionError wraps a failed dial
func NewConnectionError(endpoint string, err error) error {
	return &ClientError{Kind: KindConnection, Endpoint: endpoint, Err: err}
}

// NewSocketError wraps a failed read or write
func NewSocketError(endpoint, msg string, err error) error {
	return &ClientError{Kind: KindSocket, Endpoint: endpoint, Msg: msg, Err: err}
}

// NewProtocolError reports a malformed response
func NewProtocolError(endpoint, format string, args ...interface{}) error {
	return &ClientError{Kind: KindProtocol, Endpoint: endpoint, Msg: fmt.Sprintf(format, args...)}
}

// IsTransportError reports whether err is a connection or socket failure.
// Those are the errors the pool retries once and broadcasts swallow.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrSocket) || errors.Is(err, ErrConnection)
}

// --------------------------------------------------------------------------
// Broker reported errors
// --------------------------------------------------------------------------

// ServerErrorCode is the closed set of error responses a broker can send
type ServerErrorCode int

const (
	// global errors, may be sent in response to any command
	CodeOutOfMemory ServerErrorCode = iota + 1
	CodeInternalError
	CodeDraining
	CodeBadFormat
	CodeUnknownCommand

	// command specific errors
	CodeNotFound
	CodeBuried
	CodeExpectedCRLF
	CodeJobTooBig
	CodeNotIgnored
	CodeUnexpectedResponse
)

func (c ServerErrorCode) String() string {
	switch c {
	case CodeOutOfMemory:
		return "out of memory"
	case CodeInternalError:
		return "internal error"
	case CodeDraining:
		return "draining"
	case CodeBadFormat:
		return "bad format"
	case CodeUnknownCommand:
		return "unknown command"
	case CodeNotFound:
		return "not found"
	case CodeBuried:
		return "buried"
	case CodeExpectedCRLF:
		return "expected CRLF"
	case CodeJobTooBig:
		return "job too big"
	case CodeNotIgnored:
		return "not ignored"
	case CodeUnexpectedResponse:
		return "unexpected response"
	default:
		return "unknown server error"
	}
}

// IsGlobal reports whether the code is one of the errors a broker may send for any command
func (c ServerErrorCode) IsGlobal() bool {
	return c >= CodeOutOfMemory && c <= CodeUnknownCommand
}

// ServerError is an error response sent by a broker
type ServerError struct {
	Code     ServerErrorCode
	Response string // the raw status line
	Command  string // description of the command that caused it
}

func (e *ServerError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("server error: %s", e.Code)
	}
	return fmt.Sprintf("server error: %s in response to '%s'", e.Response, e.Command)
}

// Is matches ServerErrors by code
func (e *ServerError) Is(target error) bool {
	t, ok := target.(*ServerError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrServerOutOfMemory   = &ServerError{Code: CodeOutOfMemory}
	ErrServerInternal      = &ServerError{Code: CodeInternalError}
	ErrServerDraining      = &ServerError{Code: CodeDraining}
	ErrServerBadFormat     = &ServerError{Code: CodeBadFormat}
	ErrServerUnknownCmd    = &ServerError{Code: CodeUnknownCommand}
	ErrServerNotFound      = &ServerError{Code: CodeNotFound}
	ErrServerBuried        = &ServerError{Code: CodeBuried}
	ErrServerExpectedCRLF  = &ServerError{Code: CodeExpectedCRLF}
	ErrServerJobTooBig     = &ServerError{Code: CodeJobTooBig}
	ErrServerNotIgnored    = &ServerError{Code: CodeNotIgnored}
	ErrServerUnexpectedRsp = &ServerError{Code: CodeUnexpectedResponse}
)
