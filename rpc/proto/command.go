package proto

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Codec contract
// --------------------------------------------------------------------------

// IResponseParser turns a status line and its optional payload into a Response
type IResponseParser interface {
	// ParseResponse is called with the status line (without terminator) and the payload
	// of data-bearing responses (nil otherwise)
	ParseResponse(line string, data []byte) (*Response, error)
}

// ResponseParserFunc adapts a function to IResponseParser
type ResponseParserFunc func(line string, data []byte) (*Response, error)

func (f ResponseParserFunc) ParseResponse(line string, data []byte) (*Response, error) {
	return f(line, data)
}

// ICommand describes one protocol exchange
type ICommand interface {
	// CommandLine returns the command line without terminator
	CommandLine() string
	// HasPayload reports whether a payload follows the command line
	HasPayload() bool
	// Payload returns the payload (nil if HasPayload is false)
	Payload() []byte
	// ResponseParser returns the parser for the response to this command
	ResponseParser() IResponseParser
	// String describes the command for error messages, never including the payload
	String() string
}

// IBlockingCommand is implemented by commands the broker may hold before answering
type IBlockingCommand interface {
	ICommand
	// BlockFor returns how long the broker may wait before it sends the response
	BlockFor() time.Duration
}

// --------------------------------------------------------------------------
// Command implementation
// --------------------------------------------------------------------------

// command is the immutable ICommand value returned by all constructors in this package
type command struct {
	name    string
	args    []string
	payload []byte
	parser  IResponseParser
}

func (c *command) CommandLine() string {
	if len(c.args) == 0 {
		return c.name
	}
	return c.name + " " + strings.Join(c.args, " ")
}

func (c *command) HasPayload() bool {
	return c.payload != nil
}

func (c *command) Payload() []byte {
	return c.payload
}

func (c *command) ResponseParser() IResponseParser {
	return c.parser
}

func (c *command) String() string {
	return c.CommandLine()
}

// blockingCommand is a command that carries a server side wait
type blockingCommand struct {
	command
	wait time.Duration
}

func (c *blockingCommand) BlockFor() time.Duration {
	return c.wait
}
