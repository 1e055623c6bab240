package base

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"io"
	"net"
	"strings"
	"time"
)

const (
	// readBufferSize is large enough for every status line beanstalkd sends
	readBufferSize = 64 * 1024
	// maxLineLength guards against a peer that never sends a line terminator
	maxLineLength = 1 << 20
)

// socket implements transport.ISocket over a net.Conn.
// Every call sets a fresh deadline of now + timeout.
type socket struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// NewSocket wraps an established connection. A timeout <= 0 disables deadlines.
func NewSocket(conn net.Conn, timeout time.Duration) transport.ISocket {
	return &socket{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, readBufferSize),
		timeout: timeout,
	}
}

func (s *socket) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

func (s *socket) Timeout() time.Duration {
	return s.timeout
}

func (s *socket) Write(data []byte) error {
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
	}
	for len(data) > 0 {
		n, err := s.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (s *socket) ReadLine() (string, error) {
	if err := s.setReadDeadline(); err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > maxLineLength {
			return "", fmt.Errorf("line exceeds %d bytes", maxLineLength)
		}
		if !isPrefix {
			break
		}
	}
	// bufio strips "\r\n" and "\n", a lone "\r" before the newline is already gone
	return sb.String(), nil
}

func (s *socket) ReadFull(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	if err := s.setReadDeadline(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *socket) Close() error {
	return s.conn.Close()
}

// setReadDeadline applies the timeout to the next read
func (s *socket) setReadDeadline() error {
	if s.timeout <= 0 {
		return s.conn.SetReadDeadline(time.Time{})
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.timeout))
}
