// Package link carries frames between the bot and its peer: newline framed JSON over TCP
// for commands and single datagrams over UDP for telemetry.
package link

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxFrameBytes bounds a single inbound frame.
const MaxFrameBytes = 64 * 1024

var (
	// ErrReceiveTimeout is returned by ReadFrame when no complete frame arrived in time.
	// The connection is still usable.
	ErrReceiveTimeout = errors.New("timed out waiting for a frame")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameBytes. The connection
	// cannot be resynchronized after it.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Conn is a newline framed stream connection.
type Conn struct {
	conn           net.Conn
	reader         *bufio.Reader
	receiveTimeout time.Duration
	pending        []byte

	writeMu sync.Mutex
}

// Dial connects to addr over TCP.
func Dial(ctx context.Context, addr string, timeout, receiveTimeout time.Duration) (*Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}
	return NewConn(c, receiveTimeout), nil
}

// NewConn frames an already established connection. A receiveTimeout of zero waits forever.
func NewConn(c net.Conn, receiveTimeout time.Duration) *Conn {
	return &Conn{
		conn:           c,
		reader:         bufio.NewReader(c),
		receiveTimeout: receiveTimeout,
	}
}

// RemoteAddr returns the peer's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadFrame returns the next line without its terminator. Bytes of a partial frame read
// before a timeout are kept for the next call. Blank lines are skipped.
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.receiveTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.receiveTimeout)); err != nil {
			return nil, errors.Wrap(err, "setting read deadline")
		}
	}
	for {
		chunk, err := c.reader.ReadSlice('\n')
		c.pending = append(c.pending, chunk...)
		if len(c.pending) > MaxFrameBytes {
			c.pending = nil
			return nil, ErrFrameTooLarge
		}
		switch {
		case err == nil:
			line := bytes.TrimSpace(c.pending)
			c.pending = nil
			if len(line) == 0 {
				continue
			}
			return append([]byte(nil), line...), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, ErrReceiveTimeout
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		default:
			return nil, errors.Wrap(err, "reading frame")
		}
	}
}

// WriteFrame writes frame followed by a newline unless it already ends with one.
func (c *Conn) WriteFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		frame = append(append([]byte(nil), frame...), '\n')
	}
	if _, err := c.conn.Write(frame); err != nil {
		return errors.Wrap(err, "writing frame")
	}
	return nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
