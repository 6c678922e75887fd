package feed

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Defaults for the SBS-1 feed connection
const (
	DefaultReadBufferSize = 1024
	DefaultDialTimeout    = 10 * time.Second
	DefaultKeepAlive      = 60 * time.Second
)

// Options tune a feed connection
type Options struct {
	ReadBufferSize int
	DialTimeout    time.Duration
	KeepAlive      time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	return o
}

// Connection is the stream connection to the telemetry source. It is
// the only component that touches the network; reads are the pipeline's
// single blocking point.
type Connection struct {
	conn      net.Conn
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the feed at addr (host:port)
func Dial(ctx context.Context, addr string, opts Options) (*Connection, error) {
	opts = opts.withDefaults()

	dialer := &net.Dialer{
		Timeout:   opts.DialTimeout,
		KeepAlive: opts.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feed %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(opts.KeepAlive)
	}

	return NewConnection(conn, opts), nil
}

// NewConnection wraps an established connection
func NewConnection(conn net.Conn, opts Options) *Connection {
	opts = opts.withDefaults()
	return &Connection{
		conn: conn,
		buf:  make([]byte, opts.ReadBufferSize),
	}
}

// ReadChunk blocks until data arrives and returns a copy of it. Chunk
// boundaries are arbitrary; they do not follow line boundaries.
func (c *Connection) ReadChunk() ([]byte, error) {
	for {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, c.buf[:n])
			// data read before an error is returned first, the error on the next call
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Interrupt unblocks a pending ReadChunk, which then returns a timeout error
func (c *Connection) Interrupt() {
	_ = c.conn.SetReadDeadline(time.Now())
}

// RemoteAddr returns the feed's address
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close releases the socket. It is safe to call more than once.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
