// Package bytesio provides the framed byte transport and bit-level
// accessors that every higher layer (handshake, chunk engine) reads and
// writes through. It generalizes the teacher's direct net.Conn +
// bufio.Reader use (rtmp_session.go's ReadChunk, which calls
// conn.SetReadDeadline before every read) into a small reusable type so
// the deadline-per-read discipline isn't duplicated across callers.
package bytesio

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

// Conn wraps a stream socket (TCP or TLS) with a buffered reader and a
// default read timeout applied before every Read call, the same pattern
// as RTMPSession.ReadChunk's repeated SetReadDeadline calls.
type Conn struct {
	raw     net.Conn
	r       *bufio.Reader
	Timeout time.Duration
}

// NewConn wraps raw with the given default read timeout.
func NewConn(raw net.Conn, timeout time.Duration) *Conn {
	return &Conn{raw: raw, r: bufio.NewReaderSize(raw, 4096), Timeout: timeout}
}

// Read fills buf completely using the connection's default timeout.
func (c *Conn) Read(buf []byte) (int, error) {
	return c.ReadTimeout(buf, c.Timeout)
}

// ReadTimeout fills buf completely honoring an explicit deadline; fewer
// bytes are returned only together with an error.
// A remote close surfaces as io.EOF; deadline expiry surfaces as a typed
// timeout error so callers can distinguish end-of-stream from a stall.
func (c *Conn) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	if d > 0 {
		if err := c.raw.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, rtmperrors.Wrap(rtmperrors.KindIO, "bytesio.ReadTimeout", err)
		}
	}
	n, err := io.ReadFull(c.r, buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, rtmperrors.Wrap(rtmperrors.KindTimeout, "bytesio.ReadTimeout", err)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return n, io.EOF
		}
		return n, rtmperrors.Wrap(rtmperrors.KindIO, "bytesio.ReadTimeout", err)
	}
	return n, nil
}

// ReadByte reads a single byte, satisfying io.ByteReader for callers (the
// chunk basic-header parser) that need to peek one byte at a time.
func (c *Conn) ReadByte() (byte, error) {
	if c.Timeout > 0 {
		if err := c.raw.SetReadDeadline(time.Now().Add(c.Timeout)); err != nil {
			return 0, rtmperrors.Wrap(rtmperrors.KindIO, "bytesio.ReadByte", err)
		}
	}
	b, err := c.r.ReadByte()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, rtmperrors.Wrap(rtmperrors.KindTimeout, "bytesio.ReadByte", err)
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, rtmperrors.Wrap(rtmperrors.KindIO, "bytesio.ReadByte", err)
	}
	return b, nil
}

// Write writes buf to the connection in full.
func (c *Conn) Write(buf []byte) (int, error) {
	n, err := c.raw.Write(buf)
	if err != nil {
		return n, rtmperrors.Wrap(rtmperrors.KindIO, "bytesio.Write", err)
	}
	return n, nil
}

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.raw.Close() }

// RemoteAddr returns the socket's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }
