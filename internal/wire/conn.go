package wire

import (
	"bytes"
	"encoding/json"
	"net"
	"sync"
)

// readChunkSize is how many bytes Conn.ReadFrame pulls from the underlying
// connection per syscall. Arbitrary but generous relative to MaxFrameBytes.
const readChunkSize = 4096

// Conn wraps a net.Conn (unix socket or TCP) with the mesh's newline-
// delimited JSON framing: an accumulator of unconsumed bytes is kept across
// reads, split on '\n', with the trailing partial line retained for the
// next call (spec.md §9 "Byte-stream framing").
//
// Safe for one reader and one writer goroutine concurrently; ReadFrame must
// not be called from more than one goroutine at a time, but WriteFrame may
// be called concurrently with ReadFrame and with itself.
type Conn struct {
	nc  net.Conn
	buf []byte

	writeMu sync.Mutex
}

// NewConn wraps nc for framed reads and writes.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// ReadFrame returns the next complete line, with the trailing '\n' (and a
// possible preceding '\r') stripped. It returns ErrFrameTooLarge the moment
// the accumulated, newline-free prefix exceeds MaxFrameBytes — the caller
// is expected to write one ErrorFrame and close the connection (spec.md
// §4.B, §8 boundary behaviors).
func (c *Conn) ReadFrame() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(c.buf, '\n'); idx >= 0 {
			line := append([]byte(nil), c.buf[:idx]...)
			line = bytes.TrimSuffix(line, []byte{'\r'})
			c.buf = c.buf[idx+1:]

			if len(line) > MaxFrameBytes {
				return nil, ErrFrameTooLarge
			}
			return line, nil
		}

		if len(c.buf) > MaxFrameBytes {
			return nil, ErrFrameTooLarge
		}

		var chunk [readChunkSize]byte
		n, err := c.nc.Read(chunk[:])
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// WriteFrame marshals v to JSON, appends a trailing newline, and writes it
// atomically with respect to other WriteFrame calls on this Conn.
func (c *Conn) WriteFrame(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err = c.nc.Write(b)
	return err
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the underlying connection's remote address, used by
// the daemon's rate limiter to key peer-originated relay requests.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Raw returns the wrapped net.Conn, for transports that need to set
// deadlines or inspect the underlying file descriptor.
func (c *Conn) Raw() net.Conn {
	return c.nc
}
