// Package edc implements the external decision component link: a
// length-prefixed framing layer over a stream socket, the `|`-separated
// batch/reply grammar carried over it, and the single request/reply task
// that exchanges one batch per round trip.
//
// Framing is a little-endian 32-bit length prefix followed by that many
// bytes of UTF-8 text, read in a loop since a single read(2) may return
// fewer bytes than requested.
package edc

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
)

// Transport is a length-prefixed message channel over a single accepted
// stream-socket connection.
type Transport struct {
	conn net.Conn
}

// ListenUnix removes any stale socket file at path and starts listening on a
// Unix domain socket there.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("edc: removing stale socket %q: %w", path, err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("edc: listening on %q: %w", path, err)
	}
	return l, nil
}

// Accept blocks until exactly one client (the EDC) connects, then returns a
// Transport wrapping that connection. The core never accepts a second
// connection: one simulation run talks to exactly one decision process.
func Accept(l net.Listener) (*Transport, error) {
	conn, err := l.Accept()
	if err != nil {
		return nil, fmt.Errorf("edc: accepting connection: %w", err)
	}
	return &Transport{conn: conn}, nil
}

// NewTransport wraps an already-established connection, e.g. one obtained
// via net.Dial for TCP-mode EDCs, or an in-memory net.Pipe() endpoint used to
// drive a fake EDC in tests.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// Send writes message as a 4-byte little-endian length prefix followed by
// its UTF-8 bytes.
func (t *Transport) Send(message string) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(message)))
	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("edc: writing length prefix: %w", err)
	}
	if _, err := io.WriteString(t.conn, message); err != nil {
		return fmt.Errorf("edc: writing message body: %w", err)
	}
	return nil
}

// Receive reads one length-prefixed message, blocking until it has been
// fully received. End-of-stream before the declared length is read is
// reported as a fatal transport error.
func (t *Transport) Receive() (string, error) {
	var header [4]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return "", fmt.Errorf("edc: reading length prefix: %w", err)
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return "", nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return "", fmt.Errorf("edc: reading message body (%d bytes): %w", length, err)
	}
	return string(body), nil
}
