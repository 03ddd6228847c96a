package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// copyBufs recycles the two buffers each relayed connection needs.
var copyBufs = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// LineWriter buffers writes and flushes whenever a complete line has
// been written, mirroring a line-buffered stream.  It is safe for
// concurrent use, so interpreter output and forwarded log records can
// share one connection without interleaving inside a line.
type LineWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewLineWriter returns a LineWriter over w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: bufio.NewWriter(w)}
}

// Write buffers p and flushes if p contains a newline.
func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	n, err := lw.w.Write(p)
	if err != nil {
		return n, err
	}
	if bytes.IndexByte(p, '\n') >= 0 {
		err = lw.w.Flush()
	}
	return n, err
}

// Flush writes any buffered partial line.
func (lw *LineWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Flush()
}

// BidirectionalCopy shuffles data between a network connection and an
// arbitrary reader/writer pair (typically stdin/stdout) until the peer
// closes its side, writing to it fails or the context is cancelled.
//
// End of r half-closes conn and keeps receiving until the peer is done.
// A read still blocked on r when the copy ends is abandoned; it returns
// on the next read, whose data is discarded.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	recvErr := make(chan error, 1)
	sendErr := make(chan error, 1)

	// network → writer
	go func() {
		buf := copyBufs.Get().(*[]byte)
		defer copyBufs.Put(buf)
		_, err := io.CopyBuffer(w, conn, *buf)
		recvErr <- err
	}()

	// reader → network
	go func() {
		buf := copyBufs.Get().(*[]byte)
		defer copyBufs.Put(buf)
		_, err := io.CopyBuffer(conn, r, *buf)
		if err == nil {
			if cw, ok := conn.(interface{ CloseWrite() error }); ok {
				cw.CloseWrite() //nolint:errcheck
			}
		}
		sendErr <- err
	}()

	var errs []error
	done := ctx.Done()
	for received := false; !received; {
		select {
		case err := <-recvErr:
			errs = append(errs, err)
			received = true
		case err := <-sendErr:
			sendErr = nil
			if err != nil {
				errs = append(errs, err)
				conn.Close()
			}
		case <-done:
			done = nil
			conn.Close()
		}
	}
	conn.Close()

	for _, err := range errs {
		if !IsHarmless(err) {
			return err
		}
	}
	return nil
}

// IsHarmless returns true for errors that are expected during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
