// Package cmdqueue implements the textual command channel: a FIFO the
// embedder writes newline-terminated lines into and the engine drains,
// one complete line at a time, without ever blocking the frame loop.
package cmdqueue

import (
	"bufio"
	"io"
	"os"
)

// Reader tails a command FIFO opened non-blocking, the way the original
// opened CMD_FILE with O_RDONLY|O_NONBLOCK: a read that would block
// instead returns "no line yet" so the caller's frame loop never stalls
// waiting on a writer.
type Reader struct {
	f       *os.File
	buf     *bufio.Reader
	partial string // bytes of an unterminated line read by earlier calls
}

// Open opens path non-blocking. A FIFO with no writer yet, or one with no
// data currently queued, is not an error: Next simply reports no line
// until one arrives.
func Open(path string) (*Reader, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscallNonblock, 0)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f, buf: bufio.NewReader(f)}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Next returns the next complete newline-terminated command, with the
// newline stripped, and ok=true. If no complete line is currently
// available it returns ok=false without blocking — the FIFO is polled
// again on the next call rather than awaited. A genuine read error
// (anything but "would block") is returned as err.
func (r *Reader) Next() (line string, ok bool, err error) {
	s, err := r.buf.ReadString('\n')
	if err == nil {
		line := r.partial + s
		r.partial = ""
		return trimNewline(line), true, nil
	}
	if err == io.EOF || isWouldBlock(err) {
		// Writer hasn't produced a terminator yet; whatever was read is
		// incomplete and is kept in r.partial for the next call.
		r.partial += s
		return "", false, nil
	}
	return "", false, err
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
