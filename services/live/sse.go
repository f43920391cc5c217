package live

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	initialLineBuffer = 64 << 10
	maxLineSize       = 1 << 20
)

// errEventTooLarge reports an event that had a line over maxLineSize. The
// event is dropped and the reader stays usable.
var errEventTooLarge = errors.New("event line too long")

// eventReader splits a text/event-stream body into event payloads. Only the
// data field is kept; event, id and retry are ignored.
type eventReader struct {
	r       *bufio.Reader
	line    []byte
	data    bytes.Buffer
	pending bool
	discard bool
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{r: bufio.NewReaderSize(r, initialLineBuffer)}
}

// Next blocks until a complete event is dispatched. It returns io.EOF when the
// stream ends; an unterminated trailing event is discarded. An event holding
// an oversized line yields errEventTooLarge once it ends.
func (er *eventReader) Next() ([]byte, error) {
	for {
		line, oversized, err := er.readLine()
		if err != nil {
			return nil, err
		}
		if oversized {
			er.discard = true
			continue
		}
		if len(line) == 0 {
			if er.discard {
				er.reset()
				return nil, errEventTooLarge
			}
			if !er.pending {
				continue
			}
			out := make([]byte, er.data.Len())
			copy(out, er.data.Bytes())
			er.reset()
			return out, nil
		}
		if er.discard || line[0] == ':' {
			continue
		}
		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		if string(field) != "data" {
			continue
		}
		if er.pending {
			er.data.WriteByte('\n')
		}
		er.data.Write(value)
		er.pending = true
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed up to its newline and reported as oversized. The
// returned slice is valid until the next call.
func (er *eventReader) readLine() (line []byte, oversized bool, err error) {
	er.line = er.line[:0]
	for {
		chunk, err := er.r.ReadSlice('\n')
		if !oversized {
			if len(er.line)+len(chunk) > maxLineSize+len("\r\n") {
				oversized = true
				er.line = er.line[:0]
			} else {
				er.line = append(er.line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		break
	}
	if oversized {
		return nil, true, nil
	}
	line = bytes.TrimSuffix(er.line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, false, nil
}

func (er *eventReader) reset() {
	er.data.Reset()
	er.pending = false
	er.discard = false
}
