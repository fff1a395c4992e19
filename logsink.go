package threadpool

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.uber.org/multierr"
)

// EventKind marks a log line as the start or the stop of a task.
type EventKind byte

const (
	EventStart EventKind = 'S'
	EventStop  EventKind = 'P'
)

func (k EventKind) String() string { return string(k) }

// Event is one line of a task log:
//
//	<job> <worker> <S|P> <seconds>
type Event struct {
	Job    int
	Worker int
	Kind   EventKind
	Time   float64
}

// AppendText appends the wire form of e, newline included.
func (e Event) AppendText(b []byte) []byte {
	b = strconv.AppendInt(b, int64(e.Job), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(e.Worker), 10)
	b = append(b, ' ', byte(e.Kind), ' ')
	b = strconv.AppendFloat(b, e.Time, 'f', 6, 64)
	return append(b, '\n')
}

var errSinkClosed = errors.New("threadpool: log sink closed")

// LogSink is an append-only destination for task events that can be read
// back for analysis.
//
// Appends from concurrent workers are serialized; each event is written as
// one whole line.
type LogSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	buf    []byte
	path   string
	handle io.Writer
	closer io.Closer
	closed bool

	// copy of every appended line, kept for handles that can be read but
	// not rewound, since reading them would consume the log
	mirror *bytes.Buffer
}

// NewFileSink creates (or truncates) the file at path and logs to it.
// Open reopens the file read-only.
func NewFileSink(path string) (*LogSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("threadpool: create log %s: %w", path, err)
	}
	return &LogSink{
		w:      bufio.NewWriter(f),
		path:   path,
		closer: f,
	}, nil
}

// NewHandleSink logs to an already open handle. The sink can be read back
// when h is also an io.Reader: an io.Seeker is rewound and read, any other
// reader is left alone and Open serves a copy of the appended events
// instead. The handle is not closed by the sink.
func NewHandleSink(h io.Writer) *LogSink {
	s := &LogSink{
		w:      bufio.NewWriter(h),
		handle: h,
	}
	if _, ok := h.(io.Reader); ok {
		if _, ok := h.(io.Seeker); !ok {
			s.mirror = &bytes.Buffer{}
		}
	}
	return s
}

// Append writes one event.
func (s *LogSink) Append(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	s.buf = e.AppendText(s.buf[:0])
	if _, err := s.w.Write(s.buf); err != nil {
		return err
	}
	if s.mirror != nil {
		s.mirror.Write(s.buf)
	}
	return nil
}

// Flush pushes buffered events to the underlying file or handle.
func (s *LogSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.w.Flush()
}

// Open returns a reader over every event appended so far.
func (s *LogSink) Open() (io.ReadCloser, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	if s.path != "" {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("threadpool: open log %s: %w", s.path, err)
		}
		return f, nil
	}

	if s.mirror != nil {
		s.mu.Lock()
		snapshot := bytes.Clone(s.mirror.Bytes())
		s.mu.Unlock()
		return io.NopCloser(bytes.NewReader(snapshot)), nil
	}

	r, ok := s.handle.(io.Reader)
	if !ok {
		return nil, fmt.Errorf("%w: log handle %T is write-only", ErrUnsupportedConfiguration, s.handle)
	}
	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("threadpool: rewind log: %w", err)
		}
	}
	return io.NopCloser(r), nil
}

// ReadLog parses everything appended so far.
func (s *LogSink) ReadLog() (Log, error) {
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadLog(rc)
}

// Close flushes the sink and closes the file it owns. Further appends fail.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.w.Flush()
	if s.closer != nil {
		err = multierr.Append(err, s.closer.Close())
	}
	return err
}
