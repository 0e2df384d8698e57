package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// sinkFileMode restricts the ledger file to its owner. The audit log records
// what state existed and when it changed, which is itself sensitive.
const sinkFileMode = 0o600

// fileSinkBufferSize bounds in-memory buffering of unflushed events. Writes
// beyond the buffer block on the underlying file, which is the backpressure
// mechanism: the producing step waits instead of buffering unbounded.
const fileSinkBufferSize = 64 * 1024

// FileSink appends one JSON-encoded event per line (UTF-8, line-delimited
// JSON) to a file opened in append mode. Safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
	path string
}

// NewFileSink opens (or creates) the ledger file at path in append mode.
// Runs delimit their own chains via per-event run IDs, so appending to an
// existing file keeps earlier runs verifiable.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, sinkFileMode)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sink file: %w", err)
	}

	return &FileSink{
		file: file,
		w:    bufio.NewWriterSize(file, fileSinkBufferSize),
		path: path,
	}, nil
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ledger: encode event %s: %w", event.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return fmt.Errorf("ledger: sink closed: %s", s.path)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("ledger: write event %s: %w", event.ID, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("ledger: write event %s: %w", event.ID, err)
	}
	return nil
}

func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("ledger: flush sink: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("ledger: sync sink: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return nil
	}
	flushErr := s.w.Flush()
	s.w = nil

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("ledger: close sink: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("ledger: flush on close: %w", flushErr)
	}
	return nil
}
