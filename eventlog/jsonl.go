package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pflow-xyz/go-presale/presale"
)

// Writer streams event records to an io.Writer as JSON Lines. It
// implements presale.Sink, so it can be wired directly into the engine
// or subscribed to a bus.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	errs   int64
}

// NewWriter wraps an io.Writer for JSONL output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create opens (truncating) or creates a JSONL log file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &Writer{w: bufio.NewWriter(f), closer: f}, nil
}

// Open opens a JSONL log file for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Writer{w: bufio.NewWriter(f), closer: f}, nil
}

// Emit implements presale.Sink. Sinks are fire-and-forget; write
// failures are counted and reported by Err.
func (w *Writer) Emit(evt presale.Event) {
	rec, err := FromEvent(evt)
	if err != nil {
		atomic.AddInt64(&w.errs, 1)
		return
	}
	if err := w.Append(rec); err != nil {
		atomic.AddInt64(&w.errs, 1)
	}
}

// Append writes one record as a JSON line.
func (w *Writer) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return w.w.WriteByte('\n')
}

// Err returns the number of events dropped due to write failures.
func (w *Writer) Err() int64 {
	return atomic.LoadInt64(&w.errs)
}

// Flush pushes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Close flushes and, when file-backed, closes the file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

var _ presale.Sink = (*Writer)(nil)

// Read parses JSONL records from a reader. Empty lines are skipped.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return records, nil
}

// ReadFile parses a JSONL log file into a Log.
func ReadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, err
	}
	return NewLog(records), nil
}
