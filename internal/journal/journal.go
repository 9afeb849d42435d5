// Package journal keeps an append-only JSONL record of capture dispatches so
// a failed OAuth handoff can be reconstructed after the fact. Captured secret
// material (code, state) is never written; only its presence is recorded.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one dispatched capture event.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	TabID      string    `json:"tab_id"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	FlowID     string    `json:"flow_id,omitempty"`
	HasCode    bool      `json:"has_code"`
	OAuthError string    `json:"oauth_error,omitempty"`
	NavError   string    `json:"nav_error,omitempty"`
}

// Writer appends entries asynchronously; a full buffer drops the record
// rather than blocking the event handler.
type Writer struct {
	writeCh chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *lumberjack.Logger
}

// NewWriter creates a journal writing to dir/captures.jsonl with rotation.
func NewWriter(dir string, bufferSize, maxSizeMB int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir %s: %w", dir, err)
	}
	w := &Writer{
		writeCh: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(dir, "captures.jsonl"),
			MaxSize:    maxSizeMB,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w, nil
}

// Record queues an entry, assigning it an ID and timestamp.
func (w *Writer) Record(e Entry) string {
	e.ID = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	select {
	case w.writeCh <- e:
	case <-w.done:
	default:
		slog.Warn("capture journal buffer full, dropping record", "tab_id", e.TabID)
	}
	return e.ID
}

// Close flushes pending entries and closes the underlying file.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()
	return w.logger.Close()
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.writeCh:
			w.write(e)
		case <-w.done:
			// Drain whatever is already queued.
			for {
				select {
				case e := <-w.writeCh:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal journal entry", "error", err)
		return
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write journal entry", "error", err)
	}
}
