package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterAppendsEntries(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 16, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	id1 := w.Record(Entry{TabID: "tab-1", Source: "navigation", Target: "capture_page", HasCode: true})
	id2 := w.Record(Entry{TabID: "tab-2", Source: "navigation_error", Target: "home_assistant", FlowID: "xyz", HasCode: true})
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("expected distinct non-empty entry ids, got %q and %q", id1, id2)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "captures.jsonl"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TabID != "tab-1" || !entries[0].HasCode {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].FlowID != "xyz" || entries[1].Target != "home_assistant" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if time.Since(entries[0].Timestamp) > time.Minute {
		t.Fatalf("entry timestamp not set: %v", entries[0].Timestamp)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 1, 1)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	// Never blocks, even when the buffer cannot keep up.
	for range 100 {
		w.Record(Entry{TabID: "flood"})
	}
}
