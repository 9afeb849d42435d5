// Package indicator holds the process-wide capture badge. It is the Go
// rendering of an extension toolbar badge: write-only from the dispatch path,
// last write wins, readable by the status API and the capture page.
package indicator

import (
	"sync"
	"time"
)

// State is a snapshot of the badge.
type State struct {
	Set        bool      `json:"set"`
	Text       string    `json:"text,omitempty"`
	Color      string    `json:"color,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitzero"`
}

// Indicator is safe for concurrent use; concurrent writers simply race to be
// the last write, which is the intended semantics for a user-visible hint.
type Indicator struct {
	mu    sync.RWMutex
	state State
}

func New() *Indicator {
	return &Indicator{}
}

// Set overwrites the badge. There is no merge or queue.
func (i *Indicator) Set(text, color string) {
	i.mu.Lock()
	i.state = State{Set: true, Text: text, Color: color, CapturedAt: time.Now().UTC()}
	i.mu.Unlock()
}

// Clear removes the badge.
func (i *Indicator) Clear() {
	i.mu.Lock()
	i.state = State{}
	i.mu.Unlock()
}

// Get returns the current badge state.
func (i *Indicator) Get() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}
