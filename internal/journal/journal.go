// Package journal writes an append-only JSONL log of dispatched actions for
// observability. It is not the conversation store; turns live in conv.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryAction  EntryType = "action"  // dispatcher executed an action
	EntryCommand EntryType = "command" // operator ran a slash command
	EntryError   EntryType = "error"   // a turn ended in a failure message
)

// Entry is a single journal record
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"ts"`
	Type         EntryType      `json:"type"`
	Conversation string         `json:"conversation,omitempty"`
	Action       string         `json:"action,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
}

// Journal writes entries to state/actions.jsonl
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writer
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "actions.jsonl"),
	}
}

// Log writes an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogAction records an executed action and its outcome
func (j *Journal) LogAction(conversation, action string, params map[string]any, outcome string) error {
	return j.Log(Entry{
		Type:         EntryAction,
		Conversation: conversation,
		Action:       action,
		Params:       params,
		Outcome:      outcome,
	})
}

// LogError records a turn that ended in a failure message
func (j *Journal) LogError(conversation, outcome string) error {
	return j.Log(Entry{
		Type:         EntryError,
		Conversation: conversation,
		Outcome:      outcome,
	})
}

// LogCommand records a slash command
func (j *Journal) LogCommand(conversation, command string) error {
	return j.Log(Entry{
		Type:         EntryCommand,
		Conversation: conversation,
		Action:       command,
	})
}

// Recent returns the last n entries from the journal
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}

	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
