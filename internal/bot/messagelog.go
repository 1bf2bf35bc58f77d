package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// LogEntry is one sent message in the message log.
type LogEntry struct {
	Datetime  time.Time `json:"datetime"`
	Date      string    `json:"date"` // Local time, e.g. "06 May 2024 18:00hrs"
	MessageID int       `json:"message_id"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"message_sent"`
}

// MessageLog appends sent messages to a JSON array on disk.
type MessageLog struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

// NewMessageLog creates a log at path. Local dates are rendered in loc.
func NewMessageLog(path string, loc *time.Location) *MessageLog {
	return &MessageLog{path: path, loc: loc}
}

// Append records s.
func (l *MessageLog) Append(s Sent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, LogEntry{
		Datetime:  s.Date.UTC(),
		Date:      s.Date.In(l.loc).Format("02 Jan 2006 15:04") + "hrs",
		MessageID: s.MessageID,
		ChatID:    s.ChatID,
		Text:      s.Text,
	})

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal message log: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write message log: %w", err)
	}
	return nil
}

// Entries returns every logged message, oldest first.
func (l *MessageLog) Entries() ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *MessageLog) read() ([]LogEntry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read message log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse message log: %w", err)
	}
	return entries, nil
}
