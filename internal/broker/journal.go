package broker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradebridge-go/internal/signal"
)

// JournalEntry pairs an executed signal with its outcome.
type JournalEntry struct {
	Time   time.Time          `json:"time"`
	Signal signal.TradeSignal `json:"signal"`
	Result OrderResult        `json:"result"`
}

// Journal appends execution outcomes as JSON lines for later analysis.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJournal creates/opens the target file and returns a journal.
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file, enc: json.NewEncoder(file)}, nil
}

// Record writes a single entry to the underlying file.
func (j *Journal) Record(sig signal.TradeSignal, result OrderResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return
	}
	_ = j.enc.Encode(JournalEntry{Time: time.Now().UTC(), Signal: sig, Result: result})
}

// Close flushes and closes the file handle; safe to call twice.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
