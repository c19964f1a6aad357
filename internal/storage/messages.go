package storage

import (
	"bufio"
	"encoding/csv"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MessageLog remembers which Telegram message announced which complaint so
// later lifecycle updates can edit that message instead of posting a new one.
//
// Data flow:
//
//	Read:   CSV → map on construction → served from the map
//	Write:  map updated → row appended to CSV
//	Remove: map updated → CSV rewritten
type MessageLog struct {
	mu       sync.Mutex
	path     string
	messages map[string]string // complaint id → Telegram message ID
}

// NewMessageLog loads the log stored at path. A missing file is normal on
// first run; unreadable rows are skipped.
func NewMessageLog(path string) *MessageLog {
	l := &MessageLog{path: path, messages: make(map[string]string)}
	l.loadFromFile()
	return l
}

func (l *MessageLog) loadFromFile() {
	file, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Println("⚠️  Failed to open message log:", err)
		}
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		log.Println("⚠️  Failed to read message log:", err)
		return
	}

	for _, row := range rows {
		if len(row) >= 2 && row[0] != "" {
			l.messages[row[0]] = row[1]
		}
	}
	log.Println("📚 Loaded", len(l.messages), "Telegram message references")
}

// Get returns the message ID recorded for a complaint, or "".
func (l *MessageLog) Get(complaintID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.messages[complaintID]
}

// Set records the message ID for a complaint. The map is only updated once
// the row is on disk.
func (l *MessageLog) Set(complaintID, messageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	bufferedWriter := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(bufferedWriter)
	if err := writer.Write([]string{complaintID, messageID}); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	if err := bufferedWriter.Flush(); err != nil {
		return err
	}

	l.messages[complaintID] = messageID
	return nil
}

// Remove forgets a complaint and rewrites the file.
func (l *MessageLog) Remove(complaintID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.messages[complaintID]; !ok {
		return nil
	}
	delete(l.messages, complaintID)
	return l.rewriteFile()
}

// rewriteFile writes the whole map back. Caller must hold the lock.
func (l *MessageLog) rewriteFile() error {
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	bufferedWriter := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(bufferedWriter)
	for id, msgID := range l.messages {
		if err := writer.Write([]string{id, msgID}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return bufferedWriter.Flush()
}
