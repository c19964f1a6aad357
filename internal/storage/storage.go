// Package storage provides the persistence slots behind the complaint store.
//
// Every backend stores the whole complaint collection as one JSON document
// under a single key, mirroring the way the collection is serialised:
//  1. FileSlot: <dir>/<key>.json on local disk
//  2. SQLiteSlot: one row of a key/value table (GORM)
//  3. MongoSlot: one document of a collection
//
// Load returns (nil, nil) while nothing has been saved under the key, which
// the store treats as "start from seed data".
package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// bufferSize for buffered writes (64KB)
const bufferSize = 64 * 1024

// FileSlot keeps the collection in a JSON file.
//
// Writes replace the whole file atomically. The mutex serialises writers
// that share the same slot value.
type FileSlot struct {
	mu   sync.Mutex
	path string
}

// NewFileSlot creates a slot stored at <dir>/<key>.json, creating dir if
// needed.
func NewFileSlot(dir, key string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileSlot{path: filepath.Join(dir, key+".json")}, nil
}

// Path returns the backing file path.
func (s *FileSlot) Path() string {
	return s.path
}

// Load reads the stored document.
func (s *FileSlot) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Println("📋 No existing complaint file found at", s.path)
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the stored document. The data is written to a temporary
// file next to the slot and renamed over it, so an interrupted write never
// leaves a truncated slot behind.
func (s *FileSlot) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bufferedWriter := bufio.NewWriterSize(tmp, bufferSize)
	if _, err := bufferedWriter.Write(data); err != nil {
		return err
	}
	if err := bufferedWriter.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	committed = true
	return nil
}
