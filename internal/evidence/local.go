package evidence

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader stores evidence under a directory that the HTTP server
// exposes at URLPrefix.
type LocalUploader struct {
	Dir       string
	URLPrefix string
}

// NewLocalUploader creates dir if needed.
func NewLocalUploader(dir, urlPrefix string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory %s: %w", dir, err)
	}
	return &LocalUploader{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Upload writes the file to disk and returns its URL path.
func (u *LocalUploader) Upload(ctx context.Context, complaintID string, kind Kind, f File) (string, error) {
	objectName, err := ObjectName(complaintID, kind, f.Name)
	if err != nil {
		return "", err
	}
	// Objects are stored relative to Dir without the leading "evidence/".
	rel := strings.TrimPrefix(objectName, "evidence/")
	path := filepath.Join(u.Dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := io.Copy(w, f.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", f.Name, err)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return u.URLPrefix + "/" + rel, nil
}
