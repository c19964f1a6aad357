// Package evidence stores the photos and videos a technician attaches when
// closing a complaint: the warranty card, the invoice slip and the customer
// feedback video.
package evidence

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"svcdesk/internal/complaint"
	deskerrors "svcdesk/internal/errors"
)

// Kind is the role of an evidence file.
type Kind = complaint.EvidenceKind

const (
	KindWarrantyCard  = complaint.EvidenceWarrantyCard
	KindInvoiceSlip   = complaint.EvidenceInvoiceSlip
	KindFeedbackVideo = complaint.EvidenceFeedbackVideo
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true, ".pdf": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".webm": true, ".3gp": true}
)

// ParseKind validates a kind from a URL path segment.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWarrantyCard:
		return KindWarrantyCard, nil
	case KindInvoiceSlip:
		return KindInvoiceSlip, nil
	case KindFeedbackVideo:
		return KindFeedbackVideo, nil
	}
	return "", fmt.Errorf("evidence kind %q: %w", s, deskerrors.ErrInvalidValue)
}

// File is one upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores a file and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, complaintID string, kind Kind, f File) (string, error)
}

// ObjectName builds the storage key of an upload and checks its extension
// against the kind.
func ObjectName(complaintID string, kind Kind, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := imageExts
	if kind == KindFeedbackVideo {
		allowed = videoExts
	}
	if !allowed[ext] {
		return "", deskerrors.NewValidationError(fmt.Sprintf("file type %q not allowed for %s", ext, kind), "file")
	}
	if strings.ContainsAny(complaintID, `/\`) || complaintID == "" || complaintID == "." || complaintID == ".." {
		return "", deskerrors.NewValidationError("invalid complaint id", "id")
	}
	return fmt.Sprintf("evidence/%s/%s-%d-%s%s", complaintID, kind, time.Now().UTC().Unix(), uuid.NewString(), ext), nil
}

func contentType(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
