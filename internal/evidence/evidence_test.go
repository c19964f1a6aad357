package evidence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deskerrors "svcdesk/internal/errors"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Warranty-Card ")
	require.NoError(t, err)
	assert.Equal(t, KindWarrantyCard, k)

	_, err = ParseKind("selfie")
	assert.True(t, deskerrors.IsInvalidValue(err))
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		kind     Kind
		filename string
		wantErr  bool
	}{
		{"card photo", "c1", KindWarrantyCard, "card.JPG", false},
		{"slip pdf", "c1", KindInvoiceSlip, "slip.pdf", false},
		{"video", "c1", KindFeedbackVideo, "feedback.mp4", false},
		{"video as card", "c1", KindWarrantyCard, "card.mp4", true},
		{"photo as video", "c1", KindFeedbackVideo, "clip.png", true},
		{"no extension", "c1", KindInvoiceSlip, "slip", true},
		{"path in id", "../etc", KindInvoiceSlip, "slip.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := ObjectName(tt.id, tt.kind, tt.filename)
			if tt.wantErr {
				assert.True(t, deskerrors.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(name, "evidence/"+tt.id+"/"+string(tt.kind)+"-"))
			assert.Equal(t, strings.ToLower(filepath.Ext(tt.filename)), filepath.Ext(name))
		})
	}
}

func TestLocalUploader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "evidence")
	u, err := NewLocalUploader(dir, "/evidence/")
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), "c1", KindWarrantyCard, File{
		Name: "card.png",
		Body: strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/evidence/c1/warranty-card-"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "/evidence/"))))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = u.Upload(context.Background(), "c1", KindWarrantyCard, File{Name: "card.exe", Body: strings.NewReader("x")})
	assert.True(t, deskerrors.IsValidation(err))
}

func TestNewR2UploaderRequiresSettings(t *testing.T) {
	_, err := NewR2Uploader(context.Background(), "bucket", "", "secret", "https://r2.example", "")
	assert.Error(t, err)
}

func TestR2ObjectURL(t *testing.T) {
	u, err := NewR2Uploader(context.Background(), "svcdesk", "key", "secret", "https://acct.r2.cloudflarestorage.com", "https://files.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/svcdesk/evidence/c1/x.png", u.objectURL("evidence/c1/x.png"))
}
