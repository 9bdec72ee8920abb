package upload_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/upload"
)

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	t.Run("normalizes extensions and MIME types", func(t *testing.T) {
		t.Parallel()

		p, err := upload.NewPolicy(
			upload.AllowListEntry{Extension: "PDF", MIMEType: "Application/PDF"},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{".pdf"}, p.AllowedExtensions())
		assert.Equal(t, []string{"application/pdf"}, p.AllowedMIMETypes())
	})

	t.Run("rejects empty allow-list", func(t *testing.T) {
		t.Parallel()

		_, err := upload.NewPolicy()
		assert.ErrorIs(t, err, upload.ErrInvalidPolicy)
	})

	t.Run("rejects duplicate extension", func(t *testing.T) {
		t.Parallel()

		_, err := upload.NewPolicy(
			upload.AllowListEntry{Extension: ".jpg", MIMEType: "image/jpeg"},
			upload.AllowListEntry{Extension: ".jpg", MIMEType: "image/png"},
		)
		assert.ErrorIs(t, err, upload.ErrInvalidPolicy)
	})

	t.Run("rejects blank fields", func(t *testing.T) {
		t.Parallel()

		_, err := upload.NewPolicy(upload.AllowListEntry{Extension: ".jpg"})
		assert.ErrorIs(t, err, upload.ErrInvalidPolicy)
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	policy := upload.DefaultPolicy()

	tests := []struct {
		name     string
		filename string
		mime     string
		wantErr  error
	}{
		{"jpg with jpeg bytes", "photo.jpg", "image/jpeg", nil},
		{"jpeg alias shares MIME type", "photo.jpeg", "image/jpeg", nil},
		{"pdf", "doc.pdf", "application/pdf", nil},
		{"case-insensitive extension", "PHOTO.JPG", "image/jpeg", nil},
		{"charset parameter tolerated", "notes.txt", "text/plain; charset=utf-8", nil},
		{"extension not allowed", "tool.exe", "application/pdf", upload.ErrExtensionNotAllowed},
		{"mime not allowed", "page.txt", "text/html", upload.ErrMIMETypeNotAllowed},
		{"renamed payload caught", "payload.jpg", "image/png", upload.ErrExtensionMismatch},
		{"docx bytes behind doc name", "letter.doc", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", upload.ErrExtensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := policy.Validate(tt.filename, tt.mime)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPolicyCheckExtension(t *testing.T) {
	t.Parallel()

	policy := upload.DefaultPolicy()

	assert.NoError(t, policy.CheckExtension("report.pdf"))
	assert.NoError(t, policy.CheckExtension("IMAGE.PNG"))
	assert.ErrorIs(t, policy.CheckExtension("script.sh"), upload.ErrExtensionNotAllowed)
	assert.ErrorIs(t, policy.CheckExtension("noextension"), upload.ErrExtensionNotAllowed)
}

func TestLoadPolicy(t *testing.T) {
	t.Parallel()

	t.Run("loads YAML allow-list", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "policy.yaml")
		content := `allow_list:
  - extension: .png
    mime_type: image/png
  - extension: .webp
    mime_type: image/webp
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		p, err := upload.LoadPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, []string{".png", ".webp"}, p.AllowedExtensions())
		assert.NoError(t, p.Validate("pic.webp", "image/webp"))
		assert.ErrorIs(t, p.Validate("doc.pdf", "application/pdf"), upload.ErrExtensionNotAllowed)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := upload.LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, upload.ErrInvalidPolicy)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("allow_list: [unclosed"), 0o644))

		_, err := upload.LoadPolicy(path)
		assert.ErrorIs(t, err, upload.ErrInvalidPolicy)
	})
}
