// Package attachment tracks preview files created for user-selected images
// before they are uploaded.
//
// Every preview created by a Manager is removed exactly once: ReleaseAll
// skips previews that were already released, so calling it repeatedly is safe.
package attachment

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/set-night/visionchat/internal/domain"
)

// Pending is a preview of a selected image. It is owned by the Manager that
// created it until released.
type Pending struct {
	File     domain.ImageFile
	Path     string
	consumed bool
	released bool
}

// Consumed reports whether the preview was bound to a message.
func (p *Pending) Consumed() bool {
	return p.consumed
}

// Manager creates and releases preview files for one chat.
type Manager struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	pending  []*Pending
}

// NewManager creates a manager that writes previews into dir. An empty dir
// uses the OS temp directory; maxBytes <= 0 disables the size check.
func NewManager(dir string, maxBytes int64) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Manager{dir: dir, maxBytes: maxBytes}
}

// Validate checks that f is an image within the size limit and fills in its
// MIME type when the caller did not know it.
func (m *Manager) Validate(f *domain.ImageFile) error {
	if f.Size() == 0 {
		return domain.ErrInvalidImage
	}
	if m.maxBytes > 0 && int64(f.Size()) > m.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrImageTooLarge, f.Size(), m.maxBytes)
	}
	mimeType := strings.TrimSpace(f.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(f.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("%w: %s", domain.ErrInvalidImage, mimeType)
	}
	f.MIMEType = mimeType
	if f.Name == "" {
		f.Name = "image" + extensionFor(mimeType)
	}
	return nil
}

// Select writes a preview file for f. Nothing is transmitted.
func (m *Manager) Select(f domain.ImageFile) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tmp, err := os.CreateTemp(m.dir, "preview-*"+extensionFor(f.MIMEType))
	if err != nil {
		return nil, fmt.Errorf("create preview: %w", err)
	}
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close preview: %w", err)
	}

	p := &Pending{File: f, Path: tmp.Name()}
	m.pending = append(m.pending, p)
	return p, nil
}

// Consume binds p to a just-created message and returns the reference the
// message should carry. The preview file stays on disk until released.
func (m *Manager) Consume(p *Pending) domain.ImageRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.consumed = true
	return domain.ImageRef{
		Kind:     domain.ImageLocal,
		URL:      (&url.URL{Scheme: "file", Path: filepath.ToSlash(p.Path)}).String(),
		Name:     p.File.Name,
		MIMEType: p.File.MIMEType,
	}
}

// ReleaseAll removes every preview not yet released and returns how many
// were released by this call.
func (m *Manager) ReleaseAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for _, p := range m.pending {
		if p.released {
			continue
		}
		p.released = true
		released++
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove preview", "path", p.Path, "error", err)
		}
	}
	m.pending = m.pending[:0]
	return released
}

// Outstanding returns the number of previews that still hold a file.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.pending {
		if !p.released {
			n++
		}
	}
	return n
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}
