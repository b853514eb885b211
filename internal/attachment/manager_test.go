package attachment

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/set-night/visionchat/internal/domain"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func testFile() domain.ImageFile {
	return domain.ImageFile{Name: "cat.png", MIMEType: "image/png", Data: pngHeader}
}

func TestSelectCreatesPreview(t *testing.T) {
	m := NewManager(t.TempDir(), 0)

	p, err := m.Select(testFile())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if _, err := os.Stat(p.Path); err != nil {
		t.Fatalf("preview file missing: %v", err)
	}
	if !strings.HasSuffix(p.Path, ".png") {
		t.Errorf("preview path = %q, want .png suffix", p.Path)
	}
	if p.Consumed() {
		t.Error("new preview should not be consumed")
	}
	if got := m.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
}

func TestConsumeKeepsFileUntilRelease(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	p, err := m.Select(testFile())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	ref := m.Consume(p)
	if ref.Kind != domain.ImageLocal {
		t.Errorf("Kind = %v, want ImageLocal", ref.Kind)
	}
	if !strings.HasPrefix(ref.URL, "file://") {
		t.Errorf("URL = %q, want file:// URL", ref.URL)
	}
	if ref.Name != "cat.png" || ref.MIMEType != "image/png" {
		t.Errorf("ref = %+v", ref)
	}
	if !p.Consumed() {
		t.Error("preview should be consumed")
	}
	if _, err := os.Stat(p.Path); err != nil {
		t.Fatalf("consumed preview removed early: %v", err)
	}

	if got := m.ReleaseAll(); got != 1 {
		t.Errorf("ReleaseAll() = %d, want 1", got)
	}
	if _, err := os.Stat(p.Path); !os.IsNotExist(err) {
		t.Errorf("preview still on disk after release: %v", err)
	}
}

func TestReleaseAllIdempotent(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	for i := 0; i < 3; i++ {
		if _, err := m.Select(testFile()); err != nil {
			t.Fatalf("Select() error = %v", err)
		}
	}

	if got := m.ReleaseAll(); got != 3 {
		t.Fatalf("first ReleaseAll() = %d, want 3", got)
	}
	if got := m.ReleaseAll(); got != 0 {
		t.Errorf("second ReleaseAll() = %d, want 0", got)
	}
	if got := m.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}

func TestReleaseAllToleratesMissingFile(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	p, err := m.Select(testFile())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	os.Remove(p.Path)

	if got := m.ReleaseAll(); got != 1 {
		t.Errorf("ReleaseAll() = %d, want 1", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		file     domain.ImageFile
		maxBytes int64
		wantErr  error
		wantMIME string
	}{
		{
			name:     "declared png",
			file:     testFile(),
			wantMIME: "image/png",
		},
		{
			name:     "sniffed when mime missing",
			file:     domain.ImageFile{Name: "x", Data: pngHeader},
			wantMIME: "image/png",
		},
		{
			name:    "empty data",
			file:    domain.ImageFile{Name: "x.png", MIMEType: "image/png"},
			wantErr: domain.ErrInvalidImage,
		},
		{
			name:    "not an image",
			file:    domain.ImageFile{Name: "notes.txt", Data: []byte("hello world")},
			wantErr: domain.ErrInvalidImage,
		},
		{
			name:     "too large",
			file:     testFile(),
			maxBytes: 4,
			wantErr:  domain.ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(t.TempDir(), tt.maxBytes)
			f := tt.file
			err := m.Validate(&f)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if f.MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", f.MIMEType, tt.wantMIME)
			}
		})
	}
}

func TestValidateNamesUnnamedFile(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	f := domain.ImageFile{Data: pngHeader}
	if err := m.Validate(&f); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if f.Name != "image.png" {
		t.Errorf("Name = %q, want image.png", f.Name)
	}
}
