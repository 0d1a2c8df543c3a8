package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hardik18-hk19/urbi-fix-sub000/internal/domain"
)

// StoredFile describes a persisted attachment.
type StoredFile struct {
	Kind      domain.MessageType
	URL       string
	Filename  string
	SizeBytes int64
}

var imageExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".gif":  {},
}

var documentExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".txt":  {},
}

// LocalStore keeps attachments on the local filesystem and serves them
// under a static URL prefix.
type LocalStore struct {
	dir      string
	maxBytes int64
}

func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// Save persists the upload under a generated name and reports whether it is
// an image or a document. Disallowed extensions and oversized files are
// rejected before anything touches disk.
func (s *LocalStore) Save(filename string, size int64, r io.Reader) (*StoredFile, error) {
	kind, err := classify(filename)
	if err != nil {
		return nil, err
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, s.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	storedName := uuid.New().String() + ext
	path := filepath.Join(s.dir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create attachment file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, s.maxBytes)
	}

	return &StoredFile{
		Kind:      kind,
		URL:       "/uploads/" + storedName,
		Filename:  filepath.Base(filename),
		SizeBytes: written,
	}, nil
}

// Dir is the directory static file serving should expose as /uploads.
func (s *LocalStore) Dir() string {
	return s.dir
}

func classify(filename string) (domain.MessageType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExtensions[ext]; ok {
		return domain.MessageTypeImage, nil
	}
	if _, ok := documentExtensions[ext]; ok {
		return domain.MessageTypeDocument, nil
	}
	return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrValidation, ext)
}
