package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotImage    = errors.New("uploaded file is not an image")
	ErrTooLarge    = errors.New("uploaded file is too large")
	ErrOutsideRoot = errors.New("path is outside the upload directory")
)

// Storage keeps cover images on local disk under a single directory.
type Storage struct {
	dir      string
	maxBytes int64
}

func NewStorage(dir string, maxBytes int64) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Storage) Dir() string {
	return s.dir
}

// Save writes the uploaded file under a random name that keeps the original
// extension and returns its path relative to the working directory.
func (s *Storage) Save(fh *multipart.FileHeader) (string, int64, error) {
	if fh.Size > s.maxBytes {
		return "", 0, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", 0, fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", 0, ErrNotImage
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("rewind upload: %w", err)
	}

	ext := Extension(fh.Filename)
	if ext == "" {
		ext = mtype.Extension()
	}
	path := filepath.ToSlash(filepath.Join(s.dir, uuid.NewString()+ext))

	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create cover file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = s.Remove(path)
		return "", 0, err
	}

	return path, written, nil
}

// Remove deletes a stored cover. Missing files are not an error.
func (s *Storage) Remove(path string) error {
	if !s.Contains(path) {
		return ErrOutsideRoot
	}
	if err := os.Remove(filepath.FromSlash(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).WithField("path", path).Warn("Failed to remove cover file")
		return err
	}
	return nil
}

// Contains reports whether path resolves to a file directly inside the upload directory.
func (s *Storage) Contains(path string) bool {
	if path == "" {
		return false
	}
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return false
	}
	return filepath.Dir(target) == root
}

// Extension returns the lower-cased extension of name including the dot,
// or "" when it is missing or not purely alphanumeric.
func Extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
