// Package media stores uploaded product images on local disk.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// MaxImageSize bounds a single upload.
	MaxImageSize = 5 << 20
	// URLPrefix is the public path under which stored files are served.
	URLPrefix = "/uploads"
)

var (
	ErrTooLarge        = errors.New("image file too large (max 5MB)")
	ErrUnsupportedType = errors.New("unsupported image type, use jpeg, png or webp")
	ErrEmpty           = errors.New("image file is empty")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// DiskStore writes blobs below root and hands out references of the form
// /uploads/<dir>/<uuid><ext>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: filepath.Clean(root)}
}

func (s *DiskStore) Root() string {
	return s.root
}

// Save sniffs the content type, rejects anything that is not an allowed
// image and writes the bytes under dir.
func (s *DiskStore) Save(ctx context.Context, dir string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	ext, ok := allowedTypes[mimetype.Detect(data).String()]
	if !ok {
		return "", ErrUnsupportedType
	}

	dir = strings.Trim(path.Clean("/"+dir), "/")
	target := filepath.Join(s.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.NewString() + ext
	out, err := os.Create(filepath.Join(target, filename))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return URLPrefix + "/" + path.Join(dir, filename), nil
}

// Delete removes a stored blob. Missing files are not an error; references
// outside the upload root are refused.
func (s *DiskStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(ref)
	if err != nil || target == "" {
		return err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	if !strings.HasPrefix(cleanRel, URLPrefix+"/") {
		return "", fmt.Errorf("refusing to delete non-upload path: %s", ref)
	}
	cleanRel = strings.TrimPrefix(cleanRel, URLPrefix+"/")

	target := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(cleanRel)))
	if !strings.HasPrefix(target, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("refusing to delete path outside upload root: %s", ref)
	}
	return target, nil
}
