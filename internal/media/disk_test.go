package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestSaveSniffsAndStoresImage(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStore(root)

	ref, err := s.Save(context.Background(), "products", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/products/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	stored, err := os.ReadFile(filepath.Join(root, "products", filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)
}

func TestSaveRejectsNonImages(t *testing.T) {
	s := NewDiskStore(t.TempDir())

	_, err := s.Save(context.Background(), "products", strings.NewReader("<html><body>hi</body></html>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), "products", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSaveRejectsOversizedUploads(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	big := append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...)

	_, err := s.Save(context.Background(), "products", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDeleteRemovesOnlyUploads(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStore(root)

	ref, err := s.Save(context.Background(), "products", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.Join(root, "products", filepath.Base(ref)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(context.Background(), ref))
	assert.NoError(t, s.Delete(context.Background(), ""))
	assert.Error(t, s.Delete(context.Background(), "/etc/passwd"))
	assert.Error(t, s.Delete(context.Background(), "/uploads/../../secret"))
}
