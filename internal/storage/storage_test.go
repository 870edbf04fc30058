package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// минимальный заголовок PNG
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestLocalStorage_SaveAndDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, 1)
	require.NoError(t, err)

	key, err := s.Save(context.Background(), "values", "my photo.png", bytes.NewReader(pngHeader), int64(len(pngHeader)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "values/my_photo_"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, s.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(context.Background(), key))
}

func TestLocalStorage_RejectsLargeFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), 1)
	require.NoError(t, err)

	big := bytes.Repeat([]byte("a"), 1024*1024+1)
	_, err = s.Save(context.Background(), "attachments", "big.txt", bytes.NewReader(big), -1)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestObjectKey_StaysInsideFolder(t *testing.T) {
	key := objectKey("../../etc", "../passwd")
	assert.True(t, strings.HasPrefix(key, "etc/passwd_"))
}

func TestDetect_KeepsFullContent(t *testing.T) {
	contentType, r, err := Detect(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestRequireImage(t *testing.T) {
	_, err := RequireImage("cover_photo", bytes.NewReader(pngHeader))
	assert.NoError(t, err)

	_, err = RequireImage("cover_photo", strings.NewReader("plain text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid image")
}
