package storage

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
)

// ErrTooLarge файл больше допустимого размера.
var ErrTooLarge = apperror.Field("file", "The submitted file is too large.")

// headerSize filetype определяет тип по первым 261 байтам.
const headerSize = 261

// objectKey уникальный ключ файла внутри каталога folder.
func objectKey(folder, filename string) string {
	name := sanitizeFilename(filename)
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	if len(base) > 40 {
		base = base[:40]
	}
	return path.Join(sanitizeFolder(folder), fmt.Sprintf("%s_%s_%d%s", base, uuid.NewString()[:8], time.Now().Unix(), ext))
}

func sanitizeFolder(folder string) string {
	folder = path.Clean("/" + strings.ReplaceAll(folder, "\\", "/"))
	return strings.TrimPrefix(folder, "/")
}

// Detect определяет MIME тип по содержимому. Возвращённый reader отдаёт файл целиком.
func Detect(r io.Reader) (string, io.Reader, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	header = header[:n]

	contentType := "application/octet-stream"
	if kind, err := filetype.Match(header); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}
	return contentType, io.MultiReader(bytes.NewReader(header), r), nil
}

// RequireImage проверяет, что содержимое является изображением.
func RequireImage(field string, r io.Reader) (io.Reader, error) {
	contentType, rest, err := Detect(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperror.Field(field, "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	return rest, nil
}
