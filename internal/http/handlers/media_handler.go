package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/services-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/storage"
)

// ObjectStore хранилище загруженных файлов.
type ObjectStore interface {
	Save(ctx context.Context, folder, filename string, r io.Reader, size int64) (string, error)
}

// MediaHandler загрузка изображений для обложек и документов.
type MediaHandler struct {
	store ObjectStore
}

func NewMediaHandler(store ObjectStore) *MediaHandler {
	return &MediaHandler{store: store}
}

var mediaFolders = map[string]struct{}{
	"service_cover_photos":  {},
	"feature_cover_photos":  {},
	"provider_cover_photos": {},
	"provider_documents":    {},
	"profile_photos":        {},
	"advertisements":        {},
}

// Upload POST /media/:folder, multipart поле file. Возвращает ключ объекта.
func (h *MediaHandler) Upload(c *gin.Context) {
	folder := c.Param("folder")
	if _, ok := mediaFolders[folder]; !ok {
		common.RespondAppError(c, apperror.Field("folder", "Unknown upload folder."))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondAppError(c, apperror.Field("file", "No file was submitted."))
		return
	}
	if file.Size == 0 {
		common.RespondAppError(c, apperror.Field("file", "The submitted file is empty."))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	defer src.Close()

	body, err := storage.RequireImage("file", src)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	key, err := h.store.Save(c.Request.Context(), folder, file.Filename, body, file.Size)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}
