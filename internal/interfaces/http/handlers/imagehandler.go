package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"dropcode/internal/infrastructure/storage"
	"dropcode/internal/shared/utils"
)

// ImageHandler serves stored capture screenshots by content hash.
type ImageHandler struct {
	store *storage.ImageStore
}

func NewImageHandler(store *storage.ImageStore) *ImageHandler {
	return &ImageHandler{store: store}
}

// GetImage streams one screenshot. Names outside the content-hash
// format are rejected before touching the filesystem.
func (h *ImageHandler) GetImage(c *gin.Context) {
	path, err := h.store.Path(c.Param("name"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImageName) {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid image name")
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			utils.ErrorResponse(c, http.StatusNotFound, "image not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve image")
		return
	}

	c.Header("Content-Type", "image/png")
	c.File(path)
}
