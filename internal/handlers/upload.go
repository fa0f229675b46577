package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-chat/internal/blobstore"
	"studio-chat/internal/observability"
)

// UploadHandler moves media blobs in and out of the blob store.
type UploadHandler struct {
	store blobstore.Store
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(store blobstore.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload accepts a multipart file plus its target path and returns the
// durable public URL.
func (h *UploadHandler) Upload(c *gin.Context) {
	path := c.PostForm("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer src.Close()

	url, err := h.store.Upload(c.Request.Context(), path, src)
	if err != nil {
		observability.IncBlobUpload("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	observability.IncBlobUpload("ok")
	c.JSON(http.StatusCreated, gin.H{"url": url, "path": path})
}

// Delete removes a stored object by path.
func (h *UploadHandler) Delete(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), path); err != nil {
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
