package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-chat/internal/blobstore"
)

func setupUploadRouter(t *testing.T) (*gin.Engine, *blobstore.DiskStore) {
	t.Helper()
	store, err := blobstore.NewDiskStore(t.TempDir(), "http://localhost:8083")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewUploadHandler(store)
	r.POST("/uploads", handler.Upload)
	r.DELETE("/uploads/*path", handler.Delete)
	return r, store
}

func multipartBody(t *testing.T, path string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("path", path))
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadStoresBlob(t *testing.T) {
	router, store := setupUploadRouter(t)

	body, contentType := multipartBody(t, "chat-media/r1/photo.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		URL  string `json:"url"`
		Path string `json:"path"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "http://localhost:8083/media/chat-media/r1/photo.png", resp.URL)

	stored, err := os.ReadFile(filepath.Join(store.Root(), "chat-media", "r1", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), stored)
}

func TestUploadRequiresPath(t *testing.T) {
	router, _ := setupUploadRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRemovesBlob(t *testing.T) {
	router, store := setupUploadRouter(t)

	body, contentType := multipartBody(t, "chat-media/r1/clip.webm", []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/uploads/chat-media/r1/clip.webm", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := os.Stat(filepath.Join(store.Root(), "chat-media", "r1", "clip.webm"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingBlob(t *testing.T) {
	router, _ := setupUploadRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/uploads/chat-media/r1/nope.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
