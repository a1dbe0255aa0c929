package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
)

// Bytes read ahead for content sniffing
const sniffLen = 512

type UploadSaver interface {
	Save(ctx context.Context, userID *uuid.UUID, file security.File) (*models.Upload, error)
}

type UploadHandler struct {
	uploads  UploadSaver
	maxBytes int64
}

// maxBytes caps the request body, multipart framing included
func NewUploadHandler(uploads UploadSaver, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

// Handles POST /api/uploads with a multipart "file" field
func (h *UploadHandler) Upload(c *gin.Context) {
	g, ok := sessionGate(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			g.LogViolation("File validation failed: request body exceeds upload limit")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field \"file\" is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
		return
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
		return
	}
	header = header[:n]

	file := security.File{
		Name:    fh.Filename,
		Size:    fh.Size,
		Type:    fh.Header.Get("Content-Type"),
		Header:  header,
		Content: io.MultiReader(bytes.NewReader(header), f),
	}

	userID := currentUserID(c)
	var upload *models.Upload
	err = g.SecureFileUpload(c.Request.Context(), middleware.ThrottleKey(c), file, func(ctx context.Context, file security.File) error {
		var err error
		upload, err = h.uploads.Save(ctx, userID, file)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, upload)
}
