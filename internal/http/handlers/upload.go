package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/platform/apierr"
)

// multipartOverhead is headroom for form boundaries and fields on top of the
// document size limit.
const multipartOverhead = 1 << 20

var errNoFile = errors.New(`multipart field "file" is required`)

// readUpload extracts the document from the "file" field. The declared type is
// the optional "type" form field, else the part's Content-Type.
func readUpload(c *gin.Context, maxBytes int64) (pipeline.Upload, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return pipeline.Upload{}, apierr.New(http.StatusRequestEntityTooLarge, "document_too_large", fmt.Errorf("upload exceeds %d bytes", maxBytes))
		}
		return pipeline.Upload{}, apierr.New(http.StatusBadRequest, "invalid_request", errNoFile)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return pipeline.Upload{}, apierr.New(http.StatusRequestEntityTooLarge, "document_too_large", fmt.Errorf("upload exceeds %d bytes", maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return pipeline.Upload{}, apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Upload{}, apierr.New(http.StatusBadRequest, "invalid_request", err)
	}

	declared := strings.TrimSpace(c.PostForm("type"))
	if declared == "" {
		declared = fh.Header.Get("Content-Type")
	}
	return pipeline.Upload{Filename: fh.Filename, DeclaredType: declared, Bytes: raw}, nil
}
