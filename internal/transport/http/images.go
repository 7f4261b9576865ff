package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/imagedrop/storefront/internal/domain"
)

// ImageOpener streams stored image bytes.
type ImageOpener interface {
	OpenImage(ctx context.Context, imageID string) (domain.Image, io.ReadCloser, error)
}

// HandleImageDownload serves a stored image by id.
func HandleImageDownload(svc ImageOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		imageID, ok := parseImagePath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		img, rc, err := svc.OpenImage(r.Context(), imageID)
		if err != nil {
			if err == domain.ErrImageNotFound {
				writeError(w, http.StatusNotFound, codeImageNotFound, "image not found")
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(filepath.Ext(img.Filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+img.Filename+`"`)
		_, _ = io.Copy(w, rc)
	}
}

func parseImagePath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "images" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
