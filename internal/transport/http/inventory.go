package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/imagedrop/storefront/internal/app"
	"github.com/imagedrop/storefront/internal/domain"
)

// InventoryAdmin is the inventory surface of the admin panel.
type InventoryAdmin interface {
	Overview(ctx context.Context) (app.Overview, error)
	MarkDelivered(ctx context.Context, imageIDs []string) (int, error)
	Upload(ctx context.Context, locationID, tier string, files []app.UploadFile) ([]domain.Image, error)
	Delete(ctx context.Context, imageID string) error
}

type imagePayload struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	LocationID  string     `json:"locationId"`
	Category    string     `json:"category"`
	Path        string     `json:"path"`
	Size        int64      `json:"size"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

func toImagePayload(img domain.Image) imagePayload {
	return imagePayload{
		ID:          img.ID,
		Filename:    img.Filename,
		LocationID:  img.LocationID,
		Category:    img.ProductTier,
		Path:        "/images/" + img.ID,
		Size:        img.Size,
		UploadedAt:  img.UploadedAt,
		Status:      string(img.Status),
		DeliveredAt: img.DeliveredAt,
	}
}

type inventoryResponse struct {
	Images    []imagePayload `json:"images"`
	Total     int            `json:"total"`
	Delivered int            `json:"delivered"`
}

type deleteInventoryRequest struct {
	ImageIDs []string `json:"imageIds"`
}

// HandleInventory serves the admin inventory report and the bulk
// mark-delivered action.
func HandleInventory(svc InventoryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			overview, err := svc.Overview(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			images := make([]imagePayload, 0, len(overview.Images))
			for _, img := range overview.Images {
				images = append(images, toImagePayload(img))
			}
			writeJSON(w, http.StatusOK, inventoryResponse{
				Images:    images,
				Total:     overview.Total,
				Delivered: overview.Delivered,
			})
		case http.MethodDelete:
			var req deleteInventoryRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil || len(req.ImageIDs) == 0 {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid image IDs")
				return
			}
			marked, err := svc.MarkDelivered(r.Context(), req.ImageIDs)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, statusResponse{
				Success: true,
				Message: fmt.Sprintf("%d images marked as delivered", marked),
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

const maxUploadBytes = 32 << 20

type uploadResponse struct {
	Success  bool           `json:"success"`
	Uploaded int            `json:"uploaded"`
	Files    []imagePayload `json:"files"`
}

// HandleInventoryUpload accepts the admin multipart upload form:
// images[] plus the bucket's location and category fields.
func HandleInventoryUpload(svc InventoryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid multipart form")
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		location := r.FormValue("location")
		category := r.FormValue("category")
		if category == "" {
			category = "general"
		}

		headers := r.MultipartForm.File["images"]
		if len(headers) == 0 {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "no files uploaded")
			return
		}

		files := make([]app.UploadFile, 0, len(headers))
		opened := make([]interface{ Close() error }, 0, len(headers))
		for _, h := range headers {
			f, err := h.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable upload")
				break
			}
			opened = append(opened, f)
			files = append(files, app.UploadFile{Name: h.Filename, Reader: f})
		}
		defer func() {
			for _, f := range opened {
				_ = f.Close()
			}
		}()
		if len(files) != len(headers) {
			return
		}

		uploaded, err := svc.Upload(r.Context(), location, category, files)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "location and category are required")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "upload failed")
			}
			return
		}

		payloads := make([]imagePayload, 0, len(uploaded))
		for _, img := range uploaded {
			payloads = append(payloads, toImagePayload(img))
		}
		writeJSON(w, http.StatusOK, uploadResponse{
			Success:  true,
			Uploaded: len(payloads),
			Files:    payloads,
		})
	}
}
