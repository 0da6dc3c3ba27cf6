package handlers

import (
	"errors"
	"net/http"

	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/platform/storage"
	"github.com/showcase/api/internal/services"
)

const multipartMemory = 4 << 20

type uploadedImagePayload struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// uploadImage accepts a multipart "image" file and an optional "purpose" of logo or item.
func (h *MeHandlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.images == nil {
		writeUnavailable(ctx, w, "image")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "image exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "multipart form with an image file is required"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, _, err := r.FormFile("image")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "image file is required"))
		return
	}
	defer file.Close()

	purpose, err := storage.ParseImagePurpose(r.FormValue("purpose"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	uploaded, err := h.images.Upload(ctx, services.ImageUploadCommand{
		UserID:  identity.UID,
		Purpose: purpose,
		Body:    file,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, uploadedImagePayload{
		URL:    uploaded.URL,
		Width:  uploaded.Width,
		Height: uploaded.Height,
		Bytes:  uploaded.Bytes,
	})
}
