package handlers

import (
	"errors"
	"net/http"

	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
)

type ImageHandler struct {
	uploads *media.Uploader
}

func NewImageHandler(uploads *media.Uploader) *ImageHandler {
	return &ImageHandler{uploads: uploads}
}

// Upload accepts a single multipart "file" field. The returned key is what
// reviews reference in their images list.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse("UPLOADS_DISABLED", "Image uploads are not configured"))
		return
	}
	limit := h.uploads.MaxBytes()
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.NewCodedErrorResponse("FILE_TOO_LARGE", "Image exceeds the upload size limit"))
			return
		}
		writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("INVALID_FORM", "Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("FILE_REQUIRED", "No image file provided"))
		return
	}
	defer file.Close()

	resp, err := h.uploads.Upload(r.Context(), middleware.GetUserID(r.Context()), file)
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("UNSUPPORTED_TYPE", "Invalid image type. Allowed: JPEG, PNG, WebP"))
	case errors.Is(err, media.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, models.NewCodedErrorResponse("FILE_TOO_LARGE", "Image exceeds the upload size limit"))
	case err != nil:
		writeError(w, r, err)
	default:
		writeCreated(w, resp)
	}
}
