package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/models"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Uploader writes review images to storage, under PendingPrefix while
// moderation is enabled.
type Uploader struct {
	storage  Storage
	maxBytes int64
	pending  bool
}

func NewUploader(storage Storage, maxBytes int64, moderated bool) *Uploader {
	return &Uploader{storage: storage, maxBytes: maxBytes, pending: moderated}
}

func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload sniffs the content type rather than trusting the client header.
func (u *Uploader) Upload(ctx context.Context, userID string, r io.Reader) (*models.UploadResponse, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrUnsupportedType
	}

	contentType := http.DetectContentType(head)
	ext, ok := imageExt[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}

	key := fmt.Sprintf("reviews/%s/%s%s", userID, uuid.New().String(), ext)
	if u.pending {
		key = PendingPrefix + key
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if u.maxBytes > 0 {
		body = &limitedReader{r: body, remaining: u.maxBytes}
	}
	md := map[string]string{"userId": userID, "type": "review_image"}
	if err := u.storage.Put(ctx, key, body, contentType, md); err != nil {
		if errors.Is(err, ErrTooLarge) {
			_ = u.storage.Delete(ctx, key)
			return nil, ErrTooLarge
		}
		return nil, err
	}
	return &models.UploadResponse{Key: key, URL: u.storage.URL(key)}, nil
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
