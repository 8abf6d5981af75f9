package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/services"
)

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func multipartRequest(t *testing.T, url, token, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "photo")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, func(o *services.Options) {
		st, err := media.NewLocalStorage(dir, "http://localhost/uploads")
		if err != nil {
			t.Fatal(err)
		}
		o.MediaStorage = st
	})
	alice := s.register(t, "alice", "USER")

	tests := []struct {
		name    string
		field   string
		content []byte
		status  int
		code    string
	}{
		{"png", "file", tinyPNG, http.StatusCreated, ""},
		{"text file", "file", []byte("definitely not an image"), http.StatusBadRequest, "UNSUPPORTED_TYPE"},
		{"wrong field", "image", tinyPNG, http.StatusBadRequest, "FILE_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.send(t, multipartRequest(t, s.URL+"/api/uploads", alice.Token, tt.field, tt.content))
			if resp.StatusCode != tt.status || env.Code != tt.code {
				t.Fatalf("got %d %s, want %d %s", resp.StatusCode, env.Code, tt.status, tt.code)
			}
			if tt.status != http.StatusCreated {
				return
			}
			var out struct {
				Key string `json:"key"`
				URL string `json:"url"`
			}
			expect(t, resp, env, tt.status, &out)
			// No detector is configured, so the key is final rather than pending.
			if !strings.HasPrefix(out.Key, "reviews/"+alice.User.ID+"/") || !strings.HasSuffix(out.Key, ".png") {
				t.Fatalf("key = %q", out.Key)
			}
		})
	}
}

func TestUploadDisabledWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "USER")
	resp, env := s.send(t, multipartRequest(t, s.URL+"/api/uploads", alice.Token, "file", tinyPNG))
	if resp.StatusCode != http.StatusServiceUnavailable || env.Code != "UPLOADS_DISABLED" {
		t.Fatalf("got %d %s", resp.StatusCode, env.Code)
	}
}
