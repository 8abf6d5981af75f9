package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
)

type fakeDetector struct {
	unsafe bool
	calls  int
}

func (d *fakeDetector) Detect(context.Context, string) (*SafeSearchResult, error) {
	d.calls++
	if d.unsafe {
		return &SafeSearchResult{Adult: "VERY_LIKELY"}, nil
	}
	return &SafeSearchResult{Adult: "VERY_UNLIKELY", Violence: "UNLIKELY", Racy: "POSSIBLE"}, nil
}

type recordingStrikes struct {
	users []string
}

func (s *recordingStrikes) IssueImageStrike(_ context.Context, userID, _ string) error {
	s.users = append(s.users, userID)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUploadUsesPendingPrefixWhenModerated(t *testing.T) {
	st := newLocal(t)
	up := NewUploader(st, 1<<20, true)

	res, err := up.Upload(context.Background(), "u1", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Key, "pending/reviews/u1/") || !strings.HasSuffix(res.Key, ".png") {
		t.Fatalf("key = %q", res.Key)
	}
	if res.URL != "/uploads/"+res.Key {
		t.Fatalf("url = %q", res.URL)
	}
	if ok, _ := st.Exists(context.Background(), res.Key); !ok {
		t.Fatal("object not stored")
	}
}

func TestUploadRejectsNonImagesAndOversize(t *testing.T) {
	st := newLocal(t)

	_, err := NewUploader(st, 1<<20, false).Upload(context.Background(), "u1", strings.NewReader("plain text, not an image"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("got %v, want ErrUnsupportedType", err)
	}

	big := append(pngBytes(t), make([]byte, 4096)...)
	_, err = NewUploader(st, 1024, false).Upload(context.Background(), "u1", bytes.NewReader(big))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestReviewPromotesSafeImage(t *testing.T) {
	ctx := context.Background()
	st := newLocal(t)
	det := &fakeDetector{}
	mod := NewModerator(st, det, &recordingStrikes{})

	res, err := NewUploader(st, 1<<20, true).Upload(ctx, "u1", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatal(err)
	}

	url, err := mod.Review(ctx, res.URL, "u1")
	if err != nil {
		t.Fatal(err)
	}
	final := strings.TrimPrefix(res.Key, PendingPrefix)
	if url != st.URL(final) {
		t.Fatalf("url = %q, want %q", url, st.URL(final))
	}
	if ok, _ := st.Exists(ctx, res.Key); ok {
		t.Fatal("pending object should be gone")
	}

	// Already promoted elsewhere: resolves without another detection.
	again, err := mod.Review(ctx, res.Key, "u1")
	if err != nil || again != url {
		t.Fatalf("second review = %q, %v", again, err)
	}
	if det.calls != 1 {
		t.Fatalf("detector called %d times", det.calls)
	}
}

func TestReviewRejectsUnsafeImageAndStrikes(t *testing.T) {
	ctx := context.Background()
	st := newLocal(t)
	strikes := &recordingStrikes{}
	mod := NewModerator(st, &fakeDetector{unsafe: true}, strikes)

	res, err := NewUploader(st, 1<<20, true).Upload(ctx, "u9", bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatal(err)
	}
	_, err = mod.ReviewAll(ctx, []string{res.Key}, "u9")
	if !errors.Is(err, ErrImageRejected) {
		t.Fatalf("got %v, want ErrImageRejected", err)
	}
	if ok, _ := st.Exists(ctx, res.Key); ok {
		t.Fatal("rejected object should be deleted")
	}
	if len(strikes.users) != 1 || strikes.users[0] != "u9" {
		t.Fatalf("strikes = %v", strikes.users)
	}
}

func TestReviewPassesThroughWhenDisabled(t *testing.T) {
	mod := NewModerator(newLocal(t), nil, nil)
	got, err := mod.Review(context.Background(), "https://example.com/a.jpg", "u1")
	if err != nil || got != "https://example.com/a.jpg" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestIsUnsafe(t *testing.T) {
	tests := []struct {
		name string
		res  SafeSearchResult
		want bool
	}{
		{"clean", SafeSearchResult{Adult: "VERY_UNLIKELY"}, false},
		{"possible racy", SafeSearchResult{Racy: "POSSIBLE"}, false},
		{"likely violence", SafeSearchResult{Violence: "LIKELY"}, true},
		{"spoof ignored", SafeSearchResult{Spoof: "VERY_LIKELY"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.IsUnsafe(); got != tt.want {
				t.Fatalf("IsUnsafe = %v, want %v", got, tt.want)
			}
		})
	}
}
