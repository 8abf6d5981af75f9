package media

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// SafeSearchResult holds Vision likelihood names (UNKNOWN, VERY_UNLIKELY,
// UNLIKELY, POSSIBLE, LIKELY, VERY_LIKELY).
type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

func likelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

// IsUnsafe flags adult, violent or racy content rated LIKELY or above.
func (r *SafeSearchResult) IsUnsafe() bool {
	return likelyOrHigher(r.Adult) || likelyOrHigher(r.Violence) || likelyOrHigher(r.Racy)
}

// Detector classifies a stored object.
type Detector interface {
	Detect(ctx context.Context, key string) (*SafeSearchResult, error)
}

// VisionDetector runs SAFE_SEARCH_DETECTION against objects in one bucket.
type VisionDetector struct {
	svc    *vision.Service
	bucket string
}

// NewVisionDetector uses Application Default Credentials.
func NewVisionDetector(ctx context.Context, bucket string) (*VisionDetector, error) {
	svc, err := vision.NewService(ctx, option.WithScopes(vision.CloudPlatformScope))
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionDetector{svc: svc, bucket: bucket}, nil
}

func (d *VisionDetector) Detect(ctx context.Context, key string) (*SafeSearchResult, error) {
	req := &vision.AnnotateImageRequest{
		Image: &vision.Image{
			Source: &vision.ImageSource{GcsImageUri: fmt.Sprintf("gs://%s/%s", d.bucket, key)},
		},
		Features: []*vision.Feature{{Type: "SAFE_SEARCH_DETECTION"}},
	}
	resp, err := d.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return &SafeSearchResult{}, nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return nil, fmt.Errorf("vision: %s", r.Error.Message)
	}
	ss := r.SafeSearchAnnotation
	if ss == nil {
		return &SafeSearchResult{}, nil
	}
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}
