package domain

import (
	"strings"
	"time"
)

// MediaItem is an uploaded asset referenced by URL. Storage itself lives elsewhere.
type MediaItem struct {
	ID          int64     `json:"id"`
	BrandID     int64     `json:"brandId"`
	UploaderID  int64     `json:"uploaderId"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Kind        string    `json:"kind"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateMediaRequest is the body for POST /media.
type CreateMediaRequest struct {
	BrandID     *int64 `json:"brandId,omitempty"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Validate checks the required fields.
func (r *CreateMediaRequest) Validate() error {
	if !strings.HasPrefix(r.URL, "https://") && !strings.HasPrefix(r.URL, "http://") {
		return &ErrValidation{Field: "url", Message: "must be an http(s) URL"}
	}
	if r.SizeBytes < 0 {
		return &ErrValidation{Field: "sizeBytes", Message: "cannot be negative"}
	}
	return nil
}

// MediaKind classifies a content type as image, video or other.
func MediaKind(contentType, filename string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image"
	case strings.HasPrefix(ct, "video/"):
		return "video"
	}
	name := strings.ToLower(filename)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(name, ext) {
			return "image"
		}
	}
	for _, ext := range []string{".mp4", ".mov", ".webm"} {
		if strings.HasSuffix(name, ext) {
			return "video"
		}
	}
	return "other"
}
