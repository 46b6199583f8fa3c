package uploaders

import "context"

// UploadRequest describes a single video to publish.
type UploadRequest struct {
	VideoPath   string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string // public, unlisted, private
	MadeForKids bool
}

// UploadResult is returned on a successful upload.
type UploadResult struct {
	Platform string `json:"platform"`
	VideoID  string `json:"video_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// Uploader publishes videos to a hosting platform.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Platform() string
}
