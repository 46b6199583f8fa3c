package uploaders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"match-highlights/internal/logging"
)

// CategorySports is the YouTube category id for Sports.
const CategorySports = "17"

const (
	defaultInitURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	watchURLFormat = "https://www.youtube.com/watch?v=%s"
)

// YouTubeUploader publishes videos through the resumable upload protocol.
type YouTubeUploader struct {
	credentialsPath string
	tokenPath       string
	log             *logging.Logger

	chunkSize  int64
	maxRetries int
	initURL    string
	sleep      func(time.Duration)
	client     *http.Client
}

// NewYouTubeUploader creates an uploader reading OAuth material from the
// given paths. The token file is produced by the generate_token command.
func NewYouTubeUploader(credentialsPath, tokenPath string, log *logging.Logger) *YouTubeUploader {
	if credentialsPath == "" {
		credentialsPath = "credentials/client_secrets.json"
	}
	if tokenPath == "" {
		tokenPath = "credentials/token.json"
	}
	return &YouTubeUploader{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		log:             log,
		chunkSize:       defaultChunkSize,
		maxRetries:      defaultMaxRetries,
		initURL:         defaultInitURL,
		sleep:           time.Sleep,
	}
}

// SetChunkSize overrides the default 1 MiB chunk size.
func (y *YouTubeUploader) SetChunkSize(n int64) {
	if n > 0 {
		y.chunkSize = n
	}
}

// SetMaxRetries overrides the default retry budget of 10.
func (y *YouTubeUploader) SetMaxRetries(n int) {
	if n > 0 {
		y.maxRetries = n
	}
}

// Platform returns the platform name.
func (y *YouTubeUploader) Platform() string {
	return "youtube"
}

// Upload transfers the video file chunk by chunk and returns the assigned
// video id and watch URL. The local file is checked before any network call.
func (y *YouTubeUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	f, err := os.Open(req.VideoPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.VideoPath)
		}
		return nil, fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat video file: %w", err)
	}

	client, err := y.httpClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = "unlisted"
	}
	categoryID := req.CategoryID
	if categoryID == "" {
		categoryID = CategorySports
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: req.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	y.log.Infof("upload: %s (%.1f MB)", filepath.Base(req.VideoPath), float64(info.Size())/(1024*1024))

	sess := &resumableSession{
		client:     client,
		initURL:    y.initURL,
		metadata:   video,
		body:       f,
		size:       info.Size(),
		chunkSize:  y.chunkSize,
		maxRetries: y.maxRetries,
		sleep:      y.sleep,
		progress: func(pct int) {
			y.log.Infof("upload: %s %d%%", filepath.Base(req.VideoPath), pct)
		},
		onRetry: func(retry int, delay time.Duration, cause error) {
			y.log.Warnf("upload: retry %d/%d in %.1fs: %v", retry, y.maxRetries, delay.Seconds(), cause)
		},
	}

	resp, err := sess.run(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf(watchURLFormat, resp.Id)
	y.log.Infof("upload complete: %s", url)

	return &UploadResult{
		Platform: "youtube",
		VideoID:  resp.Id,
		URL:      url,
		Title:    req.Title,
	}, nil
}

// httpClient builds an OAuth2-authenticated client. An expired token with a
// refresh token is fine; oauth2 refreshes it transparently.
func (y *YouTubeUploader) httpClient(ctx context.Context) (*http.Client, error) {
	if y.client != nil {
		return y.client, nil
	}

	credBytes, err := os.ReadFile(y.credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(credBytes, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	token, err := y.loadToken()
	if err != nil {
		return nil, fmt.Errorf("load token (run generate_token first): %w", err)
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, errors.New("token expired with no refresh token; run generate_token again")
	}

	y.client = config.Client(ctx, token)
	return y.client, nil
}

func (y *YouTubeUploader) loadToken() (*oauth2.Token, error) {
	f, err := os.Open(y.tokenPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}
