package uploaders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"google.golang.org/api/youtube/v3"
)

const (
	defaultChunkSize  = 1 << 20 // 1 MiB
	defaultMaxRetries = 10
)

// retriableStatus lists server errors worth reissuing the same chunk for.
var retriableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// resumableSession drives one upload: the metadata POST that opens the
// session, then chunk PUTs against the session URL. offset tracks the first
// byte the server has not acknowledged yet; retries reissue from offset, so
// acknowledged bytes are never resent.
type resumableSession struct {
	client     *http.Client
	initURL    string
	metadata   *youtube.Video
	sessionURL string
	body       io.ReaderAt
	size       int64
	offset     int64
	chunkSize  int64
	maxRetries int

	sleep    func(time.Duration)
	progress func(pct int)
	onRetry  func(retry int, delay time.Duration, cause error)
}

// begin posts the video metadata to the upload endpoint and stores the
// session URL the server assigns. Server errors come back transient so the
// run loop retries the init under the same budget as chunk failures.
func (s *resumableSession) begin(ctx context.Context) error {
	meta, err := json.Marshal(s.metadata)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.initURL, bytes.NewReader(meta))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/*")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(s.size, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return &transientError{msg: fmt.Sprintf("start session: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return classifyResponse(resp.StatusCode, body)
	}

	s.sessionURL = resp.Header.Get("Location")
	if s.sessionURL == "" {
		return fmt.Errorf("%w: server returned no session URL", ErrUploadFailed)
	}
	return nil
}

// run is the bounded retry loop: each iteration either opens the session,
// advances the upload by one chunk, retries after a randomized exponential
// backoff, or fails terminally. The retry counter is cumulative across the
// whole upload, session init included, and never exceeds maxRetries.
func (s *resumableSession) run(ctx context.Context) (*youtube.Video, error) {
	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}

		var video *youtube.Video
		var err error
		if s.sessionURL == "" {
			err = s.begin(ctx)
		} else {
			video, err = s.sendChunk(ctx)
		}
		if err == nil {
			if video != nil {
				s.reportProgress(100)
				return video, nil
			}
			if s.size > 0 && s.offset > 0 {
				s.reportProgress(int(s.offset * 100 / s.size))
			}
			continue
		}

		if !isTransient(err) {
			return nil, err
		}

		retries++
		if retries > s.maxRetries {
			return nil, fmt.Errorf("%w: max retries exceeded: %v", ErrUploadFailed, err)
		}

		// random_uniform(0,1) * 2^retry seconds; the jitter spreads
		// reconnecting clients apart.
		delay := time.Duration(rand.Float64() * float64(int64(1)<<uint(retries)) * float64(time.Second))
		if s.onRetry != nil {
			s.onRetry(retries, delay, err)
		}
		s.sleep(delay)
	}
}

// sendChunk uploads the next chunk. It returns (nil, nil) when the server
// acknowledged progress but expects more bytes, and the finished video on the
// terminal response.
func (s *resumableSession) sendChunk(ctx context.Context) (*youtube.Video, error) {
	end := s.offset + s.chunkSize
	if end > s.size {
		end = s.size
	}

	chunk := io.NewSectionReader(s.body, s.offset, end-s.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.sessionURL, chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.ContentLength = end - s.offset
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.offset, end-1, s.size))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &transientError{msg: fmt.Sprintf("transport error: %v", err)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var video youtube.Video
		if err := json.Unmarshal(body, &video); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
		}
		s.offset = s.size
		return &video, nil

	case http.StatusPermanentRedirect: // 308 Resume Incomplete
		r := resp.Header.Get("Range")
		acked, ok := parseRangeEnd(r)
		if !ok {
			// No bytes landed; reissue the chunk under the retry budget.
			return nil, &transientError{msg: fmt.Sprintf("server acknowledged nothing (Range %q)", r)}
		}
		s.offset = acked + 1
		return nil, nil

	default:
		return nil, classifyResponse(resp.StatusCode, body)
	}
}

func (s *resumableSession) reportProgress(pct int) {
	if s.progress != nil {
		s.progress(pct)
	}
}

// classifyResponse maps a non-progress HTTP response onto the error taxonomy.
func classifyResponse(status int, body []byte) error {
	switch {
	case status == http.StatusForbidden && isQuotaExceeded(body):
		return fmt.Errorf("%w: quota resets at midnight Pacific Time", ErrQuotaExceeded)
	case retriableStatus[status]:
		return &transientError{msg: fmt.Sprintf("HTTP %d: %s", status, truncateBody(body))}
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUploadFailed, status, truncateBody(body))
	}
}

// isQuotaExceeded inspects the structured API error body for a quota reason.
func isQuotaExceeded(body []byte) bool {
	for _, r := range gjson.GetBytes(body, "error.errors.#.reason").Array() {
		switch r.String() {
		case "quotaExceeded", "dailyLimitExceeded", "uploadLimitExceeded":
			return true
		}
	}
	return strings.Contains(string(body), "quotaExceeded")
}

// parseRangeEnd extracts the last acknowledged byte from a "bytes=0-N" header.
func parseRangeEnd(r string) (int64, bool) {
	r = strings.TrimPrefix(r, "bytes=")
	i := strings.LastIndex(r, "-")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(r[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
