package uploaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/youtube/v3"
)

const quotaBody = `{"error":{"errors":[{"domain":"youtube.quota","reason":"quotaExceeded","message":"exceeded"}],"code":403}}`

// chunkScript drives a fake resumable session endpoint: each element is the
// HTTP status to answer the next chunk PUT with. A zero status means "behave
// normally" (308 mid-upload, 200 on the final chunk).
type fakeSession struct {
	t      *testing.T
	size   int64
	acked  int64
	script []int
	puts   int
	ranges []string
}

func (f *fakeSession) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.puts++
		f.ranges = append(f.ranges, r.Header.Get("Content-Range"))

		status := 0
		if len(f.script) > 0 {
			status, f.script = f.script[0], f.script[1:]
		}
		if status != 0 {
			if status == http.StatusForbidden {
				w.WriteHeader(status)
				fmt.Fprint(w, quotaBody)
				return
			}
			w.WriteHeader(status)
			return
		}

		var start, end, total int64
		if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); err != nil {
			f.t.Errorf("bad Content-Range %q: %v", r.Header.Get("Content-Range"), err)
		}
		f.acked = end
		if end+1 >= f.size {
			fmt.Fprint(w, `{"id":"vid123"}`)
			return
		}
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", f.acked))
		w.WriteHeader(http.StatusPermanentRedirect)
	}
}

func newTestSession(t *testing.T, fake *fakeSession, data []byte, chunkSize int64, maxRetries int) (*resumableSession, *int) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	sleeps := 0
	sess := &resumableSession{
		client:     srv.Client(),
		sessionURL: srv.URL,
		body:       bytes.NewReader(data),
		size:       int64(len(data)),
		chunkSize:  chunkSize,
		maxRetries: maxRetries,
		sleep:      func(time.Duration) { sleeps++ },
	}
	return sess, &sleeps
}

func TestRun_ChunkedHappyPath(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)
	fake := &fakeSession{t: t, size: 100}
	sess, sleeps := newTestSession(t, fake, data, 40, 10)

	video, err := sess.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if video.Id != "vid123" {
		t.Errorf("video id = %q, want vid123", video.Id)
	}
	if fake.puts != 3 {
		t.Errorf("chunk PUTs = %d, want 3 (40+40+20 bytes)", fake.puts)
	}
	if *sleeps != 0 {
		t.Errorf("sleeps = %d, want 0", *sleeps)
	}
	want := []string{"bytes 0-39/100", "bytes 40-79/100", "bytes 80-99/100"}
	for i, r := range fake.ranges {
		if r != want[i] {
			t.Errorf("chunk %d Content-Range = %q, want %q", i, r, want[i])
		}
	}
}

func TestRun_TransientErrorsThenSuccess(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10, script: []int{503, 500, 502}}
	sess, sleeps := newTestSession(t, fake, data, 1024, 10)

	video, err := sess.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if video.Id != "vid123" {
		t.Errorf("video id = %q, want vid123", video.Id)
	}
	// Exactly one sleep/retry cycle per transient failure.
	if *sleeps != 3 {
		t.Errorf("sleeps = %d, want 3", *sleeps)
	}
	if fake.puts != 4 {
		t.Errorf("chunk PUTs = %d, want 4 (3 failures + success)", fake.puts)
	}
	// The same chunk is reissued every time; no bytes were acknowledged.
	for i, r := range fake.ranges {
		if r != "bytes 0-9/10" {
			t.Errorf("attempt %d Content-Range = %q, want bytes 0-9/10", i, r)
		}
	}
}

func TestRun_QuotaExceededNoRetry(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10, script: []int{403}}
	sess, sleeps := newTestSession(t, fake, data, 1024, 10)

	_, err := sess.run(context.Background())
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("run() error = %v, want ErrQuotaExceeded", err)
	}
	if *sleeps != 0 {
		t.Errorf("sleeps = %d, want 0 (quota errors are never retried)", *sleeps)
	}
	if fake.puts != 1 {
		t.Errorf("chunk PUTs = %d, want 1", fake.puts)
	}
}

func TestRun_NonRetriableFailsImmediately(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10, script: []int{400}}
	sess, sleeps := newTestSession(t, fake, data, 1024, 10)

	_, err := sess.run(context.Background())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("run() error = %v, want ErrUploadFailed", err)
	}
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("plain 400 misclassified as quota exhaustion")
	}
	if *sleeps != 0 || fake.puts != 1 {
		t.Errorf("sleeps = %d puts = %d, want 0 and 1", *sleeps, fake.puts)
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10, script: []int{500, 500, 500, 500, 500}}
	sess, sleeps := newTestSession(t, fake, data, 1024, 2)

	_, err := sess.run(context.Background())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("run() error = %v, want ErrUploadFailed", err)
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("error %q should mention the retry budget", err)
	}
	// maxRetries=2: attempt, retry, retry, then give up on the 3rd failure.
	if fake.puts != 3 {
		t.Errorf("chunk PUTs = %d, want 3", fake.puts)
	}
	if *sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", *sleeps)
	}
}

// newInitSession wires a session through a full init endpoint: initScript
// lists the HTTP statuses the metadata POST answers with before handing out
// the session URL.
func newInitSession(t *testing.T, fake *fakeSession, data []byte, initScript []int, maxRetries int) (*resumableSession, *int, *int) {
	t.Helper()
	inits := 0
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/init", func(w http.ResponseWriter, r *http.Request) {
		inits++
		if got := r.Header.Get("X-Upload-Content-Length"); got != fmt.Sprint(len(data)) {
			t.Errorf("X-Upload-Content-Length = %q, want %d", got, len(data))
		}
		if len(initScript) > 0 {
			var status int
			status, initScript = initScript[0], initScript[1:]
			if status == http.StatusForbidden {
				w.WriteHeader(status)
				fmt.Fprint(w, quotaBody)
				return
			}
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Location", srv.URL+"/session")
	})
	mux.Handle("/session", fake.handler())

	sleeps := 0
	sess := &resumableSession{
		client:     srv.Client(),
		initURL:    srv.URL + "/init",
		metadata:   &youtube.Video{},
		body:       bytes.NewReader(data),
		size:       int64(len(data)),
		chunkSize:  1024,
		maxRetries: maxRetries,
		sleep:      func(time.Duration) { sleeps++ },
	}
	return sess, &inits, &sleeps
}

func TestRun_InitTransientThenSuccess(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10}
	sess, inits, sleeps := newInitSession(t, fake, data, []int{503, 500}, 10)

	video, err := sess.run(context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if video.Id != "vid123" {
		t.Errorf("video id = %q, want vid123", video.Id)
	}
	if *inits != 3 {
		t.Errorf("init POSTs = %d, want 3 (2 failures + success)", *inits)
	}
	if *sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", *sleeps)
	}
}

func TestRun_InitQuotaExceededNoRetry(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10}
	sess, inits, sleeps := newInitSession(t, fake, data, []int{403}, 10)

	_, err := sess.run(context.Background())
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("run() error = %v, want ErrQuotaExceeded", err)
	}
	if *inits != 1 || *sleeps != 0 {
		t.Errorf("inits = %d sleeps = %d, want 1 and 0", *inits, *sleeps)
	}
	if fake.puts != 0 {
		t.Errorf("chunk PUTs = %d, want 0 (no session was opened)", fake.puts)
	}
}

func TestRun_InitRetryBudgetExhausted(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)
	fake := &fakeSession{t: t, size: 10}
	sess, inits, sleeps := newInitSession(t, fake, data, []int{503, 503, 503, 503, 503}, 2)

	_, err := sess.run(context.Background())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("run() error = %v, want ErrUploadFailed", err)
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("error %q should mention the retry budget", err)
	}
	if *inits != 3 || *sleeps != 2 {
		t.Errorf("inits = %d sleeps = %d, want 3 and 2", *inits, *sleeps)
	}
}

func TestParseRangeEnd(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"bytes=0-524287", 524287, true},
		{"bytes=0-0", 0, true},
		{"", 0, false},
		{"bytes=junk", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRangeEnd(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseRangeEnd(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"quota 403", 403, quotaBody, ErrQuotaExceeded},
		{"plain 403", 403, `{"error":{"errors":[{"reason":"forbidden"}]}}`, ErrUploadFailed},
		{"bad request", 400, "", ErrUploadFailed},
		{"not found", 404, "", ErrUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyResponse(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("classifyResponse(%d) = %v, want %v", tt.status, err, tt.want)
			}
		})
	}

	for _, status := range []int{500, 502, 503, 504} {
		if err := classifyResponse(status, nil); !isTransient(err) {
			t.Errorf("classifyResponse(%d) = %v, want transient", status, err)
		}
	}
}
