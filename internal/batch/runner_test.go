package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"match-highlights/internal"
	"match-highlights/internal/logging"
	"match-highlights/internal/model"
	"match-highlights/internal/quota"
	"match-highlights/internal/state"
	"match-highlights/internal/uploaders"
)

type fakeUploader struct {
	reqs []*uploaders.UploadRequest
	errs map[string]error // keyed by request title
}

func (f *fakeUploader) Upload(_ context.Context, req *uploaders.UploadRequest) (*uploaders.UploadResult, error) {
	f.reqs = append(f.reqs, req)
	if err := f.errs[req.Title]; err != nil {
		return nil, err
	}
	id := fmt.Sprintf("vid-%03d", len(f.reqs))
	return &uploaders.UploadResult{
		Platform: "youtube",
		VideoID:  id,
		URL:      "https://www.youtube.com/watch?v=" + id,
		Title:    req.Title,
	}, nil
}

func (f *fakeUploader) Platform() string { return "youtube" }

type env struct {
	runner   *Runner
	fake     *fakeUploader
	cfg      internal.Config
	store    *state.Store
	rendered []string
}

func newEnv(t *testing.T, maxPerRun int) *env {
	t.Helper()
	dir := t.TempDir()

	cfg := internal.DefaultConfig()
	cfg.BaseDirectory = filepath.Join(dir, "footage")
	cfg.StateFile = filepath.Join(dir, "upload_state.json")
	if err := os.MkdirAll(cfg.BaseDirectory, 0o755); err != nil {
		t.Fatal(err)
	}

	log, err := logging.New(filepath.Join(dir, "errors.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	store := state.NewStore(cfg.StateFile)
	fake := &fakeUploader{errs: map[string]error{}}
	e := &env{
		fake:  fake,
		cfg:   cfg,
		store: store,
	}
	e.runner = NewRunner(cfg, log, store, quota.NewGuard(store, log, maxPerRun, cfg.UploadWarningThreshold), fake)
	e.runner.runProcess = func(_ context.Context, date string, saveFull, skipHighlights bool) error {
		e.rendered = append(e.rendered, date)
		if saveFull {
			if err := os.WriteFile(cfg.FullVideoPath(date), []byte("full"), 0o644); err != nil {
				return err
			}
		}
		if !skipHighlights {
			if err := os.WriteFile(cfg.OutputPath(date), []byte("cut"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
	return e
}

func (e *env) addDate(t *testing.T, date string, files ...string) {
	t.Helper()
	folder := e.cfg.DateFolder(date)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(folder, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_RenderAndUploadBoth(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "GX010001.mp4", "splits.csv")

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:         []string{"2025-01-13"},
		Upload:        true,
		SaveFullVideo: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(e.rendered) != 1 {
		t.Fatalf("rendered %v, want one render", e.rendered)
	}
	if len(e.fake.reqs) != 2 {
		t.Fatalf("got %d uploads, want 2", len(e.fake.reqs))
	}
	// The uncut match always goes up before the highlights.
	if !strings.Contains(e.fake.reqs[0].Title, "Full Match") {
		t.Errorf("first upload title = %q, want the full match", e.fake.reqs[0].Title)
	}
	if !strings.Contains(e.fake.reqs[1].Title, "Highlights") {
		t.Errorf("second upload title = %q, want the highlights", e.fake.reqs[1].Title)
	}
	for i, req := range e.fake.reqs {
		if !slices.Contains(req.Tags, "2025-01-13") {
			t.Errorf("upload %d tags = %v, want the date tagged", i, req.Tags)
		}
	}
	if !slices.Contains(e.fake.reqs[1].Tags, "goals") {
		t.Errorf("highlights tags = %v, want goals tagged", e.fake.reqs[1].Tags)
	}

	if summary.Uploaded != 2 || summary.CreatedFullVideos != 1 || summary.CreatedHighlights != 1 {
		t.Errorf("summary = uploaded %d, full %d, highlights %d; want 2/1/1",
			summary.Uploaded, summary.CreatedFullVideos, summary.CreatedHighlights)
	}
	if summary.Results[0].State != model.StateDone {
		t.Errorf("date state = %s, want done", summary.Results[0].State)
	}

	st, err := e.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsUploaded(st, "2025-01-13", model.KindFullVideo) || !state.IsUploaded(st, "2025-01-13", model.KindHighlights) {
		t.Error("both kinds should be recorded after the run")
	}
	if got := e.store.UploadsToday(st); got != 2 {
		t.Errorf("UploadsToday = %d, want 2", got)
	}
}

func TestRun_SkipsRecordedArtifact(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "full_video.mp4", "final_video.mp4")

	st, _ := e.store.Load()
	if err := e.store.Record(st, "2025-01-13", model.KindFullVideo, "already-up"); err != nil {
		t.Fatal(err)
	}

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:         []string{"2025-01-13"},
		UploadOnly:    true,
		SaveFullVideo: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(e.fake.reqs) != 1 {
		t.Fatalf("got %d uploads, want only the highlights", len(e.fake.reqs))
	}
	if !strings.Contains(e.fake.reqs[0].Title, "Highlights") {
		t.Errorf("uploaded %q, want the highlights", e.fake.reqs[0].Title)
	}
	res := summary.Results[0]
	if res.FullVideo.Action != model.ActionSkipped || res.FullVideo.YouTubeID != "already-up" {
		t.Errorf("full video result = %+v, want skipped with the recorded id", res.FullVideo)
	}
}

func TestRun_RunBudgetHaltsLoop(t *testing.T) {
	e := newEnv(t, 2)
	dates := []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27"}
	for _, d := range dates {
		e.addDate(t, d, "final_video.mp4")
	}

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:      dates,
		UploadOnly: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(e.fake.reqs) != 2 {
		t.Fatalf("got %d uploads, want 2 (the per-run budget)", len(e.fake.reqs))
	}
	if summary.HaltedOnQuota {
		t.Error("run budget exhaustion is not an API quota halt")
	}
	if summary.Results[3].State != model.StatePending {
		t.Errorf("date after the halt = %s, want pending", summary.Results[3].State)
	}
	if summary.Uploaded != 2 {
		t.Errorf("summary.Uploaded = %d, want 2", summary.Uploaded)
	}
}

func TestRun_ArtifactFailureDoesNotBlockOther(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "full_video.mp4", "final_video.mp4")
	e.fake.errs["2025-01-13 - Full Match"] = fmt.Errorf("%w: HTTP 400", uploaders.ErrUploadFailed)

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:         []string{"2025-01-13"},
		UploadOnly:    true,
		SaveFullVideo: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(e.fake.reqs) != 2 {
		t.Fatalf("got %d upload attempts, want 2 (highlights still attempted after full-video failure)", len(e.fake.reqs))
	}
	res := summary.Results[0]
	if res.FullVideo.Action != model.ActionError {
		t.Errorf("full video action = %s, want error", res.FullVideo.Action)
	}
	if res.Highlights.Action != model.ActionUploaded {
		t.Errorf("highlights action = %s, want uploaded", res.Highlights.Action)
	}
	if res.State != model.StateError {
		t.Errorf("date state = %s, want error (one artifact failed)", res.State)
	}

	st, _ := e.store.Load()
	if state.IsUploaded(st, "2025-01-13", model.KindFullVideo) {
		t.Error("failed full-video upload must not be recorded")
	}
	if !state.IsUploaded(st, "2025-01-13", model.KindHighlights) {
		t.Error("highlights upload should be recorded despite the full-video failure")
	}
	if summary.Uploaded != 1 || summary.Errors != 1 {
		t.Errorf("summary = uploaded %d, errors %d; want 1/1", summary.Uploaded, summary.Errors)
	}
}

func TestRun_QuotaExceededHaltsRun(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "final_video.mp4")
	e.addDate(t, "2025-01-20", "final_video.mp4")
	e.fake.errs["2025-01-13 - Highlights"] = fmt.Errorf("%w: daily budget spent", uploaders.ErrQuotaExceeded)

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:      []string{"2025-01-13", "2025-01-20"},
		UploadOnly: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !summary.HaltedOnQuota {
		t.Error("summary.HaltedOnQuota should be set")
	}
	if len(e.fake.reqs) != 1 {
		t.Errorf("got %d uploads, want 1 (nothing after the quota error)", len(e.fake.reqs))
	}
	if summary.Results[1].State != model.StatePending {
		t.Errorf("second date = %s, want pending", summary.Results[1].State)
	}

	st, _ := e.store.Load()
	if state.IsUploaded(st, "2025-01-13", model.KindHighlights) {
		t.Error("failed upload must not be recorded")
	}
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "GX010001.mp4")

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:         []string{"2025-01-13"},
		Upload:        true,
		SaveFullVideo: true,
		DryRun:        true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(e.rendered) != 0 {
		t.Errorf("dry run rendered %v", e.rendered)
	}
	if len(e.fake.reqs) != 0 {
		t.Errorf("dry run performed %d uploads", len(e.fake.reqs))
	}
	if summary.Uploaded != 0 {
		t.Errorf("summary.Uploaded = %d, want 0", summary.Uploaded)
	}
	if _, err := os.Stat(e.cfg.StateFile); !os.IsNotExist(err) {
		t.Error("dry run must not create the state file")
	}
}

func TestRun_DateFailureIsIsolated(t *testing.T) {
	e := newEnv(t, 4)
	e.addDate(t, "2025-01-13", "GX010001.mp4")
	e.addDate(t, "2025-01-20", "GX010002.mp4")

	inner := e.runner.runProcess
	e.runner.runProcess = func(ctx context.Context, date string, saveFull, skipHighlights bool) error {
		if date == "2025-01-13" {
			return fmt.Errorf("ffmpeg exploded")
		}
		return inner(ctx, date, saveFull, skipHighlights)
	}

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:  []string{"2025-01-13", "2025-01-20"},
		Upload: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Results[0].State != model.StateError {
		t.Errorf("failed date = %s, want error", summary.Results[0].State)
	}
	if summary.Results[1].State != model.StateDone {
		t.Errorf("second date = %s, want done (isolated from the first)", summary.Results[1].State)
	}
	if summary.Errors != 1 {
		t.Errorf("summary.Errors = %d, want 1", summary.Errors)
	}
}

func TestRun_MissingFolderIsError(t *testing.T) {
	e := newEnv(t, 4)

	summary, err := e.runner.Run(t.Context(), RunOptions{
		Dates:  []string{"2025-09-09"},
		Upload: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Results[0].State != model.StateError {
		t.Errorf("state = %s, want error", summary.Results[0].State)
	}
}
