package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"match-highlights/internal"
	"match-highlights/internal/ai"
	"match-highlights/internal/clips"
	"match-highlights/internal/logging"
	"match-highlights/internal/model"
	"match-highlights/internal/quota"
	"match-highlights/internal/state"
	"match-highlights/internal/uploaders"
)

// RunOptions select the dates and behavior for one batch invocation.
type RunOptions struct {
	Dates         []string
	Upload        bool // upload after rendering
	UploadOnly    bool // skip rendering, upload existing artifacts
	DryRun        bool // report what would happen, mutate nothing
	Force         bool // re-render and re-upload even when already recorded
	Privacy       string
	SaveFullVideo bool
}

// Runner drives the date loop. Rendering happens in a subprocess so a
// crashed ffmpeg cannot take the batch down; uploads happen in-process so
// quota state stays coherent.
type Runner struct {
	cfg      internal.Config
	log      *logging.Logger
	store    *state.Store
	guard    *quota.Guard
	uploader uploaders.Uploader

	// Optional collaborators, nil-safe.
	Describer *ai.Describer
	Archiver  *Archiver

	now        func() time.Time
	runProcess func(ctx context.Context, date string, saveFull, skipHighlights bool) error
}

func NewRunner(cfg internal.Config, log *logging.Logger, store *state.Store, guard *quota.Guard, uploader uploaders.Uploader) *Runner {
	r := &Runner{
		cfg:      cfg,
		log:      log,
		store:    store,
		guard:    guard,
		uploader: uploader,
		now:      time.Now,
	}
	r.runProcess = r.execProcess
	return r
}

// Run processes each date in order and returns the aggregated summary. The
// loop halts early when the run budget or the API quota is exhausted;
// remaining dates are reported as pending. Any other per-date failure is
// isolated and the loop moves on.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*model.RunSummary, error) {
	st, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	r.log.Infof("run %s: %d dates", summary.RunID, len(opts.Dates))

	var haltErr error
	for _, date := range opts.Dates {
		if haltErr != nil {
			summary.Results = append(summary.Results, model.DateResult{Date: date, State: model.StatePending})
			continue
		}
		res, halt := r.runDate(ctx, st, date, opts)
		summary.Results = append(summary.Results, res)
		if halt != nil {
			haltErr = halt
			r.log.Warnf("run %s: halting, %v", summary.RunID, halt)
		}
	}
	summary.HaltedOnQuota = errors.Is(haltErr, uploaders.ErrQuotaExceeded)

	summary.FinishedAt = r.now()
	r.tally(summary)

	if r.Archiver != nil && !opts.DryRun && summary.Uploaded > 0 {
		if err := r.Archiver.ArchiveState(ctx); err != nil {
			r.log.Errorf("run %s: state archival failed: %v", summary.RunID, err)
		}
		if err := r.Archiver.ArchiveSummary(ctx, summary); err != nil {
			r.log.Errorf("run %s: summary archival failed: %v", summary.RunID, err)
		}
	}
	return summary, nil
}

func (r *Runner) tally(s *model.RunSummary) {
	arts := func(dr model.DateResult) []model.ArtifactResult {
		return []model.ArtifactResult{dr.FullVideo, dr.Highlights}
	}
	s.Uploaded = lo.SumBy(s.Results, func(dr model.DateResult) int {
		return lo.CountBy(arts(dr), func(a model.ArtifactResult) bool { return a.Action == model.ActionUploaded })
	})
	s.CreatedFullVideos = lo.CountBy(s.Results, func(dr model.DateResult) bool { return dr.FullVideo.Created })
	s.CreatedHighlights = lo.CountBy(s.Results, func(dr model.DateResult) bool { return dr.Highlights.Created })
	s.Errors = lo.CountBy(s.Results, func(dr model.DateResult) bool { return dr.State == model.StateError })
}

// runDate walks one date through the state machine. A non-nil second return
// asks the caller to halt the whole loop (quota, not a per-date failure).
func (r *Runner) runDate(ctx context.Context, st *model.UploadState, date string, opts RunOptions) (model.DateResult, error) {
	res := model.DateResult{Date: date, State: model.StatePending}

	status := CheckFolder(r.cfg, date)
	if !status.Exists {
		res.State = model.StateError
		res.Err = "date folder not found"
		return res, nil
	}

	if !opts.UploadOnly {
		needFull := opts.SaveFullVideo && (!status.HasFullVideo || opts.Force)
		needHighlights := !status.HasHighlights || opts.Force
		if needFull || needHighlights {
			res.State = model.StateProcessing
			if opts.DryRun {
				r.log.Infof("dry-run: would render %s (full=%v highlights=%v)", date, needFull, needHighlights)
			} else {
				if opts.Force && status.HasHighlights {
					if backup, err := BackupHighlights(r.cfg, date); err != nil {
						r.log.Warnf("%s: highlights backup failed: %v", date, err)
					} else {
						r.log.Infof("%s: previous highlights kept at %s", date, backup)
					}
				}
				if err := r.runProcess(ctx, date, opts.SaveFullVideo, !needHighlights); err != nil {
					res.State = model.StateError
					res.Err = fmt.Sprintf("render: %v", err)
					return res, nil
				}
				if needFull {
					res.FullVideo = model.ArtifactResult{Action: model.ActionCreated, Created: true, Path: r.cfg.FullVideoPath(date)}
				}
				if needHighlights {
					res.Highlights = model.ArtifactResult{Action: model.ActionCreated, Created: true, Path: r.cfg.OutputPath(date)}
				}
			}
		}
	}

	if !opts.Upload && !opts.UploadOnly {
		if res.State == model.StatePending {
			res.State = model.StateSkipped
		} else {
			res.State = model.StateDone
		}
		return res, nil
	}

	res.State = model.StateUploading
	for _, kind := range model.Kinds {
		art := &res.Highlights
		path := r.cfg.OutputPath(date)
		if kind == model.KindFullVideo {
			art = &res.FullVideo
			path = r.cfg.FullVideoPath(date)
		}
		if art.Path == "" {
			art.Path = path
		}

		if state.IsUploaded(st, date, kind) && !opts.Force {
			rec := st.Entries[date][kind]
			art.Action = model.ActionSkipped
			art.YouTubeID = rec.YouTubeID
			r.log.Infof("%s: %s already uploaded as %s, skipping", date, kind, rec.YouTubeID)
			continue
		}

		if opts.DryRun {
			r.log.Infof("dry-run: would upload %s %s", date, kind)
			art.Action = model.ActionSkipped
			continue
		}

		if err := CheckAccessible(path); err != nil {
			if kind == model.KindFullVideo {
				// Not keeping the full video around is a valid setup.
				r.log.Infof("%s: no full video on disk, skipping", date)
				art.Action = model.ActionSkipped
				continue
			}
			art.Action = model.ActionError
			appendErr(&res, fmt.Sprintf("highlights not uploadable: %v", err))
			continue
		}

		if err := r.guard.Check(st); err != nil {
			res.Err = err.Error()
			return res, err
		}

		result, err := r.uploader.Upload(ctx, r.buildRequest(ctx, date, kind, path, opts.Privacy))
		if err != nil {
			art.Action = model.ActionError
			appendErr(&res, fmt.Sprintf("%s: %v", kind, err))
			if errors.Is(err, uploaders.ErrQuotaExceeded) {
				res.State = model.StateError
				return res, err
			}
			// One artifact failing must not block the other one.
			r.log.Errorf("%s: %s upload failed: %v", date, kind, err)
			continue
		}

		if err := r.store.Record(st, date, kind, result.VideoID); err != nil {
			r.log.Errorf("%s: recording %s upload failed: %v", date, kind, err)
		}
		if err := r.guard.RecordSuccess(st); err != nil {
			r.log.Errorf("%s: bumping daily counter failed: %v", date, err)
		}
		art.Action = model.ActionUploaded
		art.YouTubeID = result.VideoID
		art.URL = result.URL
		r.log.Infof("%s: %s uploaded: %s", date, kind, result.URL)
	}

	if r.Archiver != nil && !opts.DryRun {
		if err := r.Archiver.ArchiveDate(ctx, date); err != nil {
			r.log.Errorf("%s: archival failed: %v", date, err)
		}
	}

	if res.Err != "" {
		res.State = model.StateError
	} else {
		res.State = model.StateDone
	}
	return res, nil
}

func appendErr(res *model.DateResult, msg string) {
	if res.Err == "" {
		res.Err = msg
		return
	}
	res.Err += "; " + msg
}

func (r *Runner) buildRequest(ctx context.Context, date string, kind model.VideoKind, path, privacy string) *uploaders.UploadRequest {
	title := fmt.Sprintf("%s - Highlights", date)
	tags := []string{"indoor football", "highlights", "goals", date}
	if kind == model.KindFullVideo {
		title = fmt.Sprintf("%s - Full Match", date)
		tags = []string{"indoor football", "full match", date}
	}

	goals := 0
	if times, err := clips.ReadCumulativeTimes(r.cfg.SplitsCSVPath(date)); err == nil {
		goals = len(times)
	}

	return &uploaders.UploadRequest{
		VideoPath:   path,
		Title:       title,
		Description: r.Describer.Describe(ctx, date, kind, goals),
		Tags:        tags,
		CategoryID:  uploaders.CategorySports,
		Privacy:     privacy,
	}
}

// execProcess renders one date in a child process, so codec crashes and
// library panics cannot kill the batch loop.
func (r *Runner) execProcess(ctx context.Context, date string, saveFull, skipHighlights bool) error {
	args := []string{"-date", date, "-directory", r.cfg.BaseDirectory}
	if saveFull {
		args = append(args, "-save-full-video")
	} else {
		args = append(args, "-no-save-full-video")
	}
	if skipHighlights {
		args = append(args, "-skip-highlights")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.ProcessCommand, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = err.Error()
		}
		return fmt.Errorf("%s: %s", r.cfg.ProcessCommand, errMsg)
	}
	return nil
}
