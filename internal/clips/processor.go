package clips

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mowshon/moviego"
	"github.com/samber/lo"

	"match-highlights/internal"
	"match-highlights/internal/logging"
)

// Processor builds the full-video and highlights artifacts for one date
// folder. Rendering is sequential; a folder holds a single match.
type Processor struct {
	cfg internal.Config
	log *logging.Logger
}

// Options control which artifacts ProcessDate produces.
type Options struct {
	// Videos lists explicit source files inside the date folder. When empty
	// every .mp4 in the folder (minus our own outputs) is used, sorted by name.
	Videos []string

	// SaveFullVideo keeps the concatenated full video next to the sources.
	// When false it is written to a temp file and removed after the
	// highlights are cut.
	SaveFullVideo bool

	// SkipHighlights stops after the full video, before the CSV is read.
	SkipHighlights bool
}

func NewProcessor(cfg internal.Config, log *logging.Logger) *Processor {
	return &Processor{cfg: cfg, log: log}
}

// ProcessDate concatenates the raw recordings and cuts the highlights reel.
func (p *Processor) ProcessDate(ctx context.Context, date string, opts Options) error {
	folder := p.cfg.DateFolder(date)
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("date folder: %w", err)
	}

	var sources []string
	if len(opts.Videos) > 0 {
		for _, v := range opts.Videos {
			if !filepath.IsAbs(v) {
				v = filepath.Join(folder, v)
			}
			if _, err := os.Stat(v); err != nil {
				return fmt.Errorf("source video: %w", err)
			}
			sources = append(sources, v)
		}
	} else {
		var err error
		sources, err = p.discoverSources(folder)
		if err != nil {
			return err
		}
	}
	if len(sources) == 0 {
		return fmt.Errorf("no source MP4 files in %s", folder)
	}
	p.log.Infof("clips: %s - %d source recordings", date, len(sources))

	fullPath := p.cfg.FullVideoPath(date)
	if !opts.SaveFullVideo {
		fullPath = filepath.Join(os.TempDir(), fmt.Sprintf("full-%s.mp4", date))
		defer os.Remove(fullPath)
	}
	if err := p.concatFiles(ctx, sources, fullPath, false); err != nil {
		return fmt.Errorf("build full video: %w", err)
	}
	p.log.Infof("clips: full video written to %s", fullPath)

	if opts.SkipHighlights {
		return nil
	}
	return p.renderHighlights(ctx, date, fullPath)
}

// renderHighlights cuts one subclip per goal timestamp out of the full video
// and joins them into the highlights reel.
func (p *Processor) renderHighlights(ctx context.Context, date, fullPath string) error {
	times, err := ReadCumulativeTimes(p.cfg.SplitsCSVPath(date))
	if err != nil {
		return fmt.Errorf("read splits: %w", err)
	}

	duration, err := p.probeDuration(ctx, fullPath)
	if err != nil {
		return fmt.Errorf("probe duration: %w", err)
	}

	windows := Windows(times, float64(p.cfg.BeforeGoalSeconds), float64(p.cfg.AfterGoalSeconds), duration)
	if len(windows) == 0 {
		p.log.Warnf("clips: %s - no usable timestamps, skipping highlights", date)
		return nil
	}
	p.log.Infof("clips: %s - cutting %d highlight windows from %.1fs of footage", date, len(windows), duration)

	full, err := safeLoadVideo(fullPath)
	if err != nil {
		return fmt.Errorf("load full video: %w", err)
	}

	partsDir, err := os.MkdirTemp("", "highlights-"+date+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(partsDir)

	var parts []string
	for i, w := range windows {
		part := filepath.Join(partsDir, fmt.Sprintf("part-%03d.mp4", i))
		if err := full.SubClip(w.Start, w.End).Output(part).Run(); err != nil {
			return fmt.Errorf("cut window %.1f-%.1f: %w", w.Start, w.End, err)
		}
		parts = append(parts, part)
	}

	out := p.cfg.OutputPath(date)
	if err := p.concatFiles(ctx, parts, out, true); err != nil {
		return fmt.Errorf("join highlights: %w", err)
	}
	p.log.Infof("clips: highlights written to %s", out)
	return nil
}

// discoverSources lists the raw recordings in a date folder, excluding the
// artifacts this processor writes, sorted by filename so playback order
// matches recording order.
func (p *Processor) discoverSources(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("list date folder: %w", err)
	}

	skip := map[string]bool{
		p.cfg.OutputFilename:    true,
		p.cfg.FullVideoFilename: true,
	}
	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name := e.Name()
		if e.IsDir() || skip[name] || !strings.EqualFold(filepath.Ext(name), ".mp4") {
			return "", false
		}
		return filepath.Join(folder, name), true
	})
	sort.Strings(names)
	return names, nil
}

// concatFiles joins MP4 files with the ffmpeg concat demuxer. Stream copy is
// used for same-encoded sources; the highlight parts are re-encoded so the
// joined reel has uniform timestamps.
func (p *Processor) concatFiles(ctx context.Context, files []string, out string, reencode bool) error {
	list, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())
	for _, f := range files {
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(f, "'", `'\''`))
	}
	if err := list.Close(); err != nil {
		return err
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", list.Name(),
	}
	if reencode {
		args = append(args, "-c:v", p.cfg.VideoCodec, "-c:a", p.cfg.AudioCodec)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, "-y", out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = err.Error()
		}
		return fmt.Errorf("ffmpeg error: %s", errMsg)
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("ffmpeg did not create output file: %s (%w)", out, err)
	}
	return nil
}

// probeDuration reads the container duration in seconds with ffprobe.
func (p *Processor) probeDuration(ctx context.Context, path string) (float64, error) {
	ctxProbe, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	probeCmd := exec.CommandContext(ctxProbe, "ffprobe", "-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	durationBytes, err := probeCmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(string(durationBytes), "%f", &duration); err != nil || duration <= 0 {
		return 0, fmt.Errorf("ffprobe returned unusable duration %q", strings.TrimSpace(string(durationBytes)))
	}
	return duration, nil
}

// safeLoadVideo wraps moviego.Load to catch panics from the library.
func safeLoadVideo(path string) (vid moviego.Video, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("moviego.Load panicked: %v", r)
		}
	}()
	vid, err = moviego.Load(path)
	return
}
