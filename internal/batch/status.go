// Package batch orchestrates the per-date pipeline: inspect the folder,
// render missing artifacts, upload what the quota allows, record state.
package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"match-highlights/internal"
	"match-highlights/internal/model"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CheckFolder inspects what a date folder currently holds on disk.
func CheckFolder(cfg internal.Config, date string) model.FolderStatus {
	var status model.FolderStatus

	entries, err := os.ReadDir(cfg.DateFolder(date))
	if err != nil {
		return status
	}
	status.Exists = true

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case name == "splits.csv":
			status.HasSplitsCSV = true
		case name == cfg.FullVideoFilename:
			status.HasFullVideo = true
		case name == cfg.OutputFilename:
			status.HasHighlights = true
		case strings.EqualFold(filepath.Ext(name), ".mp4"):
			status.MP4Count++
		}
	}
	return status
}

// CheckAccessible verifies an artifact is present and non-empty. Sync
// clients leave 0-byte placeholders for online-only files; uploading one
// would publish an empty video.
func CheckAccessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty (0 bytes); make the file available offline and re-run", path)
	}
	return nil
}

// DiscoverDates lists date-named folders under the base directory, sorted
// ascending, minus the excluded ones.
func DiscoverDates(cfg internal.Config, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(cfg.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("list base directory: %w", err)
	}

	skip := lo.SliceToMap(exclude, func(d string) (string, struct{}) { return d, struct{}{} })
	dates := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name := e.Name()
		if !e.IsDir() || !datePattern.MatchString(name) {
			return "", false
		}
		_, excluded := skip[name]
		return name, !excluded
	})
	sort.Strings(dates)
	return dates, nil
}

// BackupHighlights copies the highlights reel aside before a forced
// re-render, so a bad render can be compared against the original. An
// existing backup is never overwritten.
func BackupHighlights(cfg internal.Config, date string) (string, error) {
	src := cfg.OutputPath(date)
	ext := filepath.Ext(src)
	dst := strings.TrimSuffix(src, ext) + "_original" + ext

	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}
