package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"match-highlights/internal"
	"match-highlights/internal/logging"
	"match-highlights/internal/model"
	"match-highlights/internal/s3"
)

// Archiver mirrors finished artifacts and the upload-state file to an
// S3-compatible bucket so the footage drive is not the only copy.
type Archiver struct {
	client s3.Client
	cfg    internal.Config
	log    *logging.Logger
}

func NewArchiver(client s3.Client, cfg internal.Config, log *logging.Logger) *Archiver {
	return &Archiver{client: client, cfg: cfg, log: log}
}

// ArchiveDate uploads whichever of the date's artifacts exist on disk under
// <prefix><date>/. Objects already in the bucket at the same size are not
// re-uploaded; these files run to gigabytes.
func (a *Archiver) ArchiveDate(ctx context.Context, date string) error {
	prefix := a.cfg.ArchivePrefix + date + "/"
	existing, err := a.client.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list archive: %w", err)
	}
	sizes := lo.SliceToMap(existing, func(o s3.ObjectInfo) (string, int64) { return o.Key, o.Size })

	for _, path := range []string{a.cfg.FullVideoPath(date), a.cfg.OutputPath(date), a.cfg.SplitsCSVPath(date)} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		key := prefix + filepath.Base(path)
		if sz, ok := sizes[key]; ok && sz == info.Size() {
			a.log.Infof("archive: %s already in the bucket, skipping", key)
			continue
		}
		if err := a.client.PutFile(ctx, key, path); err != nil {
			return fmt.Errorf("archive %s: %w", path, err)
		}
		a.log.Infof("archive: %s -> %s", filepath.Base(path), key)
	}
	return nil
}

// ArchiveState mirrors the upload-state file next to the artifacts.
func (a *Archiver) ArchiveState(ctx context.Context) error {
	if _, err := os.Stat(a.cfg.StateFile); err != nil {
		return nil
	}
	key := a.cfg.ArchivePrefix + filepath.Base(a.cfg.StateFile)
	return a.client.PutFile(ctx, key, a.cfg.StateFile)
}

// ArchiveSummary keeps one JSON document per run under <prefix>runs/ for a
// browsable history of what each sweep did.
func (a *Archiver) ArchiveSummary(ctx context.Context, summary *model.RunSummary) error {
	key := a.cfg.ArchivePrefix + "runs/" + summary.RunID + ".json"
	return a.client.WriteJSON(ctx, key, summary)
}
