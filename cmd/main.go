// Command match-highlights sweeps the footage directory: renders missing
// artifacts per date, uploads them to YouTube under the quota guard, and
// records what went up so re-runs never duplicate an upload.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"match-highlights/internal"
	"match-highlights/internal/ai"
	"match-highlights/internal/batch"
	"match-highlights/internal/logging"
	"match-highlights/internal/model"
	"match-highlights/internal/notify"
	"match-highlights/internal/quota"
	"match-highlights/internal/s3"
	"match-highlights/internal/scheduler"
	"match-highlights/internal/state"
	"match-highlights/internal/uploaders"
)

func main() {
	envPaths := []string{".env", "../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	dates := flag.String("dates", "", "comma-separated dates to process (YYYY-MM-DD)")
	all := flag.Bool("all", false, "sweep every date folder in the base directory")
	exclude := flag.String("exclude", "", "comma-separated dates to skip with -all")
	upload := flag.Bool("upload", false, "upload to YouTube after rendering")
	uploadOnly := flag.Bool("upload-only", false, "skip rendering, upload existing artifacts")
	dryRun := flag.Bool("dry-run", false, "report what would happen without mutating anything")
	force := flag.Bool("force", false, "re-render and re-upload even when already recorded")
	privacy := flag.String("privacy", "unlisted", "YouTube privacy status: private, unlisted or public")
	maxUploads := flag.Int("max-uploads", 0, "override the per-run upload cap")
	schedule := flag.String("schedule", "", "run as a daemon on this cron spec instead of once")
	flag.Parse()

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}
	if *maxUploads > 0 {
		cfg.MaxUploadsPerRun = *maxUploads
	}

	if !*all && *dates == "" {
		fmt.Fprintln(os.Stderr, "usage: match-highlights -dates 2025-01-13,2025-01-20 [-upload] | -all [-exclude ...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	runner, notifier := buildRunner(cfg, log)

	excludes := splitList(*exclude)
	opts := batch.RunOptions{
		Upload:        *upload,
		UploadOnly:    *uploadOnly,
		DryRun:        *dryRun,
		Force:         *force,
		Privacy:       *privacy,
		SaveFullVideo: cfg.SaveFullVideo,
	}

	sweep := func(ctx context.Context) error {
		runOpts := opts
		if *all {
			discovered, err := batch.DiscoverDates(cfg, excludes)
			if err != nil {
				return err
			}
			runOpts.Dates = discovered
		} else {
			runOpts.Dates = splitList(*dates)
		}
		if len(runOpts.Dates) == 0 {
			log.Infof("nothing to do: no date folders found")
			return nil
		}

		summary, err := runner.Run(ctx, runOpts)
		if err != nil {
			return err
		}
		printSummary(summary)
		notifier.RunFinished(summary)
		return nil
	}

	if *schedule != "" {
		svc, err := scheduler.New(*schedule, log, sweep)
		if err != nil {
			log.Errorf("schedule: %v", err)
			os.Exit(1)
		}
		if err := svc.Run(ctx); err != nil {
			log.Errorf("scheduler: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := sweep(ctx); err != nil {
		log.Errorf("run: %v", err)
		os.Exit(1)
	}
}

// buildRunner wires the store, guard and uploader, plus whatever optional
// collaborators the environment has credentials for.
func buildRunner(cfg internal.Config, log *logging.Logger) (*batch.Runner, *notify.Notifier) {
	store := state.NewStore(cfg.StateFile)
	guard := quota.NewGuard(store, log, cfg.MaxUploadsPerRun, cfg.UploadWarningThreshold)

	yt := uploaders.NewYouTubeUploader(cfg.CredentialsPath, cfg.TokenPath, log)
	yt.SetChunkSize(cfg.UploadChunkSize)
	yt.SetMaxRetries(cfg.MaxUploadRetries)

	runner := batch.NewRunner(cfg, log, store, guard, yt)

	if cfg.GeminiAPIKey != "" {
		runner.Describer = ai.NewDescriber(cfg.GeminiAPIKey, log)
	}
	if cfg.HasS3() {
		client, err := s3.New(cfg)
		if err != nil {
			log.Errorf("s3: %v (archival disabled)", err)
		} else {
			runner.Archiver = batch.NewArchiver(client, cfg, log)
		}
	}

	var notifier *notify.Notifier
	if cfg.HasTelegram() {
		n, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Errorf("telegram: %v (notifications disabled)", err)
		} else {
			notifier = n
		}
	}
	return runner, notifier
}

func printSummary(s *model.RunSummary) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("run %s\n", s.RunID)
	fmt.Printf("  dates:      %d\n", len(s.Results))
	fmt.Printf("  rendered:   %d full, %d highlights\n", s.CreatedFullVideos, s.CreatedHighlights)
	fmt.Printf("  uploaded:   %d\n", s.Uploaded)
	fmt.Printf("  errors:     %d\n", s.Errors)
	if s.HaltedOnQuota {
		fmt.Println("  halted:     YouTube quota exhausted, resets at midnight Pacific Time")
	}
	fmt.Println(strings.Repeat("-", 60))
	for _, r := range s.Results {
		line := fmt.Sprintf("  %s  %-10s", r.Date, r.State)
		if r.Highlights.URL != "" {
			line += "  " + r.Highlights.URL
		}
		if r.Err != "" {
			line += "  " + r.Err
		}
		fmt.Println(line)
	}
	fmt.Println(strings.Repeat("=", 60))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
