// Command process renders the artifacts for one date folder: the
// concatenated full match and the goal-highlights reel. The batch runner
// invokes it per date so a codec crash never takes the whole sweep down,
// but it works standalone too.
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
	"match-highlights/internal/clips"
	"match-highlights/internal/logging"
)

func main() {
	for _, path := range []string{".env", "../.env"} {
		_ = godotenv.Load(path)
	}

	date := flag.String("date", "", "date folder to process (YYYY-MM-DD)")
	directory := flag.String("directory", "", "override the footage base directory")
	videos := flag.String("videos", "", "comma-separated source files inside the date folder")
	saveFull := flag.Bool("save-full-video", false, "keep the concatenated full video on disk")
	noSaveFull := flag.Bool("no-save-full-video", false, "discard the full video after cutting highlights")
	skipHighlights := flag.Bool("skip-highlights", false, "stop after the full video, skip the reel")
	flag.Parse()

	if *date == "" {
		fmt.Fprintln(os.Stderr, "usage: process -date YYYY-MM-DD [-directory DIR] [-videos a.mp4,b.mp4]")
		os.Exit(2)
	}

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
	if *directory != "" {
		cfg.BaseDirectory = *directory
	}

	opts := clips.Options{
		SaveFullVideo:  cfg.SaveFullVideo,
		SkipHighlights: *skipHighlights,
	}
	if *saveFull {
		opts.SaveFullVideo = true
	}
	if *noSaveFull {
		opts.SaveFullVideo = false
	}
	if *videos != "" {
		opts.Videos = strings.Split(*videos, ",")
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

	if err := clips.NewProcessor(cfg, log).ProcessDate(ctx, *date, opts); err != nil {
		log.Errorf("process %s: %v", *date, err)
		os.Exit(1)
	}
	log.Infof("process %s: done", *date)
}
