package internal

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Highlight window around each goal timestamp
	BeforeGoalSeconds int
	AfterGoalSeconds  int

	BaseDirectory     string
	CSVDirectory      string
	OutputFilename    string // highlights artifact, e.g. final_video.mp4
	FullVideoFilename string // uncut artifact, e.g. full_video.mp4

	VideoCodec    string
	AudioCodec    string
	SaveFullVideo bool

	// Upload bookkeeping and quota protection.
	// YouTube API: 10,000 units/day, each upload costs ~1,600 units,
	// so ~6 uploads/day is the practical ceiling.
	StateFile              string
	MaxUploadsPerRun       int
	UploadWarningThreshold int
	UploadChunkSize        int64
	MaxUploadRetries       int

	CredentialsPath string
	TokenPath       string

	// Command invoked by the batch runner to build artifacts for one date
	ProcessCommand string

	// Optional S3 archival of artifacts and state
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	ArchivePrefix string

	// Optional operator notification
	TelegramToken  string
	TelegramChatID int64

	// Optional AI-written upload descriptions
	GeminiAPIKey string
}

// DefaultConfig returns the built-in defaults with no environment applied.
func DefaultConfig() Config {
	return Config{
		BeforeGoalSeconds: 8,
		AfterGoalSeconds:  4,

		BaseDirectory:     "/Users/swhelan/Dropbox/Indoor football",
		CSVDirectory:      "data",
		OutputFilename:    "final_video.mp4",
		FullVideoFilename: "full_video.mp4",

		VideoCodec:    "libx264",
		AudioCodec:    "aac",
		SaveFullVideo: true,

		StateFile:              "upload_state.json",
		MaxUploadsPerRun:       4,
		UploadWarningThreshold: 6,
		UploadChunkSize:        1 << 20,
		MaxUploadRetries:       10,

		CredentialsPath: "credentials/client_secrets.json",
		TokenPath:       "credentials/token.json",

		ProcessCommand: "process",

		ArchivePrefix: "archive/",
	}
}

func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3AccessKey = firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID"))
	cfg.S3SecretKey = firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID"))
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.GeminiAPIKey = firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"))

	if v := os.Getenv("BEFORE_GOAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BeforeGoalSeconds = n
		}
	}
	if v := os.Getenv("AFTER_GOAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AfterGoalSeconds = n
		}
	}
	if v := os.Getenv("BASE_DIRECTORY"); v != "" {
		cfg.BaseDirectory = v
	}
	if v := os.Getenv("CSV_DIRECTORY"); v != "" {
		cfg.CSVDirectory = v
	}
	if v := os.Getenv("OUTPUT_FILENAME"); v != "" {
		cfg.OutputFilename = v
	}
	if v := os.Getenv("FULL_VIDEO_FILENAME"); v != "" {
		cfg.FullVideoFilename = v
	}
	if v := os.Getenv("VIDEO_CODEC"); v != "" {
		cfg.VideoCodec = v
	}
	if v := os.Getenv("AUDIO_CODEC"); v != "" {
		cfg.AudioCodec = v
	}
	if v := os.Getenv("SAVE_FULL_VIDEO"); v != "" {
		cfg.SaveFullVideo = v != "false" && v != "0"
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("MAX_UPLOADS_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadsPerRun = n
		}
	}
	if v := os.Getenv("UPLOAD_WARNING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UploadWarningThreshold = n
		}
	}
	if v := os.Getenv("UPLOAD_CHUNK_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.UploadChunkSize = n
		}
	}
	if v := os.Getenv("CLIENT_SECRETS_FILE"); v != "" {
		cfg.CredentialsPath = v
	}
	if v := os.Getenv("TOKEN_FILE"); v != "" {
		cfg.TokenPath = v
	}
	if v := os.Getenv("PROCESS_COMMAND"); v != "" {
		cfg.ProcessCommand = v
	}
	if v := os.Getenv("ARCHIVE_PREFIX"); v != "" {
		cfg.ArchivePrefix = v
	}
	if v := os.Getenv("POSTS_CHATID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
			cfg.TelegramChatID = n
		}
	}

	return cfg, nil
}

// DateFolder returns the folder holding source clips and artifacts for a date.
func (c Config) DateFolder(date string) string {
	return filepath.Join(c.BaseDirectory, date)
}

// OutputPath returns the highlights artifact path for a date.
func (c Config) OutputPath(date string) string {
	return filepath.Join(c.BaseDirectory, date, c.OutputFilename)
}

// FullVideoPath returns the uncut artifact path for a date.
func (c Config) FullVideoPath(date string) string {
	return filepath.Join(c.BaseDirectory, date, c.FullVideoFilename)
}

// SplitsCSVPath returns the cumulative-timestamps CSV path for a date.
func (c Config) SplitsCSVPath(date string) string {
	return filepath.Join(c.BaseDirectory, date, "splits.csv")
}

func (c Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3Region != "" && c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c Config) HasTelegram() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Today formats a wall-clock time the way the state file keys dates.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
