package model

import "time"

// VideoKind identifies which artifact of a date folder a record refers to.
type VideoKind string

const (
	KindFullVideo  VideoKind = "full_video"
	KindHighlights VideoKind = "highlights"
)

// Kinds lists artifacts in upload order: the uncut match first, then highlights.
var Kinds = []VideoKind{KindFullVideo, KindHighlights}

// UploadRecord marks one artifact as uploaded. Created once per (date, kind),
// immutable afterwards.
type UploadRecord struct {
	YouTubeID  string    `json:"youtube_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadMeta tracks the daily upload counter. UploadsToday is only meaningful
// while LastUploadDate equals the current date; a stale value reads as zero.
type UploadMeta struct {
	UploadsToday   int
	LastUploadDate string // YYYY-MM-DD, empty until the first upload
}

// UploadState is the full persisted upload bookkeeping: daily counter metadata
// plus one record per successfully uploaded (date, kind).
type UploadState struct {
	Meta    UploadMeta
	Entries map[string]map[VideoKind]UploadRecord // date -> kind -> record
}

func NewUploadState() *UploadState {
	return &UploadState{
		Entries: make(map[string]map[VideoKind]UploadRecord),
	}
}

// FolderStatus describes what a date folder currently holds on disk.
type FolderStatus struct {
	Exists        bool
	HasSplitsCSV  bool
	HasFullVideo  bool
	HasHighlights bool
	MP4Count      int
}

// DateState is the orchestrator's per-date state machine position.
type DateState string

const (
	StatePending    DateState = "pending"
	StateProcessing DateState = "processing"
	StateUploading  DateState = "uploading"
	StateDone       DateState = "done"
	StateError      DateState = "error"
	StateSkipped    DateState = "skipped"
)

// ArtifactAction records what happened to one artifact during a run.
type ArtifactAction string

const (
	ActionSkipped  ArtifactAction = "skipped"
	ActionCreated  ArtifactAction = "created"
	ActionUploaded ArtifactAction = "uploaded"
	ActionError    ArtifactAction = "error"
)

type ArtifactResult struct {
	Action    ArtifactAction `json:"action"`
	Created   bool           `json:"created,omitempty"` // rendered during this run
	Path      string         `json:"path,omitempty"`
	YouTubeID string         `json:"youtube_id,omitempty"`
	URL       string         `json:"url,omitempty"`
}

type DateResult struct {
	Date       string         `json:"date"`
	State      DateState      `json:"state"`
	FullVideo  ArtifactResult `json:"full_video"`
	Highlights ArtifactResult `json:"highlights"`
	Err        string         `json:"error,omitempty"`
}

// RunSummary aggregates one batch invocation.
type RunSummary struct {
	RunID             string       `json:"run_id"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at"`
	Results           []DateResult `json:"results"`
	CreatedFullVideos int          `json:"created_full_videos"`
	CreatedHighlights int          `json:"created_highlights"`
	Uploaded          int          `json:"uploaded"`
	Errors            int          `json:"errors"`
	HaltedOnQuota     bool         `json:"halted_on_quota"`
}
