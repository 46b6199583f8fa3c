// Package state persists upload bookkeeping: which (date, kind) artifacts
// have been uploaded, and how many uploads happened today.
//
// The file layout keeps dates as top-level keys next to a "_meta" object:
//
//	{
//	  "_meta": {"uploads_today": 2, "last_upload_date": "2025-01-13"},
//	  "2025-01-13": {"full_video": {"youtube_id": "...", "uploaded_at": "..."}}
//	}
//
// Every mutation is flushed immediately, so a crash loses at most the
// in-flight upload. Single-process sequential access is assumed; there is no
// file locking.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"match-highlights/internal"
	"match-highlights/internal/model"
)

const metaKey = "_meta"

type Store struct {
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

type metaWire struct {
	UploadsToday   int     `json:"uploads_today"`
	LastUploadDate *string `json:"last_upload_date"`
}

// Load reads the persisted state. A missing file yields a fresh zero state.
// A malformed file fails closed to an empty state rather than erroring out;
// skipped entries will simply be re-uploaded.
func (s *Store) Load() (*model.UploadState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewUploadState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return decode(data), nil
}

func decode(data []byte) *model.UploadState {
	st := model.NewUploadState()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.NewUploadState()
	}

	for key, msg := range raw {
		if key == metaKey {
			var mw metaWire
			if err := json.Unmarshal(msg, &mw); err != nil {
				continue
			}
			st.Meta.UploadsToday = mw.UploadsToday
			if mw.LastUploadDate != nil {
				st.Meta.LastUploadDate = *mw.LastUploadDate
			}
			continue
		}

		var recs map[model.VideoKind]model.UploadRecord
		if err := json.Unmarshal(msg, &recs); err != nil {
			continue
		}
		st.Entries[key] = recs
	}

	return st
}

// Save serializes the full state, replacing the previous file contents.
func (s *Store) Save(st *model.UploadState) error {
	out := make(map[string]any, len(st.Entries)+1)

	mw := metaWire{UploadsToday: st.Meta.UploadsToday}
	if st.Meta.LastUploadDate != "" {
		d := st.Meta.LastUploadDate
		mw.LastUploadDate = &d
	}
	out[metaKey] = mw

	for date, recs := range st.Entries {
		out[date] = recs
	}

	w, err := NewAtomicWriter(s.path)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		w.Abort()
		return fmt.Errorf("save state: encode: %w", err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// IsUploaded reports whether an artifact has already been uploaded.
func IsUploaded(st *model.UploadState, date string, kind model.VideoKind) bool {
	_, ok := st.Entries[date][kind]
	return ok
}

// Record notes a successful upload and persists immediately. Recording the
// same (date, kind) again overwrites the previous id: last write wins.
func (s *Store) Record(st *model.UploadState, date string, kind model.VideoKind, videoID string) error {
	if st.Entries == nil {
		st.Entries = make(map[string]map[model.VideoKind]model.UploadRecord)
	}
	recs := st.Entries[date]
	if recs == nil {
		recs = make(map[model.VideoKind]model.UploadRecord)
		st.Entries[date] = recs
	}
	recs[kind] = model.UploadRecord{YouTubeID: videoID, UploadedAt: s.now()}
	return s.Save(st)
}

// UploadsToday returns today's upload count. A counter carried over from an
// earlier date is stale and reads as zero.
func (s *Store) UploadsToday(st *model.UploadState) int {
	if st.Meta.LastUploadDate != internal.Today(s.now()) {
		return 0
	}
	return st.Meta.UploadsToday
}

// IncrementUploadCount bumps today's counter, rolling it over when the day
// has changed, and persists.
func (s *Store) IncrementUploadCount(st *model.UploadState) error {
	today := internal.Today(s.now())
	if st.Meta.LastUploadDate != today {
		st.Meta.UploadsToday = 1
		st.Meta.LastUploadDate = today
	} else {
		st.Meta.UploadsToday++
	}
	return s.Save(st)
}
