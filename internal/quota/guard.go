// Package quota gates uploads behind two independent ceilings: a hard
// per-run cap and an advisory per-day threshold derived from the YouTube
// API's daily unit budget.
package quota

import (
	"errors"
	"fmt"

	"match-highlights/internal/logging"
	"match-highlights/internal/model"
	"match-highlights/internal/state"
)

// ErrRunBudgetExhausted means the per-run cap is spent. The batch runner
// treats it as a signal to halt the whole date loop.
var ErrRunBudgetExhausted = errors.New("per-run upload budget exhausted")

type Guard struct {
	store         *state.Store
	log           *logging.Logger
	maxPerRun     int
	warnThreshold int
	usedThisRun   int
}

func NewGuard(store *state.Store, log *logging.Logger, maxPerRun, warnThreshold int) *Guard {
	return &Guard{
		store:         store,
		log:           log,
		maxPerRun:     maxPerRun,
		warnThreshold: warnThreshold,
	}
}

// Check decides whether the next upload may proceed. A spent run budget
// returns ErrRunBudgetExhausted before any network call. Crossing the daily
// threshold only logs a warning; the upload still proceeds.
func (g *Guard) Check(st *model.UploadState) error {
	if g.usedThisRun >= g.maxPerRun {
		return fmt.Errorf("%w (%d/%d this run)", ErrRunBudgetExhausted, g.usedThisRun, g.maxPerRun)
	}

	if today := g.store.UploadsToday(st); today >= g.warnThreshold {
		g.log.Warnf("quota: approaching daily limit (%d uploads today, ~%d/day allowed; resets at midnight Pacific Time)",
			today, g.warnThreshold)
	}
	return nil
}

// RecordSuccess consumes one unit of the run budget and bumps the persisted
// daily counter. Called only after an upload actually succeeded.
func (g *Guard) RecordSuccess(st *model.UploadState) error {
	g.usedThisRun++
	return g.store.IncrementUploadCount(st)
}

// UsedThisRun returns how many uploads this run has performed.
func (g *Guard) UsedThisRun() int { return g.usedThisRun }

// MaxPerRun returns the hard per-run ceiling.
func (g *Guard) MaxPerRun() int { return g.maxPerRun }
