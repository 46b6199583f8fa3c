// Package notify sends the end-of-run summary to an operator chat. A nil
// Notifier is valid and drops every message, so callers never branch on
// whether notifications are configured.
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"match-highlights/internal/logging"
	"match-highlights/internal/model"
)

type Notifier struct {
	tg     *tgbotapi.BotAPI
	chatID int64
	log    *logging.Logger
}

func New(token string, chatID int64, log *logging.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Notifier{tg: api, chatID: chatID, log: log}, nil
}

// RunFinished posts a one-message digest of the batch run.
func (n *Notifier) RunFinished(summary *model.RunSummary) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, formatSummary(summary))
	if _, err := n.tg.Send(msg); err != nil {
		n.log.Errorf("notify: telegram send failed: %v", err)
	}
}

func formatSummary(s *model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Highlights run %s\n", s.RunID)
	fmt.Fprintf(&b, "dates: %d, uploaded: %d, errors: %d\n", len(s.Results), s.Uploaded, s.Errors)
	if s.CreatedFullVideos > 0 || s.CreatedHighlights > 0 {
		fmt.Fprintf(&b, "rendered: %d full, %d highlights\n", s.CreatedFullVideos, s.CreatedHighlights)
	}
	if s.HaltedOnQuota {
		b.WriteString("halted: YouTube quota exhausted\n")
	}
	for _, r := range s.Results {
		if r.State == model.StateError {
			fmt.Fprintf(&b, "%s failed: %s\n", r.Date, r.Err)
		}
	}
	fmt.Fprintf(&b, "took %s", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	return b.String()
}
