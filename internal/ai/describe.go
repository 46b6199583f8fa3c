package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"match-highlights/internal/logging"
	"match-highlights/internal/model"
)

// Describer writes the YouTube description for an artifact. Without an API
// key it falls back to a static description, so uploads never block on it.
type Describer struct {
	apiKey string
	log    *logging.Logger
}

func NewDescriber(apiKey string, log *logging.Logger) *Describer {
	return &Describer{apiKey: apiKey, log: log}
}

func fallbackDescription(date string, kind model.VideoKind) string {
	if kind == model.KindFullVideo {
		return fmt.Sprintf("Full indoor football match from %s.", date)
	}
	return fmt.Sprintf("Indoor football highlights from %s.", date)
}

// Describe returns a short upload description for the given match artifact.
func (d *Describer) Describe(ctx context.Context, date string, kind model.VideoKind, goals int) string {
	fallback := fallbackDescription(date, kind)
	if d == nil || d.apiKey == "" {
		return fallback
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		d.log.Warnf("ai: client init failed, using fallback description: %v", err)
		return fallback
	}

	what := "the full uncut recording"
	if kind == model.KindHighlights {
		what = fmt.Sprintf("a highlights reel covering %d goals", goals)
	}
	prompt := fmt.Sprintf(
		"Write a two-sentence YouTube description for %s of a casual indoor football match played on %s. "+
			"Plain text, no emoji, no hashtags.",
		what, date,
	)

	resp, err := client.Models.GenerateContent(ctx, "gemini-2.0-flash-exp", []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		d.log.Warnf("ai: generate failed, using fallback description: %v", err)
		return fallback
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallback
	}
	return text
}
