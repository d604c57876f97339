package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

// TextGenerator is a single-turn text completion backend.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiNarrator asks a text generator for three short bullet points.
type GeminiNarrator struct {
	generator TextGenerator
}

// NewGeminiNarrator creates a narrator backed by generator.
func NewGeminiNarrator(generator TextGenerator) *GeminiNarrator {
	return &GeminiNarrator{generator: generator}
}

// Narrate implements Narrator.
func (n *GeminiNarrator) Narrate(ctx context.Context, d *distribution.Distribution) (string, error) {
	if d.IsEmpty() {
		return "", errors.New("nothing to narrate for an empty distribution")
	}

	text, err := n.generator.GenerateText(ctx, Prompt(d))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty narrative")
	}
	return text, nil
}

// Prompt builds the instruction plus the matrix for one distribution.
func Prompt(d *distribution.Distribution) string {
	focus := "campaign-centric (how ads spend)"
	if d.Orientation == distribution.ByColumn {
		focus = "channel-centric (who spends in channel)"
	}

	return fmt.Sprintf(
		"Analyze this %s distribution matrix and provide 3 punchy bullet points explaining the focus. "+
			"CRITICAL: Use the exact percentages from the table. Keep it under 50 words.\n\nData:\n%s",
		focus, d.Markdown(),
	)
}
