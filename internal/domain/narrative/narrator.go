// Package narrative turns distribution matrices into short natural-language
// insights, using an optional text-generation backend with a deterministic
// summary as fallback.
package narrative

import (
	"context"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
)

// Narrator produces narrative text for one distribution.
type Narrator interface {
	Narrate(ctx context.Context, d *distribution.Distribution) (string, error)
}

// SourceSummary marks text produced by the deterministic summary.
const SourceSummary = "summary"

// Insight is the narrative for one distribution plus the findings it is based on.
type Insight struct {
	Orientation distribution.Orientation `json:"orientation"`
	Findings    []distribution.Finding   `json:"findings"`
	Text        string                   `json:"text"`
	Source      string                   `json:"source"`
}

// Heading returns the title used for the insight block.
func (i Insight) Heading() string {
	return heading(i.Orientation)
}

// IsFallback reports whether the text came from the deterministic summary.
func (i Insight) IsFallback() bool {
	return i.Source == SourceSummary
}
