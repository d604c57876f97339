// Package spend defines campaign spend records and the sources they are loaded from.
package spend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record is one month of spend for a campaign on a channel.
type Record struct {
	Campaign string  `csv:"campaign" json:"campaign"`
	Month    int     `csv:"month" json:"month"`
	Year     int     `csv:"year" json:"year"`
	Channel  string  `csv:"channel" json:"channel"`
	Spend    float64 `csv:"spend" json:"spend"`
}

// Validate checks the identifying fields of a record. Spend is not checked:
// negative values aggregate like any other amount.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Campaign) == "" {
		return errors.New("campaign is required")
	}
	if strings.TrimSpace(r.Channel) == "" {
		return errors.New("channel is required")
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("month %d out of range 1-12", r.Month)
	}
	return nil
}

// Source loads the full record set for one analysis run.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// Sink persists a record set, replacing what was stored before.
type Sink interface {
	Save(ctx context.Context, records []Record) error
}

// ErrMissingInput matches any MissingInputError via errors.Is.
var ErrMissingInput = errors.New("spend dataset missing")

// MissingInputError reports a dataset that does not exist or cannot be read.
// It is terminal for report generation.
type MissingInputError struct {
	Source string
	Err    error
}

func (e *MissingInputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("spend dataset %s is missing or unreadable", e.Source)
	}
	return fmt.Sprintf("spend dataset %s is missing or unreadable: %v", e.Source, e.Err)
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMissingInput.
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// IsMissingInput reports whether err is, or wraps, a MissingInputError.
func IsMissingInput(err error) bool {
	return errors.Is(err, ErrMissingInput)
}
