package distribution

import (
	"fmt"
)

// Finding names the counterpart holding the largest share for one subject.
type Finding struct {
	Subject     string   `json:"subject"`
	Counterpart string   `json:"counterpart"`
	Percentage  float64  `json:"percentage"`
	TiedWith    []string `json:"tied_with,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s -> %s (%.2f%%)", f.Subject, f.Counterpart, f.Percentage)
}

// Summarize returns one finding per campaign (row distribution) or channel
// (column distribution). The Total axis never competes. Counterparts are
// compared on their unrounded shares when the distribution has them. On ties
// the first counterpart in matrix order wins and the others are listed in
// TiedWith.
func Summarize(d *Distribution) []Finding {
	if d.IsEmpty() {
		return nil
	}

	counterparts := d.Counterparts()
	rounded := make([]float64, len(counterparts))
	exact := make([]float64, len(counterparts))
	var findings []Finding

	for s, subject := range d.Subjects() {
		for c := range counterparts {
			rounded[c] = d.cell(s, c)
			exact[c] = rounded[c]
			if d.exact != nil {
				if d.Orientation == ByRow {
					exact[c] = d.exact.Values[s][c]
				} else {
					exact[c] = d.exact.Values[c][s]
				}
			}
		}
		findings = append(findings, dominant(subject, counterparts, rounded, exact))
	}

	return findings
}

func dominant(subject string, labels []string, rounded, exact []float64) Finding {
	f := Finding{Subject: subject}
	if len(exact) == 0 {
		return f
	}

	best := 0
	for k := 1; k < len(exact); k++ {
		if exact[k] > exact[best] {
			best = k
		}
	}

	f.Counterpart = labels[best]
	f.Percentage = rounded[best]
	for k, v := range exact {
		if k != best && v == exact[best] {
			f.TiedWith = append(f.TiedWith, labels[k])
		}
	}
	return f
}
