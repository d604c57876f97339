// Package generator produces a synthetic, seeded campaign spend dataset with
// fixed channel splits and seasonal month weights.
package generator

import (
	"errors"
	"fmt"
	"math"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/money"
)

// CampaignProfile describes how one campaign spends across the year.
type CampaignProfile struct {
	Name string
	// Split is the share of each month's spend per channel, in Config.Channels order.
	Split []float64
	// MonthWeights are relative; index 0 is January.
	MonthWeights [12]float64
}

// Config drives a generation run.
type Config struct {
	Year      int
	Seed      int64 // 0 picks a random seed
	Channels  []string
	Campaigns []CampaignProfile
	MinAnnual int
	MaxAnnual int
}

func flatWeights() [12]float64 {
	var w [12]float64
	for i := range w {
		w[i] = 1
	}
	return w
}

// DefaultConfig returns the three reference campaigns: a summer-heavy video
// campaign, a holiday-heavy one and a flat social campaign.
func DefaultConfig() Config {
	summer := flatWeights()
	summer[5], summer[6], summer[7] = 10, 10, 10

	holiday := flatWeights()
	holiday[10], holiday[11] = 15, 15

	return Config{
		Year:     2025,
		Channels: []string{"channel1", "channel2", "channel3"},
		Campaigns: []CampaignProfile{
			{Name: "ads1", Split: []float64{0.10, 0.10, 0.80}, MonthWeights: summer},
			{Name: "ads2", Split: []float64{0.20, 0.15, 0.65}, MonthWeights: holiday},
			{Name: "ads3", Split: []float64{0.05, 0.60, 0.35}, MonthWeights: flatWeights()},
		},
		MinAnnual: 120000,
		MaxAnnual: 600000,
	}
}

// Validate checks that splits line up with channels and weights are usable.
func (c Config) Validate() error {
	var errs []error
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel is required"))
	}
	if c.MinAnnual < 0 || c.MaxAnnual < c.MinAnnual {
		errs = append(errs, fmt.Errorf("invalid annual spend range [%d, %d]", c.MinAnnual, c.MaxAnnual))
	}
	for _, p := range c.Campaigns {
		if p.Name == "" {
			errs = append(errs, errors.New("campaign name is required"))
		}
		if len(p.Split) != len(c.Channels) {
			errs = append(errs, fmt.Errorf("campaign %s: %d split values for %d channels", p.Name, len(p.Split), len(c.Channels)))
			continue
		}
		var sum float64
		for _, s := range p.Split {
			sum += s
		}
		if math.Abs(sum-1) > 1e-9 {
			errs = append(errs, fmt.Errorf("campaign %s: split sums to %.4f, want 1", p.Name, sum))
		}
		var weights float64
		for _, w := range p.MonthWeights {
			if w < 0 {
				errs = append(errs, fmt.Errorf("campaign %s: negative month weight", p.Name))
			}
			weights += w
		}
		if weights <= 0 {
			errs = append(errs, fmt.Errorf("campaign %s: month weights sum to zero", p.Name))
		}
	}
	return errors.Join(errs...)
}

// Generator creates spend records from a Config.
type Generator struct {
	cfg   Config
	faker *gofakeit.Faker
}

// New creates a generator after validating cfg.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return &Generator{
		cfg:   cfg,
		faker: gofakeit.New(cfg.Seed),
	}, nil
}

// Generate returns one record per campaign, month and channel. Each campaign
// draws an annual budget, spreads it over the months by weight and over the
// channels by split, rounding every amount to cents.
func (g *Generator) Generate() []spend.Record {
	records := make([]spend.Record, 0, len(g.cfg.Campaigns)*12*len(g.cfg.Channels))

	for _, p := range g.cfg.Campaigns {
		annual := float64(g.faker.Number(g.cfg.MinAnnual, g.cfg.MaxAnnual))

		var weights float64
		for _, w := range p.MonthWeights {
			weights += w
		}

		for m, w := range p.MonthWeights {
			monthly := annual * w / weights
			for k, channel := range g.cfg.Channels {
				records = append(records, spend.Record{
					Campaign: p.Name,
					Month:    m + 1,
					Year:     g.cfg.Year,
					Channel:  channel,
					Spend:    money.Round(monthly*p.Split[k], 2),
				})
			}
		}
	}

	return records
}
