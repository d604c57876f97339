package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/generator"
)

func TestGenerate_Shape(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Seed = 42
	g, err := generator.New(cfg)
	require.NoError(t, err)

	records := g.Generate()

	require.Len(t, records, 3*12*3)
	for _, r := range records {
		require.NoError(t, r.Validate())
		assert.Equal(t, 2025, r.Year)
		assert.GreaterOrEqual(t, r.Spend, 0.0)
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Seed = 7

	a, err := generator.New(cfg)
	require.NoError(t, err)
	b, err := generator.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Generate(), b.Generate())
}

func TestGenerate_FollowsProfiles(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Seed = 2025
	g, err := generator.New(cfg)
	require.NoError(t, err)

	row, _ := distribution.Normalize(distribution.Aggregate(g.Generate()))
	findings := distribution.Summarize(row)

	require.Len(t, findings, 3)
	assert.Equal(t, "channel3", findings[0].Counterpart)
	assert.InDelta(t, 80.0, findings[0].Percentage, 0.05)
	assert.Equal(t, "channel3", findings[1].Counterpart)
	assert.InDelta(t, 65.0, findings[1].Percentage, 0.05)
	assert.Equal(t, "channel2", findings[2].Counterpart)
	assert.InDelta(t, 60.0, findings[2].Percentage, 0.05)
}

func TestGenerate_Seasonality(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Seed = 1
	g, err := generator.New(cfg)
	require.NoError(t, err)

	monthly := map[string]map[int]float64{}
	for _, r := range g.Generate() {
		if monthly[r.Campaign] == nil {
			monthly[r.Campaign] = map[int]float64{}
		}
		monthly[r.Campaign][r.Month] += r.Spend
	}

	assert.InDelta(t, monthly["ads1"][7], 10*monthly["ads1"][1], 1)
	assert.InDelta(t, monthly["ads2"][12], 15*monthly["ads2"][3], 1)
	assert.InDelta(t, monthly["ads3"][6], monthly["ads3"][11], 0.05)
}

func TestConfig_Validate(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Campaigns[0].Split = []float64{0.5, 0.5}
	cfg.Campaigns[1].Split = []float64{0.5, 0.5, 0.5}
	cfg.Campaigns[2].MonthWeights = [12]float64{}

	_, err := generator.New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ads1: 2 split values for 3 channels")
	assert.Contains(t, err.Error(), "ads2: split sums to 1.5000")
	assert.Contains(t, err.Error(), "ads3: month weights sum to zero")
}
