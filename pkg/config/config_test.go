package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/campaign-spend-insights/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, []string{"html", "md", "xlsx"}, cfg.Report.Formats)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 3, cfg.Narrative.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Narrative.Delay)
	assert.Equal(t, 15, cfg.Narrative.RatePerMinute)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "0 6 * * *", cfg.Schedule.Spec)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REPORT_FORMATS", "md, json")
	t.Setenv("NARRATIVE_RETRY_DELAY", "500ms")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("REPORT_RECIPIENTS", "a@example.com,b@example.com")
	t.Setenv("RESEND_API_KEY", "re_123")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"md", "json"}, cfg.Report.Formats)
	assert.Equal(t, 500*time.Millisecond, cfg.Narrative.Delay)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Recipients)
	assert.True(t, cfg.NarrativeUsesGemini())
}

func TestLoad_YAMLOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  source: postgres
report:
  title: Q4 Spend
narrative:
  delay: 3s
schedule:
  enabled: true
  spec: "30 7 * * 1"
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REPORT_TITLE", "Overridden")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Data.Source)
	assert.Equal(t, "Overridden", cfg.Report.Title)
	assert.Equal(t, 3*time.Second, cfg.Narrative.Delay)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, "30 7 * * 1", cfg.Schedule.Spec)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *config.Config) {},
		},
		{
			name: "accumulates errors",
			mutate: func(c *config.Config) {
				c.Server.Port = 0
				c.Data.Source = "sqlite"
				c.Report.Formats = []string{"pdf"}
			},
			wantErr: []string{"SERVER_PORT", "DATA_SOURCE", `unknown report format "pdf"`},
		},
		{
			name: "s3 needs bucket and region",
			mutate: func(c *config.Config) {
				c.Storage.Type = "s3"
			},
			wantErr: []string{"STORAGE_S3_BUCKET", "STORAGE_S3_REGION"},
		},
		{
			name: "bad cron spec",
			mutate: func(c *config.Config) {
				c.Schedule.Enabled = true
				c.Schedule.Spec = "every morning"
			},
			wantErr: []string{"SCHEDULE_SPEC"},
		},
		{
			name: "resend without recipients",
			mutate: func(c *config.Config) {
				c.Notify.ResendAPIKey = "re_123"
			},
			wantErr: []string{"REPORT_RECIPIENTS"},
		},
		{
			name: "narrative attempts",
			mutate: func(c *config.Config) {
				c.Narrative.MaxAttempts = 0
			},
			wantErr: []string{"NARRATIVE_MAX_ATTEMPTS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	db := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "spend", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=spend sslmode=disable", db.DSN())
}
