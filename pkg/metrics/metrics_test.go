package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/campaign-spend-insights/pkg/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.ReportGenerated(12, 150*time.Millisecond, nil)
	m.ReportGenerated(0, time.Second, errors.New("missing input"))
	m.NarrativeOutcome("row", "generated")
	m.NarrativeOutcome("column", "fallback")
	m.NarrativeAttempt(nil)
	m.NarrativeAttempt(context.DeadlineExceeded)
	m.PublishFailed("storage")

	count, err := testutil.GatherAndCount(m.Registry(),
		"spend_insights_reports_generated_total",
		"spend_insights_narratives_total",
		"spend_insights_narrative_attempts_total",
		"spend_insights_publish_failures_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ReportGenerated(3, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spend_insights_reports_generated_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "spend_insights_records_loaded 3")
}
