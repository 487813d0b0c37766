package cmdlog

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
)

func TestRunRecordsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logging.Wrap(zap.New(core))

	runs := testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("test_cmd"))
	errs := testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("test_cmd"))

	assert.NoError(t, Run(log, "test_cmd", func() error { return nil }))
	boom := errors.New("boom")
	assert.ErrorIs(t, Run(log, "test_cmd", func() error { return boom }), boom)

	assert.Equal(t, runs+2, testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("test_cmd")))
	assert.Equal(t, errs+1, testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("test_cmd")))
	assert.Equal(t, 1, logs.FilterMessage("test_cmd_ok").Len())
	assert.Equal(t, 1, logs.FilterMessage("test_cmd_error").Len())
}
