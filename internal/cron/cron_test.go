package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmarcwatch/reportstack/config"
	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	cron_config "github.com/dmarcwatch/reportstack/internal/cron/config"
	"github.com/dmarcwatch/reportstack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testCronManager(cronCfg cron_config.Config) *CronManager {
	cm := NewCronManager(&config.Config{
		AppConfig:      &config.AppConfig{},
		IMAPConfig:     &config.IMAPConfig{},
		PipelineConfig: &config.PipelineConfig{},
	}, getLogger(), nil, nil)
	cm.cronCfg = cronCfg
	return cm
}

func TestNewCronManager(t *testing.T) {
	cfg := &config.Config{AppConfig: &config.AppConfig{}}
	log := getLogger()

	cm := NewCronManager(cfg, log, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestRunWithRetry_AlwaysFailingJobIsBounded(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		MaxRetries:          2,
		RetryBackoffBaseSec: 0,
		SoftTimeLimitMin:    1,
		HardTimeLimitMin:    2,
	})

	attempts := 0
	cm.runWithRetry("always_fails", func(ctx context.Context) error {
		attempts++
		return errors.New("broken")
	})

	// max_retries retries after the initial attempt, then give up
	assert.Equal(t, 3, attempts)
}

func TestRunWithRetry_StopsAfterSuccess(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		MaxRetries:          2,
		RetryBackoffBaseSec: 0,
		SoftTimeLimitMin:    1,
		HardTimeLimitMin:    2,
	})

	attempts := 0
	cm.runWithRetry("flaky", func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.Equal(t, 2, attempts)
}

func TestRunWithRetry_SucceedingJobRunsOnce(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		MaxRetries:          2,
		RetryBackoffBaseSec: 0,
		SoftTimeLimitMin:    1,
		HardTimeLimitMin:    2,
	})

	attempts := 0
	cm.runWithRetry("healthy", func(ctx context.Context) error {
		attempts++
		return nil
	})

	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_MissingMailConfigIsNotRetried(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		MaxRetries:          2,
		RetryBackoffBaseSec: 0,
		SoftTimeLimitMin:    1,
		HardTimeLimitMin:    2,
	})

	attempts := 0
	cm.runWithRetry("unconfigured_ingest", func(ctx context.Context) error {
		attempts++
		return reportstack_errors.ErrMailConfigMissing
	})

	assert.Equal(t, 1, attempts)
}

func TestRunWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		MaxRetries:          2,
		RetryBackoffBaseSec: 0,
		SoftTimeLimitMin:    1,
		HardTimeLimitMin:    2,
	})

	attempts := 0
	cm.runWithRetry("malformed_batch", func(ctx context.Context) error {
		attempts++
		return reportstack_errors.NewMalformedReport("missing report_metadata section")
	})

	assert.Equal(t, 1, attempts)
}

func TestStop_IsIdempotent(t *testing.T) {
	cm := testCronManager(cron_config.Config{})

	// Leadership loss and process shutdown can both call Stop; the
	// second call must not panic on the closed channel.
	assert.NotPanics(t, func() {
		cm.Stop()
		cm.Stop()
	})
	select {
	case <-cm.stopCh:
	default:
		t.Fatal("stop channel not closed")
	}
}

func TestRunBounded_PassesSoftDeadlineToJob(t *testing.T) {
	cm := testCronManager(cron_config.Config{
		SoftTimeLimitMin: 1,
		HardTimeLimitMin: 2,
	})

	var sawDeadline bool
	err := cm.runBounded("deadline_check", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, sawDeadline)
}
