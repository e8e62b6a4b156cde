package cron

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/jpillora/backoff"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/dmarcwatch/reportstack/config"
	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	cron_config "github.com/dmarcwatch/reportstack/internal/cron/config"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/services"
)

// CONSTANTS
const (
	// GroupPipeline serializes ingest/process jobs within one process
	GroupPipeline = "pipeline"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupPipeline: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	cronCfg  cron_config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	services *services.Services
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, svcs *services.Services) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		services: svcs,
	}
}

// Start initializes and starts the cron manager with leader election.
// If k8s is nil, it will start in local mode without leader election.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "reportstack-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
// Stop is safe to call more than once; losing leadership and process
// shutdown can both reach it.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	if err := env.Parse(&cm.cronCfg); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cm.cronCfg.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cm.cronCfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
	}

	cm.addPipelineJob(c, "ingest_reports", cm.cronCfg.CronScheduleIngestReports, cm.ingestReports)
	cm.addPipelineJob(c, "process_reports", cm.cronCfg.CronScheduleProcessReports, cm.processReports)
	cm.addPipelineJob(c, "requeue_stuck", cm.cronCfg.CronScheduleRequeueStuck, cm.requeueStuck)
}

func (cm *CronManager) addPipelineJob(c *cronv3.Cron, name, schedule string, job func(ctx context.Context) error) {
	if schedule == "" {
		return
	}
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		jobLocks.locks[GroupPipeline].Lock()
		defer jobLocks.locks[GroupPipeline].Unlock()
		cm.runWithRetry(name, job)
	})
	if err != nil {
		cm.log.Fatalf("Could not add %s cron job: %v", name, err)
	}
	cm.jobIDs[name] = id
	cm.log.Infof("Registered %s job with schedule: %s", name, schedule)
}

// runWithRetry executes a job cycle with bounded retry and exponential
// backoff. Each attempt gets a soft deadline via context and a hard
// watchdog beyond which the attempt is abandoned. A permanently failed
// cycle is logged and normal execution resumes at the next tick.
func (cm *CronManager) runWithRetry(name string, job func(ctx context.Context) error) {
	attempts := cm.cronCfg.MaxRetries + 1
	retryDelay := &backoff.Backoff{
		Min:    time.Duration(cm.cronCfg.RetryBackoffBaseSec) * time.Second,
		Max:    5 * time.Minute,
		Factor: 2,
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := cm.runBounded(name, job)
		if err == nil {
			return
		}
		// A missing mail configuration is a skip, not a failure.
		// Retrying cannot help until the config changes.
		if errors.Is(err, reportstack_errors.ErrMailConfigMissing) {
			cm.log.Infof("Job %s skipped: %v", name, err)
			return
		}
		// Permanent errors (corrupt archives, malformed reports,
		// report id conflicts) are deterministic; another attempt
		// against the same input cannot succeed.
		if reportstack_errors.IsPermanent(err) {
			cm.log.Errorf("Job %s failed with a permanent error, not retrying: %v", name, err)
			return
		}
		cm.log.Errorf("Job %s attempt %d/%d failed: %v", name, attempt, attempts, err)
		if attempt < attempts {
			time.Sleep(retryDelay.Duration())
		}
	}

	cm.log.Errorf("Job %s permanently failed for this cycle after %d attempts", name, attempts)
}

// runBounded runs one attempt under the soft deadline, with a hard
// watchdog that abandons the attempt if the job overruns. The goroutine
// keeps the cooperative cancel signal; the stuck-row sweep recovers
// anything a hard-terminated attempt left mid-flight.
func (cm *CronManager) runBounded(name string, job func(ctx context.Context) error) error {
	softLimit := time.Duration(cm.cronCfg.SoftTimeLimitMin) * time.Minute
	hardLimit := time.Duration(cm.cronCfg.HardTimeLimitMin) * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), softLimit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- job(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(hardLimit):
		cancel()
		cm.log.Errorf("Job %s exceeded hard time limit of %s, abandoning attempt", name, hardLimit)
		return context.DeadlineExceeded
	}
}

func (cm *CronManager) ingestReports(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.ingestReports")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if !cm.cfg.IMAPConfig.Configured() {
		return reportstack_errors.ErrMailConfigMissing
	}

	summary, err := cm.services.IngestionService.IngestFromInbox(ctx, cm.cfg.PipelineConfig.IngestBatchLimit)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	// New attachments warrant an immediate processing pass instead of
	// waiting for the next tick; the short delay lets storage settle.
	if summary.AttachmentsIngested > 0 {
		delay := time.Duration(cm.cfg.PipelineConfig.ChainedProcessDelay) * time.Second
		time.AfterFunc(delay, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupPipeline].Lock()
			defer jobLocks.locks[GroupPipeline].Unlock()
			cm.runWithRetry("process_reports_chained", cm.processReports)
		})
	}

	return nil
}

func (cm *CronManager) processReports(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.processReports")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	_, err := cm.services.ProcessingService.ProcessPendingReports(ctx, cm.cfg.PipelineConfig.ProcessBatchLimit)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (cm *CronManager) requeueStuck(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.requeueStuck")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	threshold := time.Duration(cm.cfg.PipelineConfig.StuckThresholdMin) * time.Minute
	requeued, err := cm.services.ProcessingService.RequeueStuck(ctx, threshold)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if requeued > 0 {
		cm.log.Warnf("Requeued %d reports stuck in processing", requeued)
	}
	return nil
}
