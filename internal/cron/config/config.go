package cron_config

type Config struct {
	// Schedules use the 6-field (seconds-first) cron syntax.
	CronScheduleHeartbeat      string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 0 * * * *"`
	CronScheduleIngestReports  string `env:"CRON_SCHEDULE_INGEST_REPORTS" envDefault:"0 */15 * * * *"`
	CronScheduleProcessReports string `env:"CRON_SCHEDULE_PROCESS_REPORTS" envDefault:"0 */5 * * * *"`
	CronScheduleRequeueStuck   string `env:"CRON_SCHEDULE_REQUEUE_STUCK" envDefault:"0 */30 * * * *"`

	// Bounded retry for a failing cycle; the next scheduled tick always
	// runs regardless of how this one ended.
	MaxRetries          int `env:"CRON_JOB_MAX_RETRIES" envDefault:"2"`
	RetryBackoffBaseSec int `env:"CRON_JOB_RETRY_BACKOFF_BASE_SECONDS" envDefault:"5"`

	// Soft limit is a context deadline the job observes between rows;
	// hard limit abandons the cycle outright. Hard > soft.
	SoftTimeLimitMin int `env:"CRON_JOB_SOFT_TIME_LIMIT_MINUTES" envDefault:"10"`
	HardTimeLimitMin int `env:"CRON_JOB_HARD_TIME_LIMIT_MINUTES" envDefault:"15"`
}
