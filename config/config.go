package config

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12444"`
	APIKey      string `env:"API_KEY"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"REPORTSTACK_POSTGRES_HOST,required"`
	Port            string `env:"REPORTSTACK_POSTGRES_PORT,required"`
	User            string `env:"REPORTSTACK_POSTGRES_USER,required"`
	DBName          string `env:"REPORTSTACK_POSTGRES_DB_NAME,required"`
	Password        string `env:"REPORTSTACK_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"REPORTSTACK_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"REPORTSTACK_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"REPORTSTACK_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"REPORTSTACK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"REPORTSTACK_POSTGRES_SSL_MODE" envDefault:"require"`
}

type IMAPConfig struct {
	Server   string `env:"DMARC_IMAP_SERVER"`
	Port     int    `env:"DMARC_IMAP_PORT" envDefault:"993"`
	Username string `env:"DMARC_IMAP_USERNAME"`
	Password string `env:"DMARC_IMAP_PASSWORD"`
	TLS      bool   `env:"DMARC_IMAP_TLS" envDefault:"true"`
	Folder   string `env:"DMARC_IMAP_FOLDER" envDefault:"INBOX"`
}

// Configured reports whether the mailbox credentials are set. Ingestion
// cycles are skipped entirely when they are not.
func (c *IMAPConfig) Configured() bool {
	return c.Server != "" && c.Username != "" && c.Password != ""
}

type StorageConfig struct {
	Backend         string `env:"REPORT_STORAGE_BACKEND" envDefault:"filesystem"`
	BasePath        string `env:"REPORT_STORAGE_BASE_PATH" envDefault:"/var/lib/reportstack/reports"`
	Bucket          string `env:"REPORT_STORAGE_BUCKET"`
	Region          string `env:"REPORT_STORAGE_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"REPORT_STORAGE_ENDPOINT"`
	AccessKeyID     string `env:"REPORT_STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"REPORT_STORAGE_ACCESS_KEY_SECRET"`
}

type PipelineConfig struct {
	IngestBatchLimit    int `env:"PIPELINE_INGEST_BATCH_LIMIT" envDefault:"50"`
	ProcessBatchLimit   int `env:"PIPELINE_PROCESS_BATCH_LIMIT" envDefault:"100"`
	StuckThresholdMin   int `env:"PIPELINE_STUCK_THRESHOLD_MINUTES" envDefault:"30"`
	ChainedProcessDelay int `env:"PIPELINE_CHAINED_PROCESS_DELAY_SECONDS" envDefault:"5"`
}
