package configuration

import (
	"time"

	"github.com/armadaproject/couponseed/internal/common/config"
)

type CouponSeedConfiguration struct {
	Aws           AwsConfig
	Oracle        OracleConfig
	Upload        UploadConfig
	Workflow      WorkflowConfig
	ExecutionLog  ExecutionLogConfig
	Orchestration OrchestrationConfig
	Mos           MosConfig
	Metrics       MetricsConfig
}

type AwsConfig struct {
	Region string `validate:"required"`
	// Named profile from the shared credentials file. Empty uses the default chain.
	Profile string
	// Overrides the service endpoint, e.g. for localstack.
	Endpoint string
}

type OracleType string

const (
	OracleLambda OracleType = "lambda"
	OracleRedis  OracleType = "redis"
)

type OracleConfig struct {
	// Either 'lambda' (invoke the debug overview function) or 'redis' (read the counters directly)
	Type OracleType `validate:"oneof=lambda redis"`
	// Function invoked with {"code":"overview"}; only read when Type is 'lambda'
	LambdaFunction string
	// Only read when Type is 'redis'
	Redis *config.RedisConfig
	// Counter keys of the single-pool families, by family name
	CounterKeys map[string]string
	// Counter key of a mos sub-code is this prefix followed by the sub-code
	MosKeyPrefix string `validate:"required"`
	// How counters are read from redis: 'get' for integer counters, 'scard' for sets of codes
	RedisCountCommand string `validate:"omitempty,oneof=get scard"`
}

type UploadConfig struct {
	Bucket string `validate:"required"`
	// Region of the bucket, used to build the object URL. Defaults to Aws.Region.
	Region string
	// Where generated batches are written
	OutputDir string `validate:"required"`
	// Where zip files are staged before upload. Defaults to <OutputDir>/temp.
	TempDir string
}

// IssueMaster identifies the coupon master an execution issues from.
type IssueMaster struct {
	CouponMasterId            string `validate:"required"`
	PublishedOrganizationId   string `validate:"required"`
	PublishedOrganizationName string
	Description               string
}

type WorkflowConfig struct {
	StateMachineArn string `validate:"required"`
	BatchSize       int    `validate:"gt=0"`
	PublishedFrom   string
	Description     string
	Fifo            bool
	// Keyed by family name for pos12 and gen16, and by sub-code for mos
	Masters map[string]IssueMaster `validate:"dive"`
	// Append-only record of every started execution, read by the poll command
	HistoryPath string
}

type ExecutionLogType string

const (
	ExecutionLogFile     ExecutionLogType = "file"
	ExecutionLogSqlite   ExecutionLogType = "sqlite"
	ExecutionLogPostgres ExecutionLogType = "postgres"
)

type NatsConfig struct {
	Url     string `validate:"required"`
	Subject string `validate:"required"`
}

type ExecutionLogConfig struct {
	// Either 'file', 'sqlite' or 'postgres'
	Type ExecutionLogType `validate:"oneof=file sqlite postgres"`
	// JSON lines file; only read when Type is 'file'
	FilePath string
	// Only read when Type is 'sqlite'
	SqlitePath string
	// Only read when Type is 'postgres'
	Postgres *config.PostgresConfig
	// When set, every appended entry is also published here
	Nats *NatsConfig
}

type ResumePolicy string

const (
	// Restart executions whose start was requested but never confirmed, reusing the recorded
	// execution name so the workflow engine deduplicates them.
	ResumeReuseKey ResumePolicy = "reuse-key"
	// Refuse to resume such a case until an operator has reconciled it.
	ResumeStrict ResumePolicy = "strict"
)

type OrchestrationConfig struct {
	// Extra codes generated on top of a single-family deficit
	SafetyMargin int `validate:"gte=0"`
	// Assumed ingestion throughput, used to estimate how long a replenishment takes to land
	IngestRatePerSecond int `validate:"gt=0"`
	// Time between inventory reads while waiting for a replenishment
	InventoryPollInterval time.Duration `validate:"gt=0"`
	// Upper bound on one replenishment wait
	InventoryWaitTimeout time.Duration `validate:"gt=0"`
	// Minimum time between starting a case's executions and the first status poll
	CompletionFloor time.Duration `validate:"gte=0"`
	// Time between status polls of one execution
	ExecutionPollInterval time.Duration `validate:"gt=0"`
	// Upper bound on waiting for all of a case's executions, floor included
	CompletionTimeout time.Duration `validate:"gt=0"`
	// Attempts and fixed delay for one transient status read
	PollRetryAttempts uint `validate:"gt=0"`
	PollRetryDelay    time.Duration
	// Interval of the interactive poll command
	MonitorInterval time.Duration `validate:"gt=0"`
	// Stop the batch at the first failed case
	FailFast     bool
	ResumePolicy ResumePolicy `validate:"oneof=reuse-key strict"`
}

type MosConfig struct {
	// Sub-codes eligible for issuance, in tie-break order
	AllowedSubCodes []string `validate:"required,dive,len=6,numeric"`
}

type MetricsConfig struct {
	// Port of the /metrics endpoint served by the run command; 0 disables it
	Port uint16
}
