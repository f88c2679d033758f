// Package configloader 提供配置加载与归一化能力，供 Wire 装配使用。
package configloader

import "time"

// RuntimeConfig 聚合应用在运行期所需的配置片段。
type RuntimeConfig struct {
	Service       ServiceInfo
	Server        ServerConfig
	Database      DatabaseConfig
	Upload        UploadSettings
	Quota         QuotaSettings
	Tasks         TasksConfig
	Messaging     MessagingConfig
	Observability ObservabilityConfig
}

// ServiceInfo 描述服务标识与运行环境。
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// ServerConfig 收敛入站 HTTP 服务所需的网络与鉴权配置。
type ServerConfig struct {
	Network   string
	Address   string
	Timeout   time.Duration
	AuthToken string
	Handlers  HandlerTimeoutConfig
}

// HandlerTimeoutConfig 定义不同类型 Handler 的超时策略。
type HandlerTimeoutConfig struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

// DatabaseConfig 包含 PostgreSQL 连接池及事务默认值。
type DatabaseConfig struct {
	DSN               string
	MaxOpenConns      int
	MinOpenConns      int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	Schema            string
	Transaction       TransactionConfig
}

// TransactionConfig 指定事务默认隔离级别与超时策略。
type TransactionConfig struct {
	DefaultIsolation string
	DefaultTimeout   time.Duration
	LockTimeout      time.Duration
	MaxRetries       int
	MetricsEnabled   bool
}

// UploadSettings 汇集签名上传凭证签发所需的存储端配置。
type UploadSettings struct {
	Bucket     string
	CDNBaseURL string
	SignedTTL  time.Duration
}

// QuotaSettings 描述按管理员维度的上传配额上限。
type QuotaSettings struct {
	ConcurrentLimit int32
	DailyLimit      int32
}

// TasksConfig 控制后台任务的运行节奏。
type TasksConfig struct {
	ExpirySweepInterval time.Duration
}

// MessagingConfig 汇总事件发布所需的 Pub/Sub 设置。
// Destinations 将具名投递目标映射到 topic ID，未出现的目标视为未配置。
type MessagingConfig struct {
	ProjectID        string
	EmulatorEndpoint string
	PublishTimeout   time.Duration
	LoggingEnabled   bool
	MetricsEnabled   bool
	Destinations     map[string]string
}

// ObservabilityConfig 聚合 tracing 与 metrics 的配置。
type ObservabilityConfig struct {
	GlobalAttributes map[string]string
	Tracing          TracingConfig
	Metrics          MetricsConfig
}

// TracingConfig 描述 OpenTelemetry 追踪导出的行为。
type TracingConfig struct {
	Enabled       bool
	Exporter      string
	Endpoint      string
	Insecure      bool
	SamplingRatio float64
	Required      bool
}

// MetricsConfig 描述 OpenTelemetry 指标导出的行为。
type MetricsConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
	Insecure bool
	Interval time.Duration
	Required bool
}
