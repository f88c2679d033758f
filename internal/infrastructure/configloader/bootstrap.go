package configloader

import "time"

// bootstrap 对应配置文件的原始结构。时间字段以秒为单位的整数表达，
// 在归一化阶段统一转换为 time.Duration。
type bootstrap struct {
	Server        bootstrapServer        `json:"server"`
	Data          bootstrapData          `json:"data"`
	Upload        bootstrapUpload        `json:"upload"`
	Quota         bootstrapQuota         `json:"quota"`
	Tasks         bootstrapTasks         `json:"tasks"`
	Messaging     bootstrapMessaging     `json:"messaging"`
	Observability bootstrapObservability `json:"observability"`
}

type bootstrapServer struct {
	HTTP struct {
		Network        string `json:"network"`
		Addr           string `json:"addr"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"http"`
	AuthToken string `json:"auth_token"`
	Handlers  struct {
		DefaultSeconds int `json:"default_seconds"`
		CommandSeconds int `json:"command_seconds"`
		QuerySeconds   int `json:"query_seconds"`
	} `json:"handlers"`
}

type bootstrapData struct {
	Postgres struct {
		DSN                      string `json:"dsn"`
		MaxOpenConns             int    `json:"max_open_conns"`
		MinOpenConns             int    `json:"min_open_conns"`
		MaxConnLifetimeSeconds   int    `json:"max_conn_lifetime_seconds"`
		MaxConnIdleTimeSeconds   int    `json:"max_conn_idle_time_seconds"`
		HealthCheckPeriodSeconds int    `json:"health_check_period_seconds"`
		Schema                   string `json:"schema"`
		Transaction              struct {
			DefaultIsolation      string `json:"default_isolation"`
			DefaultTimeoutSeconds int    `json:"default_timeout_seconds"`
			LockTimeoutSeconds    int    `json:"lock_timeout_seconds"`
			MaxRetries            int    `json:"max_retries"`
			MetricsEnabled        bool   `json:"metrics_enabled"`
		} `json:"transaction"`
	} `json:"postgres"`
}

type bootstrapUpload struct {
	Bucket           string `json:"bucket"`
	CDNBaseURL       string `json:"cdn_base_url"`
	SignedTTLSeconds int    `json:"signed_ttl_seconds"`
}

type bootstrapQuota struct {
	ConcurrentLimit int32 `json:"concurrent_limit"`
	DailyLimit      int32 `json:"daily_limit"`
}

type bootstrapTasks struct {
	ExpirySweepIntervalSeconds int `json:"expiry_sweep_interval_seconds"`
}

type bootstrapMessaging struct {
	ProjectID             string            `json:"project_id"`
	EmulatorEndpoint      string            `json:"emulator_endpoint"`
	PublishTimeoutSeconds int               `json:"publish_timeout_seconds"`
	LoggingEnabled        bool              `json:"logging_enabled"`
	MetricsEnabled        bool              `json:"metrics_enabled"`
	Destinations          map[string]string `json:"destinations"`
}

type bootstrapObservability struct {
	GlobalAttributes map[string]string `json:"global_attributes"`
	Tracing          struct {
		Enabled       bool    `json:"enabled"`
		Exporter      string  `json:"exporter"`
		Endpoint      string  `json:"endpoint"`
		Insecure      bool    `json:"insecure"`
		SamplingRatio float64 `json:"sampling_ratio"`
		Required      bool    `json:"required"`
	} `json:"tracing"`
	Metrics struct {
		Enabled         bool   `json:"enabled"`
		Exporter        string `json:"exporter"`
		Endpoint        string `json:"endpoint"`
		Insecure        bool   `json:"insecure"`
		IntervalSeconds int    `json:"interval_seconds"`
		Required        bool   `json:"required"`
	} `json:"metrics"`
}

func fromBootstrap(b bootstrap) RuntimeConfig {
	rc := RuntimeConfig{
		Server: ServerConfig{
			Network:   b.Server.HTTP.Network,
			Address:   b.Server.HTTP.Addr,
			Timeout:   secondsOrZero(b.Server.HTTP.TimeoutSeconds),
			AuthToken: b.Server.AuthToken,
			Handlers: HandlerTimeoutConfig{
				Default: secondsOrZero(b.Server.Handlers.DefaultSeconds),
				Command: secondsOrZero(b.Server.Handlers.CommandSeconds),
				Query:   secondsOrZero(b.Server.Handlers.QuerySeconds),
			},
		},
		Database: DatabaseConfig{
			DSN:               b.Data.Postgres.DSN,
			MaxOpenConns:      b.Data.Postgres.MaxOpenConns,
			MinOpenConns:      b.Data.Postgres.MinOpenConns,
			MaxConnLifetime:   secondsOrZero(b.Data.Postgres.MaxConnLifetimeSeconds),
			MaxConnIdleTime:   secondsOrZero(b.Data.Postgres.MaxConnIdleTimeSeconds),
			HealthCheckPeriod: secondsOrZero(b.Data.Postgres.HealthCheckPeriodSeconds),
			Schema:            b.Data.Postgres.Schema,
			Transaction: TransactionConfig{
				DefaultIsolation: b.Data.Postgres.Transaction.DefaultIsolation,
				DefaultTimeout:   secondsOrZero(b.Data.Postgres.Transaction.DefaultTimeoutSeconds),
				LockTimeout:      secondsOrZero(b.Data.Postgres.Transaction.LockTimeoutSeconds),
				MaxRetries:       b.Data.Postgres.Transaction.MaxRetries,
				MetricsEnabled:   b.Data.Postgres.Transaction.MetricsEnabled,
			},
		},
		Upload: UploadSettings{
			Bucket:     b.Upload.Bucket,
			CDNBaseURL: b.Upload.CDNBaseURL,
			SignedTTL:  secondsOrZero(b.Upload.SignedTTLSeconds),
		},
		Quota: QuotaSettings{
			ConcurrentLimit: b.Quota.ConcurrentLimit,
			DailyLimit:      b.Quota.DailyLimit,
		},
		Tasks: TasksConfig{
			ExpirySweepInterval: secondsOrZero(b.Tasks.ExpirySweepIntervalSeconds),
		},
		Messaging: MessagingConfig{
			ProjectID:        b.Messaging.ProjectID,
			EmulatorEndpoint: b.Messaging.EmulatorEndpoint,
			PublishTimeout:   secondsOrZero(b.Messaging.PublishTimeoutSeconds),
			LoggingEnabled:   b.Messaging.LoggingEnabled,
			MetricsEnabled:   b.Messaging.MetricsEnabled,
			Destinations:     mapCopy(b.Messaging.Destinations),
		},
		Observability: ObservabilityConfig{
			GlobalAttributes: mapCopy(b.Observability.GlobalAttributes),
			Tracing: TracingConfig{
				Enabled:       b.Observability.Tracing.Enabled,
				Exporter:      b.Observability.Tracing.Exporter,
				Endpoint:      b.Observability.Tracing.Endpoint,
				Insecure:      b.Observability.Tracing.Insecure,
				SamplingRatio: b.Observability.Tracing.SamplingRatio,
				Required:      b.Observability.Tracing.Required,
			},
			Metrics: MetricsConfig{
				Enabled:  b.Observability.Metrics.Enabled,
				Exporter: b.Observability.Metrics.Exporter,
				Endpoint: b.Observability.Metrics.Endpoint,
				Insecure: b.Observability.Metrics.Insecure,
				Interval: secondsOrZero(b.Observability.Metrics.IntervalSeconds),
				Required: b.Observability.Metrics.Required,
			},
		},
	}
	return rc
}

func secondsOrZero(s int) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s) * time.Second
}

func mapCopy(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
