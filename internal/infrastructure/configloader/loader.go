package configloader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

// Params 控制配置加载的输入参数。
type Params struct {
	ConfPath string
}

const (
	defaultConfPath        = "configs/config.yaml"
	envConfPath            = "CONF_PATH"
	envDatabaseURL         = "DATABASE_URL"
	envPort                = "PORT"
	envServiceName         = "SERVICE_NAME"
	envServiceVersion      = "SERVICE_VERSION"
	envEnvironment         = "APP_ENV"
	envUploadBucket        = "UPLOAD_BUCKET"
	envCDNBaseURL          = "CDN_UPLOAD_BASE_URL"
	envSignedTTLSeconds    = "SIGNED_UPLOAD_TTL_SECONDS"
	envServiceAuthToken    = "SERVICE_AUTH_TOKEN"
	envPubSubProjectID     = "PUBSUB_PROJECT_ID"
	envPubSubEmulatorHost  = "PUBSUB_EMULATOR_HOST"
	defaultServiceName     = "services-upload"
	defaultServiceVersion  = "dev"
	defaultEnvironment     = "development"
	defaultBucket          = "pocketlol-uploads"
	defaultCDNBaseURL      = "https://upload.cdn.pocketlol"
	defaultSignedTTL       = 600 * time.Second
	defaultConcurrentLimit = 3
	defaultDailyLimit      = 10
	defaultSweepInterval   = 60 * time.Second
)

// Load 解析配置文件并返回归一化的 RuntimeConfig。
func Load(params Params) (RuntimeConfig, error) {
	confPath := resolveConfPath(params.ConfPath)
	if err := loadEnvFiles(confPath); err != nil {
		return RuntimeConfig{}, fmt.Errorf("load env files: %w", err)
	}

	b, err := loadBootstrap(confPath)
	if err != nil {
		return RuntimeConfig{}, err
	}

	runtime := fromBootstrap(b)
	runtime.Service = buildServiceInfo()
	applyEnvOverrides(&runtime)
	fillDefaults(&runtime)

	return runtime, nil
}

func resolveConfPath(explicit string) string {
	switch {
	case explicit != "":
		return explicit
	case os.Getenv(envConfPath) != "":
		return os.Getenv(envConfPath)
	default:
		return defaultConfPath
	}
}

func loadEnvFiles(confPath string) error {
	dirs := candidateDirs(confPath)
	var files []string
	seen := map[string]struct{}{}
	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			fp := filepath.Join(dir, name)
			if _, err := os.Stat(fp); err != nil {
				continue
			}
			if _, ok := seen[fp]; ok {
				continue
			}
			files = append(files, fp)
			seen[fp] = struct{}{}
		}
	}
	if len(files) == 0 {
		return nil
	}
	return godotenv.Overload(files...)
}

func candidateDirs(confPath string) []string {
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, exist := range dirs {
			if exist == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if info, err := os.Stat(confPath); err == nil {
		if info.IsDir() {
			add(confPath)
		} else {
			add(filepath.Dir(confPath))
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		add(cwd)
	}
	return dirs
}

func loadBootstrap(confPath string) (bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	defer c.Close()

	if err := c.Load(); err != nil {
		return bootstrap{}, fmt.Errorf("load config %q: %w", confPath, err)
	}

	var b bootstrap
	if err := c.Scan(&b); err != nil {
		return bootstrap{}, fmt.Errorf("scan config %q: %w", confPath, err)
	}
	return b, nil
}

func buildServiceInfo() ServiceInfo {
	name := firstNonEmpty(os.Getenv(envServiceName), defaultServiceName)
	version := firstNonEmpty(os.Getenv(envServiceVersion), defaultServiceVersion)
	env := resolveEnvironment(os.Getenv(envEnvironment))
	instance := hostnameOrDefault()

	return ServiceInfo{
		Name:        name,
		Version:     version,
		Environment: env,
		InstanceID:  instance,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveEnvironment(raw string) string {
	if raw == "" {
		return defaultEnvironment
	}
	switch raw {
	case "dev", "development":
		return defaultEnvironment
	case "staging":
		return "staging"
	case "prod", "production":
		return "production"
	default:
		return raw
	}
}

func hostnameOrDefault() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-instance"
	}
	return host
}

func applyEnvOverrides(cfg *RuntimeConfig) {
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if port := os.Getenv(envPort); port != "" {
		cfg.Server.Address = replacePort(cfg.Server.Address, port)
	}
	if bucket := os.Getenv(envUploadBucket); bucket != "" {
		cfg.Upload.Bucket = bucket
	}
	if cdn := os.Getenv(envCDNBaseURL); cdn != "" {
		cfg.Upload.CDNBaseURL = cdn
	}
	if ttl := os.Getenv(envSignedTTLSeconds); ttl != "" {
		if seconds, err := strconv.Atoi(ttl); err == nil && seconds > 0 {
			cfg.Upload.SignedTTL = time.Duration(seconds) * time.Second
		}
	}
	if token := os.Getenv(envServiceAuthToken); token != "" {
		cfg.Server.AuthToken = token
	}
	if project := os.Getenv(envPubSubProjectID); project != "" {
		cfg.Messaging.ProjectID = project
	}
	if emulator := os.Getenv(envPubSubEmulatorHost); emulator != "" {
		cfg.Messaging.EmulatorEndpoint = emulator
	}
}

func replacePort(addr, port string) string {
	if addr == "" {
		return ":" + port
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ":" + port
	}
	return net.JoinHostPort(host, port)
}

func fillDefaults(cfg *RuntimeConfig) {
	if cfg.Upload.Bucket == "" {
		cfg.Upload.Bucket = defaultBucket
	}
	if cfg.Upload.CDNBaseURL == "" {
		cfg.Upload.CDNBaseURL = defaultCDNBaseURL
	}
	if cfg.Upload.SignedTTL <= 0 {
		cfg.Upload.SignedTTL = defaultSignedTTL
	}
	if cfg.Quota.ConcurrentLimit <= 0 {
		cfg.Quota.ConcurrentLimit = defaultConcurrentLimit
	}
	if cfg.Quota.DailyLimit <= 0 {
		cfg.Quota.DailyLimit = defaultDailyLimit
	}
	if cfg.Tasks.ExpirySweepInterval <= 0 {
		cfg.Tasks.ExpirySweepInterval = defaultSweepInterval
	}
}
