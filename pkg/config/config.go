package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	RemoteDiscoveryMaxAttempts int           `koanf:"remote_discovery_max_attempts" default:"3"`
	RemoteDiscoveryMaxBackoff  time.Duration `koanf:"remote_discovery_max_backoff" default:"4s"`
	RemoteDiscoveryTimeout     time.Duration `koanf:"remote_discovery_timeout" default:"30s"`
	RemoteDiscoveryURL         string        `koanf:"remote_discovery_url"`

	ScanBatchSize          int           `koanf:"scan_batch_size"`
	ScanLockFilePath       string        `koanf:"scan_lock_file_path"`
	ScanLowResourceMode    bool          `koanf:"scan_low_resource_mode"`
	ScanMaxDepth           int           `koanf:"scan_max_depth" default:"4"`
	ScanRoot               string        `koanf:"scan_root"`
	ScanTransactionTimeout time.Duration `koanf:"scan_transaction_timeout" default:"30s"`
	ScanWorkers            int           `koanf:"scan_workers" default:"4"`

	ServerHost string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort int    `koanf:"server_port" default:"3690"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/config.yaml"

	lowResourceBatchSize = 5
	defaultBatchSize     = 100
)

// New loads the config from defaults, then the YAML config file, then the
// environment. Later sources override earlier ones.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
	}

	// Environment variables map directly onto keys: DATABASE_FILE_PATH ->
	// database_file_path.
	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config pointing at an in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.ServerHost = "127.0.0.1"
	cfg.ScanWorkers = 2
	return cfg
}

// BatchSize is the number of hydrated artworks ingested per transaction.
func (cfg *Config) BatchSize() int {
	if cfg.ScanBatchSize > 0 {
		return cfg.ScanBatchSize
	}
	if cfg.ScanLowResourceMode {
		return lowResourceBatchSize
	}
	return defaultBatchSize
}

// LockFilePath is the file used to keep scans from overlapping across
// processes.
func (cfg *Config) LockFilePath() string {
	if cfg.ScanLockFilePath != "" {
		return cfg.ScanLockFilePath
	}
	if cfg.DatabaseFilePath == "" || strings.HasPrefix(cfg.DatabaseFilePath, ":memory:") {
		return filepath.Join(os.TempDir(), "pixishelf.scan.lock")
	}
	return cfg.DatabaseFilePath + ".scan.lock"
}

func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := toSnakeCase(fe.StructField())
		if field, ok := reflect.TypeOf(*cfg).FieldByName(fe.StructField()); ok {
			if tag := field.Tag.Get("koanf"); tag != "" {
				key = tag
			}
		}
		missing = append(missing, strings.ToUpper(key)+" ("+key+")")
	}

	return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
