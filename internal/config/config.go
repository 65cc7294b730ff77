package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete pipeline configuration. Every stage receives it
// explicitly; there is no package-level state. Values come from defaults,
// overridden by an optional YAML file, overridden by CAGED_* environment
// variables.
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch" envconfig:"FETCH"`
	Aggregate AggregateConfig `yaml:"aggregate" envconfig:"AGGREGATE"`
	Model     ModelConfig     `yaml:"model" envconfig:"MODEL"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
}

// FetchConfig controls the FTP retrieval stage.
type FetchConfig struct {
	Host       string        `yaml:"host" envconfig:"HOST" validate:"required"`
	RootDir    string        `yaml:"root_dir" envconfig:"ROOT_DIR" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"min=0,max=10"`
	RetryWait  time.Duration `yaml:"retry_wait" envconfig:"RETRY_WAIT"`
}

// AggregateConfig carries the documented statistical policy constants.
// They are policy choices, not inferences: changing them changes every
// downstream conclusion, so they live here rather than in code.
type AggregateConfig struct {
	// MinAge/MaxAge bound plausible worker ages; rows outside are excluded
	// from wage/age metrics but still counted as raw admissions.
	MinAge int `yaml:"min_age" envconfig:"MIN_AGE" validate:"min=0"`
	MaxAge int `yaml:"max_age" envconfig:"MAX_AGE" validate:"gtfield=MinAge"`

	// MaxWage is the exclusive upper bound for plausible monthly wages in
	// BRL. Wages must also be strictly positive.
	MaxWage float64 `yaml:"max_wage" envconfig:"MAX_WAGE" validate:"gt=0"`

	// MinSampleSize is the count below which a group is flagged
	// low-confidence and its means withheld.
	MinSampleSize int64 `yaml:"min_sample_size" envconfig:"MIN_SAMPLE_SIZE" validate:"min=1"`
}

// ModelConfig controls the modeling stage.
type ModelConfig struct {
	// Horizon is the number of months to forecast.
	Horizon int `yaml:"horizon" envconfig:"HORIZON" validate:"min=1,max=120"`

	// Alpha is the significance level for forecast intervals and
	// regression confidence intervals.
	Alpha float64 `yaml:"alpha" envconfig:"ALPHA" validate:"gt=0,lt=1"`

	// MinQualityWeight excludes months whose quality weight falls below it
	// from the projection series.
	MinQualityWeight float64 `yaml:"min_quality_weight" envconfig:"MIN_QUALITY_WEIGHT" validate:"min=0,max=1"`
}

// ServerConfig contains dashboard HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig holds the data directory layout. All stage directories are
// derived from DataDir unless set individually.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	CleanDir     string `yaml:"clean_dir" envconfig:"CLEAN_DIR"`
	ExportsDir   string `yaml:"exports_dir" envconfig:"EXPORTS_DIR"`
	StoreFile    string `yaml:"store_file" envconfig:"STORE_FILE"`
	ManifestFile string `yaml:"manifest_file" envconfig:"MANIFEST_FILE"`
}

func defaultConfig() Config {
	return Config{
		Fetch: FetchConfig{
			Host:       "ftp.mtps.gov.br:21",
			RootDir:    "/pdet/microdados/NOVO CAGED",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			RetryWait:  10 * time.Second,
		},
		Aggregate: AggregateConfig{
			MinAge:        14,
			MaxAge:        80,
			MaxWage:       200000,
			MinSampleSize: 30,
		},
		Model: ModelConfig{
			Horizon:          60,
			Alpha:            0.05,
			MinQualityWeight: 0.6,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/cagedpulse.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
		},
	}
}

// Load starts from the built-in defaults, overlays the YAML file at path
// (if it exists), applies CAGED_* env overrides, resolves the path layout
// and validates the result. An empty path loads defaults + environment only.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	// Environment wins over both the file and the defaults. Fields without
	// a set CAGED_* variable are left untouched.
	if err := envconfig.Process("CAGED", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.Paths.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against the struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// NewPaths returns the resolved directory layout for this configuration.
func (c *Config) NewPaths() *Paths {
	return newPaths(c.Paths)
}
