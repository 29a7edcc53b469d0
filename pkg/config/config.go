package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"RiskLab/pkg/logger"
	"RiskLab/pkg/util"
)

// EnvPrefix namespaces environment overrides, e.g. RISKLAB_FRED_API_KEY.
const EnvPrefix = "risklab"

// DefaultStart is the window start when neither flags nor config name one.
const DefaultStart = "2005-01-01"

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled  bool   `yaml:"enabled"`
		Path     string `yaml:"path" default:"/metrics"`
		Textfile string `yaml:"textfile"`
		PushURL  string `yaml:"push_url" validate:"omitempty,url"`
		Job      string `yaml:"job" default:"risklab_ingest"`
	} `yaml:"metrics"`
	Storage struct {
		DataRoot    string `yaml:"data_root" default:"data" validate:"required"`
		CatalogPath string `yaml:"catalog_path" default:"catalog/runs.json" validate:"required"`
	} `yaml:"storage"`
	Run struct {
		Start            string `yaml:"start"`
		End              string `yaml:"end"`
		FetchConcurrency int    `yaml:"fetch_concurrency" default:"1" validate:"gte=1,lte=32"`
	} `yaml:"run"`
	Fred   SourceConfig `yaml:"fred"`
	Market SourceConfig `yaml:"market"`
	Retry  struct {
		MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gte=1,lte=10"`
		BaseDelay   time.Duration `yaml:"base_delay" default:"500ms"`
		MaxDelay    time.Duration `yaml:"max_delay" default:"8s"`
	} `yaml:"retry"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		TTL     time.Duration `yaml:"ttl" default:"1h"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"risklab.runs"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"risklab"`
		Table            string        `yaml:"table" default:"series_observations"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Validation ValidationConfig `yaml:"validation"`
	Series     []SeriesConfig   `yaml:"series" validate:"required,min=1,dive"`
}

// SourceConfig configures one provider endpoint.
type SourceConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
	RateLimit float64       `yaml:"rate_limit" default:"2" validate:"gt=0"` // requests per second
	Burst     int           `yaml:"burst" default:"1" validate:"gte=1"`
}

// ValidationConfig holds the quality thresholds. None of them has a default.
type ValidationConfig struct {
	MaxMissingFraction *float64        `yaml:"max_missing_fraction" validate:"required,gte=0,lte=1"`
	StaleRunLength     *int            `yaml:"stale_run_length" validate:"required,gte=1"`
	Freshness          FreshnessConfig `yaml:"freshness"`
	OutlierZ           *float64        `yaml:"outlier_z" validate:"required,gte=0"`
	Holidays           []string        `yaml:"holidays"`
}

// FreshnessConfig holds staleness windows in days.
type FreshnessConfig struct {
	ErrorAfter *int `yaml:"error_after" validate:"required,gte=0"`
	WarnAfter  *int `yaml:"warn_after" validate:"required,gte=0"`
}

// FreshnessOverride replaces the global windows for one series.
type FreshnessOverride struct {
	ErrorAfter *int `yaml:"error_after" validate:"omitempty,gte=0"`
	WarnAfter  *int `yaml:"warn_after" validate:"omitempty,gte=0"`
}

// SeriesConfig declares one series to ingest.
type SeriesConfig struct {
	ID        string             `yaml:"id" validate:"required"`
	Provider  string             `yaml:"provider" validate:"required,oneof=FRED MARKET"`
	Type      string             `yaml:"type" validate:"required,oneof=macro market"`
	Frequency string             `yaml:"frequency" default:"business" validate:"oneof=business daily monthly quarterly"`
	LevelOnly bool               `yaml:"level_only"`
	Freshness *FreshnessOverride `yaml:"freshness"`
}

// Env carries the environment overrides. Empty values leave the file settings alone.
type Env struct {
	FredAPIKey   string   `envconfig:"FRED_API_KEY"`
	DataRoot     string   `envconfig:"DATA_ROOT"`
	CatalogPath  string   `envconfig:"CATALOG_PATH"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	RedisAddr    string   `envconfig:"REDIS_ADDR"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	Start        string   `envconfig:"START"`
	End          string   `envconfig:"END"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	c.ApplyEnv(env)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML and applies static defaults without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// ApplyEnv copies non-empty environment values over the file settings.
func (c *Config) ApplyEnv(env Env) {
	if env.FredAPIKey != "" {
		c.Fred.APIKey = env.FredAPIKey
	}
	if env.DataRoot != "" {
		c.Storage.DataRoot = env.DataRoot
	}
	if env.CatalogPath != "" {
		c.Storage.CatalogPath = env.CatalogPath
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.RedisAddr != "" {
		c.Cache.Redis.Addr = env.RedisAddr
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.Start != "" {
		c.Run.Start = env.Start
	}
	if env.End != "" {
		c.Run.End = env.End
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	f := c.Validation.Freshness
	if *f.WarnAfter > *f.ErrorAfter {
		return fmt.Errorf("validation.freshness.warn_after (%d) must not exceed error_after (%d)", *f.WarnAfter, *f.ErrorAfter)
	}
	if _, err := c.Validation.HolidayDates(); err != nil {
		return err
	}
	if c.Run.Start != "" || c.Run.End != "" {
		if _, _, err := c.Window(); err != nil {
			return err
		}
	}

	// Artifacts and cache entries are keyed by the sanitized id alone, so ids
	// must stay distinct across providers after sanitizing and case folding.
	seen := make(map[string]string, len(c.Series))
	needsFredKey := false
	for _, s := range c.Series {
		key := SeriesKey(s.ID)
		if prev, dup := seen[key]; dup {
			if prev == s.ID {
				return fmt.Errorf("series %s declared twice", s.ID)
			}
			return fmt.Errorf("series %s collides with %s (both stored as series=%s)", s.ID, prev, util.SanitizeKey(s.ID))
		}
		seen[key] = s.ID
		if (s.Provider == "FRED") != (s.Type == "macro") {
			return fmt.Errorf("series %s: provider %s cannot serve type %s", s.ID, s.Provider, s.Type)
		}
		if s.Provider == "FRED" {
			needsFredKey = true
		}
		errAfter, warnAfter := c.FreshnessFor(s)
		if warnAfter > errAfter {
			return fmt.Errorf("series %s: freshness warn_after (%d) must not exceed error_after (%d)", s.ID, warnAfter, errAfter)
		}
	}
	if needsFredKey && c.Fred.APIKey == "" {
		return fmt.Errorf("fred.api_key is required for FRED series")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// SeriesKey is the identity of a series id on disk: sanitized and upper-cased.
func SeriesKey(id string) string {
	return strings.ToUpper(util.SanitizeKey(id))
}

// Window parses run.start and run.end. An empty start means DefaultStart,
// an empty end means today in UTC.
func (c *Config) Window() (time.Time, time.Time, error) {
	start, end := c.Run.Start, c.Run.End
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = util.FormatDate(time.Now().UTC())
	}
	return ParseWindow(start, end)
}

// ParseWindow parses a YYYY-MM-DD window and checks start <= end.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	s, ok := util.ParseDate(start)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", start)
	}
	e, ok := util.ParseDate(end)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", end)
	}
	if s.After(e) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", util.FormatDate(s), util.FormatDate(e))
	}
	return s, e, nil
}

// FreshnessFor returns the error and warning windows of one series.
func (c *Config) FreshnessFor(s SeriesConfig) (errorAfter, warnAfter int) {
	errorAfter, warnAfter = *c.Validation.Freshness.ErrorAfter, *c.Validation.Freshness.WarnAfter
	if s.Freshness != nil {
		if s.Freshness.ErrorAfter != nil {
			errorAfter = *s.Freshness.ErrorAfter
		}
		if s.Freshness.WarnAfter != nil {
			warnAfter = *s.Freshness.WarnAfter
		}
	}
	return errorAfter, warnAfter
}

// HolidayDates parses validation.holidays.
func (v ValidationConfig) HolidayDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(v.Holidays))
	for _, h := range v.Holidays {
		d, ok := util.ParseDate(h)
		if !ok {
			return nil, fmt.Errorf("invalid holiday %q", h)
		}
		out = append(out, d)
	}
	return out, nil
}
