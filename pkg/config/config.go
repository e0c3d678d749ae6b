package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"TickPulse/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the single configuration surface of the engine. Every field
// has a safe built-in default; the engine is fully functional with no
// config file present. Out-of-range values are rejected at construction,
// never clamped deep in business logic.
type Config struct {
	Environment string `yaml:"environment" default:"production"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Bridge struct {
		URL               string        `yaml:"url" default:"ws://127.0.0.1:8765/ticks" validate:"required"`
		ConnectTimeout    time.Duration `yaml:"connect_timeout" default:"5s" validate:"gte=1s,lte=60s"`
		RequestTimeout    time.Duration `yaml:"request_timeout" default:"30s" validate:"gte=1s,lte=300s"`
		ReconnectAttempts int           `yaml:"reconnect_attempts" default:"3" validate:"gte=0,lte=10"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"2s" validate:"gte=100ms,lte=60s"`
		TickLimit         int           `yaml:"tick_limit" default:"50000" validate:"gte=1000"`
		TicksPerHourEst   int           `yaml:"ticks_per_hour_estimate" default:"20000" validate:"gte=100"`
		RequestsPerSec    float64       `yaml:"requests_per_sec" default:"5" validate:"gt=0,lte=100"`
	} `yaml:"bridge"`

	Engine struct {
		Symbols          []string      `yaml:"symbols" default:"[\"EURUSD\",\"GBPUSD\",\"XAUUSD\"]" validate:"min=1,dive,required"`
		UpdateInterval   time.Duration `yaml:"update_interval" default:"60s" validate:"gte=1s,lte=300s"`
		PrevDayInterval  time.Duration `yaml:"prev_day_interval" default:"1h" validate:"gte=5m,lte=24h"`
		FetchWorkers     int           `yaml:"fetch_workers" default:"4" validate:"gte=1,lte=64"`
		StopTimeout      time.Duration `yaml:"stop_timeout" default:"10s" validate:"gte=1s,lte=120s"`
		MinQualityH1     float64       `yaml:"min_quality_h1" default:"0.2" validate:"gte=0,lte=1"`
		MinQualityPrevHr float64       `yaml:"min_quality_prev_hour" default:"0.2" validate:"gte=0,lte=1"`
	} `yaml:"engine"`

	Thresholds struct {
		AbsorptionVolumeMult float64 `yaml:"absorption_volume_mult" default:"2.0" validate:"gt=1"`
		AbsorptionPriceTol   float64 `yaml:"absorption_price_tolerance_pct" default:"0.05" validate:"gt=0"`
		SpreadWideningMult   float64 `yaml:"spread_widening_mult" default:"2.0" validate:"gt=1"`
		VoidSpreadMult       float64 `yaml:"void_spread_mult" default:"3.0" validate:"gt=1"`
		CVDSlopePct          float64 `yaml:"cvd_slope_pct" default:"10.0" validate:"gt=0"`
	} `yaml:"thresholds"`

	Cache struct {
		TTL                time.Duration `yaml:"ttl" default:"60s" validate:"gte=1s,lte=1h"`
		Retention          time.Duration `yaml:"retention" default:"24h" validate:"gte=1h,lte=720h"`
		Path               string        `yaml:"path" default:"data/snapshots.db" validate:"required"`
		CleanupEveryCycles int           `yaml:"cleanup_every_cycles" default:"60" validate:"gte=1"`
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Addr    string `yaml:"addr" default:":9109"`
	} `yaml:"metrics"`
}

var validate = validator.New()

// New returns a Config populated with built-in defaults.
func New() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML configuration file over the defaults. A missing
// file is not an error; the defaults stand.
func Load(path string) (*Config, error) {
	c, err := New()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config and overrides selected fields from the
// environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TICKPULSE_SYMBOLS"); v != "" {
		c.Engine.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("TICKPULSE_BRIDGE_URL"); v != "" {
		c.Bridge.URL = v
	}
	if v := os.Getenv("TICKPULSE_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("TICKPULSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	c.Engine.FetchWorkers = util.ParseIntDefault(os.Getenv("TICKPULSE_FETCH_WORKERS"), c.Engine.FetchWorkers)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration against field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed rule %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}
