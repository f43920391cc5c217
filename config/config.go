package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kwanifi/ratewatch/log"
)

const (
	ServiceName = "ratewatch"

	DefaultAPIBase         = "http://localhost:8080"
	DefaultListenOnPort    = 8090
	DefaultMaxPoints       = 24
	DefaultBufferCapacity  = 100
	DefaultTimezone        = "Local"
	DefaultStatusInterval  = 30 * time.Second
	DefaultCacheTTL        = time.Minute
	DefaultLogLevel        = "info"
	apiBaseEnv             = "API_BASE"
	legacyAPIBaseEnv       = "VITE_API_URL"
	maxAllowedChartPoints  = 1000
	maxAllowedLiveCapacity = 100000
)

type (
	Config struct {
		APIBase string  `mapstructure:"api_base"`
		API     API     `mapstructure:"api"`
		History History `mapstructure:"history"`
		Live    Live    `mapstructure:"live"`
		Display Display `mapstructure:"display"`
		Status  Status  `mapstructure:"status"`
		Log     Log     `mapstructure:"log"`
		Cache   Cache   `mapstructure:"cache"`
	}
	API struct {
		ListenOnPort   uint64   `mapstructure:"listen_on_port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	}
	History struct {
		// Zero means no timeout.
		Timeout   time.Duration `mapstructure:"timeout"`
		MaxPoints int           `mapstructure:"max_points"`
	}
	Live struct {
		BufferCapacity int `mapstructure:"buffer_capacity"`
	}
	Display struct {
		Timezone string `mapstructure:"timezone"`
	}
	Status struct {
		Interval time.Duration `mapstructure:"interval"`
	}
	Log struct {
		Level string `mapstructure:"level"`
	}
	Cache struct {
		TTL time.Duration `mapstructure:"ttl"`
	}
)

// GetConfig loads the configuration or terminates the process.
func GetConfig() Config {
	cfg, err := Load(viper.New())
	if err != nil {
		log.Fatal("config.GetConfig: %s", err.Error())
	}
	return cfg
}

// Load reads defaults, an optional config.yaml and environment overrides into v.
func Load(v *viper.Viper) (cfg Config, err error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/" + ServiceName)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("viper.ReadInConfig: %s", err.Error())
		}
		log.Debug("config.Load: no config file found, using defaults and env")
	} else {
		log.Info("config.Load: using config file %s", v.ConfigFileUsed())
	}

	// The old front-end build read the backend location from this variable.
	if !apiBaseExplicit(v) {
		_ = v.BindEnv("legacy_api_base", legacyAPIBaseEnv)
		if legacy := v.GetString("legacy_api_base"); legacy != "" {
			v.Set("api_base", legacy)
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("viper.Unmarshal: %s", err.Error())
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	if err = cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apiBaseExplicit reports whether api_base came from the environment or the
// config file rather than from the defaults.
func apiBaseExplicit(v *viper.Viper) bool {
	if _, ok := os.LookupEnv(apiBaseEnv); ok {
		return true
	}
	return v.InConfig("api_base")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base", DefaultAPIBase)
	v.SetDefault("api.listen_on_port", DefaultListenOnPort)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("history.timeout", "0s")
	v.SetDefault("history.max_points", DefaultMaxPoints)
	v.SetDefault("live.buffer_capacity", DefaultBufferCapacity)
	v.SetDefault("display.timezone", DefaultTimezone)
	v.SetDefault("status.interval", DefaultStatusInterval.String())
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("cache.ttl", DefaultCacheTTL.String())
}

func (cfg Config) Validate() error {
	u, err := url.Parse(cfg.APIBase)
	if err != nil || cfg.APIBase == "" {
		return fmt.Errorf("api_base: invalid url %q", cfg.APIBase)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("api_base: missing host in %q", cfg.APIBase)
	}
	if cfg.API.ListenOnPort == 0 || cfg.API.ListenOnPort > 65535 {
		return fmt.Errorf("api.listen_on_port: out of range: %d", cfg.API.ListenOnPort)
	}
	if cfg.History.Timeout < 0 {
		return fmt.Errorf("history.timeout: must not be negative")
	}
	if cfg.History.MaxPoints <= 0 || cfg.History.MaxPoints > maxAllowedChartPoints {
		return fmt.Errorf("history.max_points: must be in 1..%d", maxAllowedChartPoints)
	}
	if cfg.Live.BufferCapacity <= 0 || cfg.Live.BufferCapacity > maxAllowedLiveCapacity {
		return fmt.Errorf("live.buffer_capacity: must be in 1..%d", maxAllowedLiveCapacity)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("display.timezone: %s", err.Error())
	}
	return nil
}

// Location resolves display.timezone; "Local" and "" mean the process zone.
func (cfg Config) Location() (*time.Location, error) {
	if cfg.Display.Timezone == "" || cfg.Display.Timezone == DefaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.Display.Timezone)
}

// MaxChartPoints is the upper bound accepted by the chart endpoint.
func MaxChartPoints() int {
	return maxAllowedChartPoints
}
