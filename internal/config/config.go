package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 18200
	DefaultHost = "localhost"

	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: 10 * time.Second,
		},
		Settings: SettingsConfig{
			Rotation: RotationConfig{
				Method:             "round_robin",
				TimeBasedIntervalS: 60,
				Retries:            2,
				TimeoutS:           30,
				RemoveUnhealthy:    true,
				AllowedProtocols:   []string{"http", "https", "socks4", "socks4a", "socks5"},
			},
			RateLimit: RateLimitConfig{
				Enabled:     false,
				IntervalS:   60,
				MaxRequests: 120,
			},
			Healthcheck: HealthcheckConfig{
				TimeoutS:       5,
				Workers:        10,
				URL:            "https://www.google.com",
				ExpectedStatus: 200,
			},
			LogRetention: LogRetentionConfig{
				Enabled:          true,
				Days:             30,
				CompressAfter:    7,
				CleanupIntervalH: 24,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads configuration from file and environment, applying defaults for
// anything unset. The config file is always watched; when onConfigChange is
// non-nil the callback fires (debounced) on every rewrite.
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("warren")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("WARREN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have WARREN_CONFIG_FILE env var
		if configFile := os.Getenv("WARREN_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// lame debounce to avoid rapid-fire reloads
			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // Ignore multiple rapid changes
			}
			lastReload = now

			// looks like on windows this event is triggered
			// before the file is fully written, not sure why
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return config, nil
}

// Reload re-reads the watched config file into a fresh Config. Used by the
// change callback to produce the next settings snapshot.
func Reload() (*Config, error) {
	config := DefaultConfig()
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error re-reading config file: %w", err)
	}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return config, nil
}
