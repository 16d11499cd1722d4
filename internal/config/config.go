package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/version"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	NWS      NWSConfig
	Sensors  []SensorConfig
	History  HistoryConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Shutdown time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type NWSConfig struct {
	BaseURL            string
	UserAgent          string
	PollInterval       time.Duration
	PollTimeout        time.Duration
	ProbeTimeout       time.Duration
	RetryMax           int
	SetupRetryInterval time.Duration
}

// SensorConfig is the raw user input for one sensor. Identifiers are
// validated at setup, not here.
type SensorConfig struct {
	Name   string
	State  string
	Zone   string
	County string
}

type HistoryConfig struct {
	Enabled bool
	Path    string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	sensors, err := ParseSensors(os.Getenv("SENSORS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		NWS: NWSConfig{
			BaseURL:            getEnv("NWS_BASE_URL", "https://api.weather.gov"),
			UserAgent:          getEnv("NWS_USER_AGENT", DefaultUserAgent()),
			PollInterval:       getEnvDuration("NWS_POLL_INTERVAL", time.Minute),
			PollTimeout:        getEnvDuration("NWS_POLL_TIMEOUT", 10*time.Second),
			ProbeTimeout:       getEnvDuration("NWS_PROBE_TIMEOUT", 20*time.Second),
			RetryMax:           getEnvInt("NWS_RETRY_MAX", 2),
			SetupRetryInterval: getEnvDuration("SETUP_RETRY_INTERVAL", 30*time.Second),
		},
		Sensors: sensors,
		History: HistoryConfig{
			Enabled: getEnvBool("HISTORY_ENABLED", true),
			Path:    getEnv("DB_PATH", "./data/weather-alerts.db"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "weather-alert-snapshots"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Shutdown: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultUserAgent identifies this client to weather.gov, which asks
// callers to include contact details.
func DefaultUserAgent() string {
	return fmt.Sprintf("go-weather-alerts/%s (https://github.com/mr1hm/go-weather-alerts)", version.Version)
}

// ParseSensors reads "STATE:ZONE[:COUNTY[:NAME]]" entries separated by ";".
// Empty entries are skipped; an entry without a zone is an error.
func ParseSensors(raw string) ([]SensorConfig, error) {
	var sensors []SensorConfig
	for _, entry := range splitList(raw, ";") {
		parts := strings.SplitN(entry, ":", 4)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid SENSORS entry %q: want STATE:ZONE[:COUNTY[:NAME]]", entry)
		}

		s := SensorConfig{State: parts[0], Zone: parts[1]}
		if len(parts) > 2 {
			s.County = parts[2]
		}
		if len(parts) > 3 {
			s.Name = parts[3]
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid LOG_LEVEL: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid LOG_FORMAT: %s (want json or text)", c.Logging.Format)
	}

	if len(c.Sensors) == 0 {
		return fmt.Errorf("SENSORS is required")
	}

	if c.NWS.PollInterval < time.Minute {
		return fmt.Errorf("NWS_POLL_INTERVAL must be at least 1 minute")
	}
	if c.NWS.PollTimeout <= 0 || c.NWS.PollTimeout >= c.NWS.PollInterval {
		return fmt.Errorf("NWS_POLL_TIMEOUT must be positive and shorter than NWS_POLL_INTERVAL")
	}
	if c.NWS.ProbeTimeout <= 0 {
		return fmt.Errorf("NWS_PROBE_TIMEOUT must be positive")
	}
	if c.NWS.RetryMax < 0 {
		return fmt.Errorf("invalid NWS_RETRY_MAX: %d", c.NWS.RetryMax)
	}
	if c.NWS.SetupRetryInterval <= 0 {
		return fmt.Errorf("SETUP_RETRY_INTERVAL must be positive")
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("invalid WORKER_COUNT: %d", c.Worker.Count)
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("invalid WORKER_BUFFER_SIZE: %d", c.Worker.BufferSize)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("DB_PATH is required when HISTORY_ENABLED is true")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw, sep string) []string {
	var out []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
