package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/findmy-agent/internal/cache"
	"github.com/benmeehan/findmy-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		URL     string        `yaml:"url"`     // Backend base URL
		Timeout time.Duration `yaml:"timeout"` // Per-request timeout
	} `yaml:"server"`

	Cache struct {
		Path string `yaml:"path"` // Path to the Find My items cache
	} `yaml:"cache"`

	Poll struct {
		Interval             time.Duration `yaml:"interval"`               // Delay between cache polls
		BatchSize            int           `yaml:"batch_size"`             // Maximum readings per batch request
		MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"` // Stop after this many failed cycles in a row
	} `yaml:"poll"`

	Logging struct {
		Level string `yaml:"level"` // zerolog level name
		File  string `yaml:"file"`  // Optional JSON log file, empty disables
	} `yaml:"logging"`

	MQTT struct {
		Enabled        bool          `yaml:"enabled"`         // Also publish accepted readings to MQTT
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID prefix
		Username       string        `yaml:"username"`        // Optional broker username
		Password       string        `yaml:"password"`        // Optional broker password
		CACertificate  string        `yaml:"ca_certificate"`  // Optional path to the CA certificate
		Topic          string        `yaml:"topic"`           // Topic readings are published to
		QOS            int           `yaml:"qos"`             // MQTT QoS level for location messages
		PublishTimeout time.Duration `yaml:"publish_timeout"` // Max wait for a publish acknowledgement
	} `yaml:"mqtt"`

	Metrics struct {
		Enabled       bool   `yaml:"enabled"`        // Serve prometheus metrics
		ListenAddress string `yaml:"listen_address"` // Address of the metrics endpoint
	} `yaml:"metrics"`

	Import struct {
		BatchSize int           `yaml:"batch_size"` // Rows per batch request
		Timeout   time.Duration `yaml:"timeout"`    // Per-request timeout for imports
	} `yaml:"import"`

	History struct {
		File string `yaml:"file"` // Append accepted readings to this CSV, empty disables
	} `yaml:"history"`
}

// MinPollInterval is the shortest poll interval accepted from configuration.
// Durations need a unit in YAML, e.g. "10s".
const MinPollInterval = time.Second

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	var config Config

	config.Server.URL = "https://findmycat.goldmansoap.com/findmy"
	config.Server.Timeout = 30 * time.Second

	config.Cache.Path = cache.DefaultPath

	config.Poll.Interval = 10 * time.Second
	config.Poll.BatchSize = 10
	config.Poll.MaxConsecutiveErrors = 0

	config.Logging.Level = "info"
	config.Logging.File = "findmycat_client.log"

	config.MQTT.ClientID = "findmy-agent"
	config.MQTT.Topic = "findmy/locations"
	config.MQTT.QOS = 1
	config.MQTT.PublishTimeout = 5 * time.Second

	config.Metrics.ListenAddress = ":9464"

	config.Import.BatchSize = 100
	config.Import.Timeout = 60 * time.Second

	return &config
}

// LoadConfig loads the YAML configuration from the specified file on top of
// DefaultConfig. It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()
	err := fileClient.ReadYamlFile(filename, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every setting that would stall or crash the agent.
func (c *Config) Validate() error {
	var errs []error
	if c.Poll.Interval < MinPollInterval {
		errs = append(errs, fmt.Errorf("poll.interval must be at least %s, got %s", MinPollInterval, c.Poll.Interval))
	}
	if c.Poll.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("poll.batch_size must be positive, got %d", c.Poll.BatchSize))
	}
	if c.Poll.MaxConsecutiveErrors < 0 {
		errs = append(errs, fmt.Errorf("poll.max_consecutive_errors must not be negative, got %d", c.Poll.MaxConsecutiveErrors))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout))
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("import.timeout must be positive, got %s", c.Import.Timeout))
	}
	if c.Import.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS))
	}
	return errors.Join(errs...)
}
