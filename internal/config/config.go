package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Queues    QueuesConfig    `yaml:"queues"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StallThreshold    time.Duration `yaml:"stall_threshold"`
	ReaperInterval    time.Duration `yaml:"reaper_interval"`
	SnapshotHour      int           `yaml:"snapshot_hour"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// QueueConfig holds per-queue processing settings
type QueueConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	Retention   int           `yaml:"retention"`
}

// QueuesConfig holds the settings for the four fixed queues
type QueuesConfig struct {
	Reminders QueueConfig `yaml:"reminders"`
	Nurture   QueueConfig `yaml:"nurture"`
	Dunning   QueueConfig `yaml:"dunning"`
	Snapshots QueueConfig `yaml:"snapshots"`
}

// SMSProviderConfig holds SMS provider credentials
type SMSProviderConfig struct {
	AccountSID string        `yaml:"account_sid"`
	AuthToken  string        `yaml:"auth_token"`
	From       string        `yaml:"from"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// EmailProviderConfig holds email provider credentials
type EmailProviderConfig struct {
	APIKey   string        `yaml:"api_key"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"from_name"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ProvidersConfig holds delivery provider settings
type ProvidersConfig struct {
	SMS   SMSProviderConfig   `yaml:"sms"`
	Email EmailProviderConfig `yaml:"email"`
}

// Load reads and parses the configuration file, then applies queue defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyQueueDefaults()

	return &config, nil
}

// applyQueueDefaults fills unset queue settings. Concurrency defaults are
// reminders=5, nurture=3, dunning=2, snapshots=1; the retry envelope
// defaults to 3 total attempts with a 2s exponential backoff base.
func (c *Config) applyQueueDefaults() {
	defaults := func(q *QueueConfig, concurrency int) {
		if q.Concurrency <= 0 {
			q.Concurrency = concurrency
		}
		if q.MaxAttempts <= 0 {
			q.MaxAttempts = 3
		}
		if q.BackoffBase <= 0 {
			q.BackoffBase = 2 * time.Second
		}
		if q.Retention <= 0 {
			q.Retention = 1000
		}
	}

	defaults(&c.Queues.Reminders, 5)
	defaults(&c.Queues.Nurture, 3)
	defaults(&c.Queues.Dunning, 2)
	defaults(&c.Queues.Snapshots, 1)
}

// ValidateAPIConfig checks the configuration the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	return nil
}

// ValidateWorkerConfig checks the configuration the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	for name, q := range map[string]QueueConfig{
		"reminders": c.Queues.Reminders,
		"nurture":   c.Queues.Nurture,
		"dunning":   c.Queues.Dunning,
		"snapshots": c.Queues.Snapshots,
	} {
		if q.Concurrency <= 0 {
			return fmt.Errorf("queue %s: concurrency must be greater than 0", name)
		}
		if q.MaxAttempts <= 0 {
			return fmt.Errorf("queue %s: max_attempts must be greater than 0", name)
		}
		if q.BackoffBase <= 0 {
			return fmt.Errorf("queue %s: backoff_base must be greater than 0", name)
		}
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.StallThreshold <= c.Worker.HeartbeatInterval {
		return fmt.Errorf("worker stall_threshold must be greater than heartbeat_interval")
	}

	if c.Worker.SnapshotHour < 0 || c.Worker.SnapshotHour > 23 {
		return fmt.Errorf("worker snapshot_hour must be between 0 and 23")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}
