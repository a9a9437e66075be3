package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MinBlockSize and MaxBlockSize bound the compression block edge
	MinBlockSize = 2
	MaxBlockSize = 32
)

// Config represents the complete application configuration
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Worker  WorkerConfig  `yaml:"worker"`
	Imaging ImagingConfig `yaml:"imaging"`
	Archive ArchiveConfig `yaml:"archive"`
	Events  EventsConfig  `yaml:"events"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SinkTimeout     time.Duration `yaml:"sink_timeout"`
}

// ImagingConfig holds upload decoding settings and transform defaults
type ImagingConfig struct {
	// Width and Height resize uploads; both zero keeps the original size
	Width          int               `yaml:"width"`
	Height         int               `yaml:"height"`
	Grayscale      bool              `yaml:"grayscale"`
	MaxUploadBytes int64             `yaml:"max_upload_bytes"`
	MaxPixels      int               `yaml:"max_pixels"`
	Edge           EdgeConfig        `yaml:"edge"`
	Compression    CompressionConfig `yaml:"compression"`
	Features       FeaturesConfig    `yaml:"features"`
}

type EdgeConfig struct {
	Enhancement float64 `yaml:"enhancement"`
	Threshold   float64 `yaml:"threshold"`
}

type CompressionConfig struct {
	TargetRatio float64 `yaml:"target_ratio"`
	BlockSize   int     `yaml:"block_size"`
}

type FeaturesConfig struct {
	Count int    `yaml:"count"`
	Seed  uint64 `yaml:"seed"`
}

// ArchiveConfig enables the PostgreSQL job history sink
type ArchiveConfig struct {
	Enabled        bool `yaml:"enabled"`
	DatabaseConfig `yaml:",inline"`
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

// EventsConfig enables publishing job events to RabbitMQ
type EventsConfig struct {
	Enabled        bool `yaml:"enabled"`
	RabbitMQConfig `yaml:",inline"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateWorker(); err != nil {
		return err
	}

	if err := c.validateImaging(); err != nil {
		return err
	}

	if c.Archive.Enabled {
		if c.Archive.Host == "" {
			return fmt.Errorf("archive database host is required")
		}
		if c.Archive.Port < MinPort || c.Archive.Port > MaxPort {
			return fmt.Errorf("invalid archive database port: %d (must be between %d and %d)", c.Archive.Port, MinPort, MaxPort)
		}
		if c.Archive.Database == "" {
			return fmt.Errorf("archive database name is required")
		}
	}

	if c.Events.Enabled {
		if c.Events.Host == "" {
			return fmt.Errorf("events rabbitmq host is required")
		}
		if c.Events.Port < MinPort || c.Events.Port > MaxPort {
			return fmt.Errorf("invalid events rabbitmq port: %d (must be between %d and %d)", c.Events.Port, MinPort, MaxPort)
		}
		if c.Events.Exchange.Name == "" {
			return fmt.Errorf("events exchange name is required")
		}
	}

	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.QueueCapacity <= 0 {
		return fmt.Errorf("worker queue_capacity must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

func (c *Config) validateImaging() error {
	img := c.Imaging

	if img.Width < 0 || img.Height < 0 || (img.Width == 0) != (img.Height == 0) {
		return fmt.Errorf("imaging width and height must both be positive or both be 0")
	}

	if img.MaxUploadBytes <= 0 {
		return fmt.Errorf("imaging max_upload_bytes must be greater than 0")
	}

	if img.MaxPixels < 0 {
		return fmt.Errorf("imaging max_pixels must not be negative")
	}

	if img.Edge.Enhancement < 0 || math.IsNaN(img.Edge.Enhancement) || math.IsInf(img.Edge.Enhancement, 0) {
		return fmt.Errorf("invalid edge enhancement: %v", img.Edge.Enhancement)
	}

	if img.Edge.Threshold < 0 || img.Edge.Threshold > 1 {
		return fmt.Errorf("invalid edge threshold: %v (must be between 0 and 1)", img.Edge.Threshold)
	}

	if !(img.Compression.TargetRatio > 0 && img.Compression.TargetRatio < 1) {
		return fmt.Errorf("invalid compression target_ratio: %v (must be between 0 and 1)", img.Compression.TargetRatio)
	}

	if img.Compression.BlockSize < MinBlockSize || img.Compression.BlockSize > MaxBlockSize {
		return fmt.Errorf("invalid compression block_size: %d (must be between %d and %d)", img.Compression.BlockSize, MinBlockSize, MaxBlockSize)
	}

	if img.Features.Count <= 0 {
		return fmt.Errorf("features count must be greater than 0")
	}

	return nil
}
