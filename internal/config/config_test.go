package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, "imaging-service", cfg.App.Name)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, 4, cfg.Worker.Concurrency)
				assert.Equal(t, 100, cfg.Worker.QueueCapacity)
				assert.Equal(t, 30*time.Second, cfg.Worker.JobTimeout)
				assert.Equal(t, 128, cfg.Imaging.Width)
				assert.True(t, cfg.Imaging.Grayscale)
				assert.InDelta(t, 1.2, cfg.Imaging.Edge.Enhancement, 1e-12)
				assert.InDelta(t, 0.75, cfg.Imaging.Compression.TargetRatio, 1e-12)
				assert.Equal(t, uint64(42), cfg.Imaging.Features.Seed)

				// Inlined connection settings
				assert.True(t, cfg.Archive.Enabled)
				assert.Equal(t, "localhost", cfg.Archive.Host)
				assert.Equal(t, 5432, cfg.Archive.Port)
				assert.Equal(t, "imaging_db", cfg.Archive.Database)
				assert.Equal(t, "imaging_events", cfg.Events.Exchange.Name)
				assert.Equal(t, "jobs.finished", cfg.Events.RoutingKey)
				assert.Equal(t, 100*time.Millisecond, cfg.Events.Publish.RetryInterval)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Worker: WorkerConfig{
			Concurrency:     4,
			QueueCapacity:   100,
			JobTimeout:      30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Imaging: ImagingConfig{
			MaxUploadBytes: 1 << 20,
			Edge:           EdgeConfig{Enhancement: 1.2},
			Compression:    CompressionConfig{TargetRatio: 0.75, BlockSize: 8},
			Features:       FeaturesConfig{Count: 256, Seed: 42},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid server port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "invalid server port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency"},
		{name: "zero queue capacity", mutate: func(c *Config) { c.Worker.QueueCapacity = 0 }, errString: "worker queue_capacity"},
		{name: "zero job timeout", mutate: func(c *Config) { c.Worker.JobTimeout = 0 }, errString: "worker job_timeout"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "worker shutdown_timeout"},
		{name: "only width set", mutate: func(c *Config) { c.Imaging.Width = 128 }, errString: "width and height"},
		{name: "resize to square", mutate: func(c *Config) { c.Imaging.Width, c.Imaging.Height = 128, 128 }},
		{name: "zero upload limit", mutate: func(c *Config) { c.Imaging.MaxUploadBytes = 0 }, errString: "max_upload_bytes"},
		{name: "negative enhancement", mutate: func(c *Config) { c.Imaging.Edge.Enhancement = -1 }, errString: "edge enhancement"},
		{name: "infinite enhancement", mutate: func(c *Config) { c.Imaging.Edge.Enhancement = math.Inf(1) }, errString: "edge enhancement"},
		{name: "threshold above one", mutate: func(c *Config) { c.Imaging.Edge.Threshold = 1.5 }, errString: "edge threshold"},
		{name: "target ratio of one", mutate: func(c *Config) { c.Imaging.Compression.TargetRatio = 1 }, errString: "target_ratio"},
		{name: "target ratio of zero", mutate: func(c *Config) { c.Imaging.Compression.TargetRatio = 0 }, errString: "target_ratio"},
		{name: "block size too small", mutate: func(c *Config) { c.Imaging.Compression.BlockSize = 1 }, errString: "block_size"},
		{name: "block size too large", mutate: func(c *Config) { c.Imaging.Compression.BlockSize = 64 }, errString: "block_size"},
		{name: "zero feature count", mutate: func(c *Config) { c.Imaging.Features.Count = 0 }, errString: "features count"},
		{name: "disabled archive is not checked", mutate: func(c *Config) { c.Archive.Host = "" }},
		{
			name: "archive without host",
			mutate: func(c *Config) {
				c.Archive = ArchiveConfig{Enabled: true, DatabaseConfig: DatabaseConfig{Port: 5432, Database: "imaging_db"}}
			},
			errString: "archive database host is required",
		},
		{
			name: "archive without database name",
			mutate: func(c *Config) {
				c.Archive = ArchiveConfig{Enabled: true, DatabaseConfig: DatabaseConfig{Host: "localhost", Port: 5432}}
			},
			errString: "archive database name is required",
		},
		{
			name: "events without exchange",
			mutate: func(c *Config) {
				c.Events = EventsConfig{Enabled: true, RabbitMQConfig: RabbitMQConfig{Host: "localhost", Port: 5672}}
			},
			errString: "events exchange name is required",
		},
		{
			name: "events with bad port",
			mutate: func(c *Config) {
				c.Events = EventsConfig{Enabled: true, RabbitMQConfig: RabbitMQConfig{Host: "localhost", Port: -1}}
			},
			errString: "invalid events rabbitmq port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.NoError(t, err)
	})

	tests := []struct {
		name      string
		filePath  string
		errString string
	}{
		{name: "load config with invalid port", filePath: "testdata/invalid_port.yaml", errString: "invalid server port"},
		{name: "load config with missing database", filePath: "testdata/missing_database.yaml", errString: "archive database name is required"},
		{name: "load config with invalid ratio", filePath: "testdata/invalid_ratio.yaml", errString: "target_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestDeploymentConfigIsValid(t *testing.T) {
	cfg, err := Load("../../configs/imaging-service/config.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Archive.Enabled)
	assert.False(t, cfg.Events.Enabled)
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
