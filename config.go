package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Service struct {
		Name       string `yaml:"name"`
		Port       int    `yaml:"port"`
		HealthPort int    `yaml:"health_port"`
	} `yaml:"service"`

	Source struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"source"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
		MaxConns int    `yaml:"max_conns"`
	} `yaml:"postgres"`

	Server struct {
		Policy              string `yaml:"policy"`                // sequential | parallel
		MaxParallelRequests int    `yaml:"max_parallel_requests"` // 0 = unbounded
		GraceSeconds        int    `yaml:"grace_seconds"`
	} `yaml:"server"`

	Feed struct {
		Workers int `yaml:"workers"`
	} `yaml:"feed"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	if cfg.Service.Name == "" {
		cfg.Service.Name = "xrpl-index-service"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 51233
	}
	if cfg.Service.HealthPort == 0 {
		cfg.Service.HealthPort = 8088
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
	if cfg.Server.Policy == "" {
		cfg.Server.Policy = "parallel"
	}
	if cfg.Server.GraceSeconds == 0 {
		cfg.Server.GraceSeconds = 5
	}
	if cfg.Feed.Workers == 0 {
		cfg.Feed.Workers = 4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// GetPostgresConnectionString returns a connection string for PostgreSQL
func (c *Config) GetPostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Database,
		c.Postgres.SSLMode,
		c.Postgres.MaxConns,
	)
}
