package main

import (
	"fmt"
	"os"
	"time"

	"github.com/asaavedra/printscan/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config contiene la configuración global del agente
type Config struct {
	// SNMP
	SNMP struct {
		Backend   string `yaml:"backend"` // native | netsnmp
		Community string `yaml:"community"`
		Version   string `yaml:"version"`
		Port      uint16 `yaml:"port"`
		TimeoutMs int    `yaml:"timeout_ms"`
		Retries   int    `yaml:"retries"`
	} `yaml:"snmp"`

	// Scan
	Scan struct {
		MaxHosts      int  `yaml:"max_hosts"`
		UsePing       bool `yaml:"use_ping"`
		PingTimeoutMs int  `yaml:"ping_timeout_ms"`
	} `yaml:"scan"`

	// Revalidation
	Revalidation struct {
		Subnet        string `yaml:"subnet"`
		MaxConcurrent int    `yaml:"max_concurrent"`
		InactiveDays  int    `yaml:"inactive_days"`
	} `yaml:"revalidation"`

	// Store
	Store struct {
		Driver string `yaml:"driver"` // sqlite | memory
		Path   string `yaml:"path"`
	} `yaml:"store"`

	// KV
	KV struct {
		Driver      string `yaml:"driver"` // nats | memory
		NatsURL     string `yaml:"nats_url"`
		ScanBucket  string `yaml:"scan_bucket"`
		GuardBucket string `yaml:"guard_bucket"`
	} `yaml:"kv"`

	// HTTP
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`

	// Workers
	Workers struct {
		Count       int `yaml:"count"`
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"workers"`

	// Logging
	Logging logger.Config `yaml:"logging"`
}

// LoadConfig carga la configuración desde config.yaml sobre los valores por
// defecto
func LoadConfig(filePath string) (Config, error) {
	cfg := DefaultConfig()

	// Leer archivo
	data, err := os.ReadFile(filePath)
	if err != nil {
		return cfg, fmt.Errorf("error leyendo %s: %w", filePath, err)
	}

	// Parsear YAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parseando YAML: %w", err)
	}

	return cfg, nil
}

// DefaultConfig retorna la configuración por defecto
func DefaultConfig() Config {
	var cfg Config
	cfg.SNMP.Backend = "native"
	cfg.SNMP.Community = "public"
	cfg.SNMP.Version = "2c"
	cfg.SNMP.Port = 161
	cfg.SNMP.TimeoutMs = 2000
	cfg.SNMP.Retries = 1
	cfg.Scan.MaxHosts = 1024
	cfg.Scan.PingTimeoutMs = 500
	cfg.Revalidation.InactiveDays = 7
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "printscan.db"
	cfg.KV.Driver = "memory"
	cfg.KV.NatsURL = "nats://127.0.0.1:4222"
	cfg.KV.ScanBucket = "printscan-scans"
	cfg.KV.GuardBucket = "printscan-guards"
	cfg.HTTP.Listen = ":8080"
	cfg.Workers.Count = 4
	cfg.Workers.MaxAttempts = 30
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

// SNMPTimeout timeout por consulta
func (c Config) SNMPTimeout() time.Duration {
	return time.Duration(c.SNMP.TimeoutMs) * time.Millisecond
}

// StaleThreshold antigüedad para mark-stale
func (c Config) StaleThreshold() time.Duration {
	return time.Duration(c.Revalidation.InactiveDays) * 24 * time.Hour
}
