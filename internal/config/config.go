package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Path         string `yaml:"path" json:"path"`                   // Optional log file, stdout only when empty
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

type Config struct {
	DatabasePath      string        `yaml:"database_path" json:"database_path"`             // Metadata database holding file/grade tables
	TablePrefix       string        `yaml:"table_prefix" json:"table_prefix"`               // Prefix applied to every table name
	FilesRoot         string        `yaml:"files_root" json:"files_root"`                   // Root directory of the blob store
	AuditDatabasePath string        `yaml:"audit_database_path" json:"audit_database_path"` // SQLite purge history, disabled when empty
	PageSize          int           `yaml:"page_size" json:"page_size"`                     // Scan page size
	Prometheus        PrometheusCfg `yaml:"prometheus" json:"prometheus"`
	Logging           LoggingCfg    `yaml:"logging" json:"logging"`
}

var (
	errNoDatabase  = errors.New("configuration must specify database_path")
	errNoFilesRoot = errors.New("configuration must specify files_root")
	errInvalidPath = errors.New("path must be absolute")
)

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.DatabasePath == "" {
		return errNoDatabase
	}
	if c.FilesRoot == "" {
		return errNoFilesRoot
	}

	root, err := cleanAbsolute(c.FilesRoot)
	if err != nil {
		return err
	}
	c.FilesRoot = root

	if c.PageSize <= 0 {
		c.PageSize = 100
	}

	// Prometheus stays disabled unless a port is configured; a batch run
	// usually finishes before anything could scrape it.

	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
