// Package config loads the pipeline configuration from a YAML file with
// environment-variable overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
type Config struct {
	// DataDir is the base directory for raw/processed/output data.
	DataDir string `yaml:"data_dir"`

	Citywalls CitywallsConfig `yaml:"citywalls"`
	OpenData  OpenDataConfig  `yaml:"opendata"`
	Combine   CombineConfig   `yaml:"combine"`
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CitywallsConfig configures the citywalls.ru scraper.
type CitywallsConfig struct {
	// IndexURL is the street index page listing every street link.
	IndexURL string `yaml:"index_url"`

	// OutputName is the dataset name used in the store and raw/ directory.
	OutputName string `yaml:"output_name"`

	// MaxExecutionTime bounds one scrape run; on expiry a checkpoint is
	// written and the remaining streets are left for the next run.
	MaxExecutionTime string `yaml:"max_execution_time"`

	// CheckpointInterval is the number of streets between checkpoint saves.
	CheckpointInterval int `yaml:"checkpoint_interval"`

	// MaxRetries is the per-page fetch attempt count.
	MaxRetries int `yaml:"max_retries"`
}

// OpenDataConfig configures the data.gov.spb.ru client.
type OpenDataConfig struct {
	// DatasetName is matched (case-insensitive substring) against the portal
	// dataset listing when the direct download fails.
	DatasetName string `yaml:"dataset_name"`

	// DirectDownloadURL points at the versioned export archive.
	DirectDownloadURL string `yaml:"direct_download_url"`

	// APIBaseURL is the portal API root.
	APIBaseURL string `yaml:"api_base_url"`

	// Token authenticates API requests. Usually set via SPB_OPEN_DATA_TOKEN.
	Token string `yaml:"token"`

	StructureID  int `yaml:"structure_id"`
	BatchSize    int `yaml:"batch_size"`
	SaveInterval int `yaml:"save_interval"`
	MaxRetries   int `yaml:"max_retries"`
}

// CombineConfig configures the merge asset.
type CombineConfig struct {
	// OutputName is the combined dataset name in the store and output/ CSV.
	OutputName string `yaml:"output_name"`

	// SaveToDB mirrors the combined dataset into the database sink.
	SaveToDB bool `yaml:"save_to_db"`

	// IfExists controls sink table handling: fail, replace or append.
	IfExists string `yaml:"if_exists"`
}

// DatabaseConfig holds the Oracle sink connection settings. Credentials are
// normally supplied through the environment (.env supported).
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	Service        string `yaml:"service"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	WalletLocation string `yaml:"wallet_location"`
	Table          string `yaml:"table"`
}

// ScheduleConfig configures periodic pipeline runs.
type ScheduleConfig struct {
	RunInterval string `yaml:"run_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration, mirroring the defaults of
// the upstream data sources.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",

		Citywalls: CitywallsConfig{
			IndexURL:           "https://www.citywalls.ru/street_index.html",
			OutputName:         "citywalls_streets_data",
			MaxExecutionTime:   "1h",
			CheckpointInterval: 5,
			MaxRetries:         3,
		},

		OpenData: OpenDataConfig{
			DatasetName:       "Технико-экономические паспорта многоквартирных домов",
			DirectDownloadURL: "https://data.gov.spb.ru/irsi/7840013199-Tehniko-ekonomicheskie-pasporta-mnogokvartirnyh-domov/versions/6/export_data/",
			APIBaseURL:        "https://data.gov.spb.ru/api/v2",
			StructureID:       207,
			BatchSize:         1000,
			SaveInterval:      5,
			MaxRetries:        3,
		},

		Combine: CombineConfig{
			OutputName: "combined_buildings_data",
			SaveToDB:   false,
			IfExists:   "replace",
		},

		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "1521",
			Service: "XE",
			Table:   "COMBINED_BUILDINGS",
		},

		Schedule: ScheduleConfig{
			RunInterval: "24h",
		},

		Logging: LoggingConfig{
			Level: "info",
			File:  "buildings_pipeline.log",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("BUILDINGS_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if token := os.Getenv("SPB_OPEN_DATA_TOKEN"); token != "" {
		c.OpenData.Token = token
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		c.Database.Port = port
	}
	if service := os.Getenv("DB_SERVICE"); service != "" {
		c.Database.Service = service
	}
	if user := os.Getenv("DB_USERNAME"); user != "" {
		c.Database.Username = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		c.Database.Password = pass
	}
	if wallet := os.Getenv("DB_WALLET_LOCATION"); wallet != "" {
		c.Database.WalletLocation = wallet
	}
}

// MaxExecutionTime returns the citywalls scrape budget as a duration.
func (c *Config) MaxExecutionTime() time.Duration {
	d, err := time.ParseDuration(c.Citywalls.MaxExecutionTime)
	if err != nil {
		return time.Hour
	}
	return d
}

// RunInterval returns the scheduler interval as a duration.
func (c *Config) RunInterval() time.Duration {
	d, err := time.ParseDuration(c.Schedule.RunInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Validate checks settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir not configured")
	}
	switch c.Combine.IfExists {
	case "fail", "replace", "append":
	default:
		return fmt.Errorf("invalid combine.if_exists: %q (valid: fail, replace, append)", c.Combine.IfExists)
	}
	if c.Combine.SaveToDB && c.Database.Username == "" {
		return fmt.Errorf("database sink enabled but DB_USERNAME not configured")
	}
	return nil
}
