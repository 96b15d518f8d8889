// Package config loads spendbook settings from defaults, an optional YAML
// file and SPENDBOOK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	GCS        GCSConfig        `mapstructure:"gcs"`
	Warehouse  WarehouseConfig  `mapstructure:"warehouse"`
	Notion     NotionConfig     `mapstructure:"notion"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory | sqlite
	Path   string `mapstructure:"path"`
}

// ExtractionConfig holds the remote extraction provider settings.
type ExtractionConfig struct {
	Provider          string        `mapstructure:"provider"` // openai | gemini
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	CredentialName    string        `mapstructure:"credential_name"`
	AssistantName     string        `mapstructure:"assistant_name"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	DisableAssistants bool          `mapstructure:"disable_assistants"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// WarehouseConfig points at the BigQuery table published statements land in.
type WarehouseConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

type NotionConfig struct {
	TokenName  string `mapstructure:"token_name"`
	DatabaseID string `mapstructure:"database_id"`
}

// PublishConfig holds sink settings that are not tied to a remote service.
type PublishConfig struct {
	CSVDir string `mapstructure:"csv_dir"`
}

type SecretsConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// Load reads configuration from path (or ~/.config/spendbook/config.yaml
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "spendbook")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(dataDir, "spendbook.db"))
	v.SetDefault("extraction.provider", "openai")
	v.SetDefault("extraction.base_url", "https://api.openai.com/v1")
	v.SetDefault("extraction.model", "")
	v.SetDefault("extraction.credential_name", "openai-api-key")
	v.SetDefault("extraction.assistant_name", "spendbook-statement-parser")
	v.SetDefault("extraction.poll_interval", time.Second)
	v.SetDefault("extraction.disable_assistants", false)
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("warehouse.project", "")
	v.SetDefault("warehouse.dataset", "finance")
	v.SetDefault("warehouse.table", "transactions")
	v.SetDefault("notion.token_name", "notion-token")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("publish.csv_dir", "")
	v.SetDefault("secrets.path", filepath.Join(dataDir, "keys.json"))
	v.SetDefault("secrets.passphrase", "spendbook")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("http.port", "8080")

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv("SPENDBOOK_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "spendbook"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SPENDBOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit path that does not exist is an error, a missing default is not
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	switch c.Extraction.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown extraction.provider %q", c.Extraction.Provider)
	}
	if c.Extraction.PollInterval <= 0 {
		return errors.New("config: extraction.poll_interval must be positive")
	}
	return nil
}
