package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trafficsnap/internal/model"
)

// Config holds all runtime configuration for a trafficsnap run.
type Config struct {
	DSN            string
	FilePath       string
	BlobRoot       string
	APIKey         string
	CatalogBaseURL string
	LogFormat      string // "text" or "json"
	OwnerID        string
	ChannelID      string
	VideoID        string
	Version        int32
	DryRun         bool
	Force          bool

	// ColumnKeywords adds extra header keywords per logical column, for
	// localized or renamed exports. Merged over the built-in table.
	ColumnKeywords map[string][]string

	// Mapping is an explicit column-index mapping supplied instead of
	// header auto-detection.
	Mapping map[string]int
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	ColumnKeywords map[string][]string `yaml:"column_keywords"`
	Mapping        map[string]int      `yaml:"mapping"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.ColumnKeywords = yc.ColumnKeywords
	c.Mapping = yc.Mapping
	return c.validateColumns()
}

// validateColumns checks that every column named in the keyword overrides
// and the explicit mapping is a known logical column.
func (c *Config) validateColumns() error {
	for name := range c.ColumnKeywords {
		if _, ok := model.ColumnByName(name); !ok {
			return fmt.Errorf("unknown column %q in column_keywords", name)
		}
	}
	for name := range c.Mapping {
		if _, ok := model.ColumnByName(name); !ok {
			return fmt.Errorf("unknown column %q in mapping", name)
		}
	}
	return nil
}

// KeywordTable returns the header keyword table with any configured
// overrides appended after the built-in keywords.
func (c *Config) KeywordTable() map[model.Column][]string {
	table := make(map[model.Column][]string, len(model.ColumnKeywords))
	for col, kws := range model.ColumnKeywords {
		table[col] = append([]string{}, kws...)
	}
	for name, kws := range c.ColumnKeywords {
		col, _ := model.ColumnByName(name)
		table[col] = append(table[col], kws...)
	}
	return table
}

// UserMapping builds the explicit column mapping from config, or nil when
// none was supplied. Completeness is checked at parse time.
func (c *Config) UserMapping() *model.ColumnMapping {
	if len(c.Mapping) == 0 {
		return nil
	}
	m := model.NewColumnMapping()
	for name, idx := range c.Mapping {
		col, _ := model.ColumnByName(name)
		m.SetIndex(col, idx)
	}
	return m
}

// Ref returns the snapshot reference for the configured owner, channel,
// and video.
func (c *Config) Ref() model.SnapshotRef {
	return model.SnapshotRef{OwnerID: c.OwnerID, ChannelID: c.ChannelID, VideoID: c.VideoID}
}

// Validate checks required file fields and returns an error if the config
// is invalid.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	return nil
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// ValidateCatalog checks the fields a reconciliation run needs. The API
// key is only required when the run will actually call the catalog.
func (c *Config) ValidateCatalog() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	if c.VideoID == "" {
		return fmt.Errorf("--video is required")
	}
	if c.APIKey == "" && !c.DryRun {
		return fmt.Errorf("--api-key or CATALOG_API_KEY is required")
	}
	return nil
}
