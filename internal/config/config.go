package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/menu-analytics/internal/table"
)

// Store kinds accepted in StoreConfig.Kind.
const (
	StoreNone     = "none"
	StoreSQLite   = "sqlite"
	StoreBigQuery = "bigquery"
)

// ValidStores lists the supported persistence backends.
var ValidStores = []string{StoreNone, StoreSQLite, StoreBigQuery}

// ErrNoSources is returned by Validate when no input source is configured.
var ErrNoSources = errors.New("no sources configured")

// Config is the full pipeline configuration.
type Config struct {
	Sources     []SourceConfig   `yaml:"sources"`
	NullValues  []string         `yaml:"null_values"`
	Identifier  IdentifierConfig `yaml:"identifier"`
	Normalize   NormalizeConfig  `yaml:"normalize"`
	Fill        FillConfig       `yaml:"fill"`
	Brand       BrandConfig      `yaml:"brand"`
	ServingSize ServingConfig    `yaml:"serving_size"`
	Analysis    AnalysisConfig   `yaml:"analysis"`
	Store       StoreConfig      `yaml:"store"`
	GCS         GCSConfig        `yaml:"gcs"`
	Notion      NotionConfig     `yaml:"notion"`
	LogLevel    string           `yaml:"log_level"`
}

// SourceConfig describes one input CSV.
type SourceConfig struct {
	Name string `yaml:"name"`
	// Path is a local file path or a gs://bucket/object URI.
	Path string `yaml:"path"`
	// Rename maps normalized column names to canonical ones.
	Rename map[string]string `yaml:"rename,omitempty"`
	// Brand, when set, tags every row of this source with a literal brand.
	Brand string `yaml:"brand,omitempty"`
}

// IdentifierConfig names the item identifier column.
type IdentifierConfig struct {
	Column     string `yaml:"column"`
	Positional string `yaml:"positional"`
	// OnDuplicate is "coalesce" or "fail".
	OnDuplicate string `yaml:"on_duplicate"`
}

// NormalizeConfig selects the column-name cleaning passes.
type NormalizeConfig struct {
	ReplaceDots bool `yaml:"replace_dots"`
	Strict      bool `yaml:"strict"`
}

// FillConfig lists per-column defaults for missing values.
type FillConfig struct {
	Columns map[string]any `yaml:"columns"`
	// Numeric, when set, fills every remaining numeric null with this value.
	Numeric *float64 `yaml:"numeric,omitempty"`
}

// BrandRule is one ordered pattern to label mapping.
type BrandRule struct {
	Pattern string `yaml:"pattern"`
	Label   string `yaml:"label"`
}

// BrandConfig configures brand derivation.
type BrandConfig struct {
	Column  string      `yaml:"column"`
	Unknown string      `yaml:"unknown"`
	Rules   []BrandRule `yaml:"rules"`
}

// ServingConfig configures the Serving_Size_Proxy column. The proxy is a rough
// approximation of Calories / Divisor and is off unless Enabled.
type ServingConfig struct {
	Enabled bool    `yaml:"enabled"`
	Column  string  `yaml:"column"`
	Divisor float64 `yaml:"divisor"`
}

// AnalysisConfig holds the comparison thresholds.
type AnalysisConfig struct {
	CaloriesColumn  string   `yaml:"calories_column"`
	ProteinColumn   string   `yaml:"protein_column"`
	SugarColumn     string   `yaml:"sugar_column"`
	SodiumColumn    string   `yaml:"sodium_column"`
	Nutrients       []string `yaml:"nutrients"`
	HealthyCalories float64  `yaml:"healthy_calories"`
	ProteinMin      float64  `yaml:"protein_min"`
	SugarMax        float64  `yaml:"sugar_max"`
	SodiumMax       float64  `yaml:"sodium_max"`
	TopN            int      `yaml:"top_n"`
}

// StoreConfig selects where the unified table is persisted.
type StoreConfig struct {
	Kind       string `yaml:"kind"`
	Table      string `yaml:"table"`
	SQLitePath string `yaml:"sqlite_path"`
	Project    string `yaml:"project"`
	Dataset    string `yaml:"dataset"`
}

// GCSConfig holds the bucket used for report uploads.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// NotionConfig holds the brand summary database.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// Default returns the configuration of the original menu comparison: three
// Starbucks files and the McDonald's menu, merged on "Beverage".
func Default() *Config {
	mcdRename := map[string]string{
		"Item":          "Beverage",
		"Total_Fat":     "Total_Fat_g",
		"Saturated_Fat": "Saturated_Fat_g",
		"Sugars":        "Sugars_g",
		"Sodium":        "Sodium_mg",
		"Protein":       "Protein_g",
	}
	return &Config{
		Sources: []SourceConfig{
			{Name: "starbucks_drinks_expanded", Path: "data/starbucks_drinkMenu_expanded.csv", Brand: "Starbucks"},
			{Name: "starbucks_nutrition_drinks", Path: "data/starbucks_menu_nutrition_drinks.csv", Brand: "Starbucks"},
			{Name: "starbucks_nutrition_food", Path: "data/starbucks_menu_nutrition_food.csv", Brand: "Starbucks"},
			{Name: "mcdonalds_menu", Path: "data/menu.csv", Brand: "McDonald's", Rename: mcdRename},
		},
		NullValues: []string{"-"},
		Identifier: IdentifierConfig{
			Column:      "Beverage",
			Positional:  table.PositionalColumn,
			OnDuplicate: "coalesce",
		},
		Normalize: NormalizeConfig{ReplaceDots: true},
		Fill: FillConfig{
			Columns: map[string]any{
				"Calories":        0,
				"Total_Fat_g":     0,
				"Saturated_Fat_g": 0,
				"Sugars_g":        0,
				"Sodium_mg":       0,
				"Protein_g":       0,
			},
		},
		Brand: BrandConfig{
			Column:  "Brand",
			Unknown: table.UnknownBrand,
			Rules: []BrandRule{
				{Pattern: "starbucks", Label: "Starbucks"},
				{Pattern: "mcdonald", Label: "McDonald's"},
			},
		},
		ServingSize: ServingConfig{Enabled: true, Column: "Serving_Size_Proxy", Divisor: 10},
		Analysis: AnalysisConfig{
			CaloriesColumn:  "Calories",
			ProteinColumn:   "Protein_g",
			SugarColumn:     "Sugars_g",
			SodiumColumn:    "Sodium_mg",
			Nutrients:       []string{"Calories", "Total_Fat_g", "Saturated_Fat_g", "Sugars_g", "Sodium_mg", "Protein_g"},
			HealthyCalories: 300,
			ProteinMin:      10,
			SugarMax:        50,
			SodiumMax:       1000,
			TopN:            5,
		},
		Store: StoreConfig{
			Kind:       StoreNone,
			Table:      "menu_merged_table",
			SQLitePath: "menu.db",
			Dataset:    "menu_analytics",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
// An empty path yields the defaults with overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes YAML into cfg. A fill column map present in data replaces
// the default map instead of merging with it.
func Parse(data []byte, cfg *Config) error {
	var raw struct {
		Fill struct {
			Columns map[string]any `yaml:"columns"`
		} `yaml:"fill"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw.Fill.Columns != nil {
		cfg.Fill.Columns = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

// resolvePaths makes relative local source paths relative to the config file.
func (c *Config) resolvePaths(dir string) {
	for i, s := range c.Sources {
		if s.Path == "" || strings.HasPrefix(s.Path, "gs://") || filepath.IsAbs(s.Path) {
			continue
		}
		c.Sources[i].Path = filepath.Join(dir, s.Path)
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		c.Store.Project = v
	}
	if v := os.Getenv("BQ_DATASET"); v != "" {
		c.Store.Dataset = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		c.GCS.Bucket = v
	}
	if v := os.Getenv("NOTION_TOKEN"); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID"); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// DuplicatePolicy returns the parsed identifier duplicate policy.
func (c *Config) DuplicatePolicy() (table.DuplicatePolicy, error) {
	return table.ParseDuplicatePolicy(c.Identifier.OnDuplicate)
}

// BrandClassifier compiles the configured brand rules.
func (c *Config) BrandClassifier() (*table.BrandClassifier, error) {
	rules := make([]table.BrandRule, len(c.Brand.Rules))
	for i, r := range c.Brand.Rules {
		rules[i] = table.BrandRule{Pattern: r.Pattern, Label: r.Label}
	}
	return table.CompileBrandRules(rules, c.Brand.Unknown)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("source %q: path is required", s.Name)
		}
	}

	if c.Identifier.Column == "" {
		return fmt.Errorf("identifier column is required")
	}
	if _, err := c.DuplicatePolicy(); err != nil {
		return fmt.Errorf("identifier: %w", err)
	}
	if c.Brand.Column == "" {
		return fmt.Errorf("brand column is required")
	}
	if _, err := c.BrandClassifier(); err != nil {
		return fmt.Errorf("brand rules: %w", err)
	}
	if c.ServingSize.Enabled && c.ServingSize.Divisor == 0 {
		return fmt.Errorf("serving_size divisor must be non-zero")
	}

	valid := false
	for _, k := range ValidStores {
		if c.Store.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid store kind: %s (valid: %v)", c.Store.Kind, ValidStores)
	}
	if c.Store.Kind != StoreNone && c.Store.Table == "" {
		return fmt.Errorf("store table name is required")
	}
	if c.Store.Kind == StoreBigQuery && (c.Store.Project == "" || c.Store.Dataset == "") {
		return fmt.Errorf("bigquery store requires project and dataset (set GCP_PROJECT and BQ_DATASET)")
	}
	if c.Store.Kind == StoreSQLite && c.Store.SQLitePath == "" {
		return fmt.Errorf("sqlite store requires sqlite_path (or set SQLITE_PATH)")
	}
	return nil
}
