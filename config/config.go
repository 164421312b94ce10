// Package config holds the settings shared by the dashboard and the command line
// tools. A Config is built once at startup and passed explicitly to the components
// that need it.
//
// Settings are layered in this order, later sources overriding earlier ones:
// built-in defaults, an optional YAML file, an optional .env file and finally
// ELASTICITY_* environment variables.
package config

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ezoic/elasticity/evaluate"
	"github.com/ezoic/elasticity/loader"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ELASTICITY_"

// Config is the complete application configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Filters  FilterConfig   `yaml:"filters"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// AppConfig is the page text of the dashboard.
type AppConfig struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	SidebarTitle string `yaml:"sidebar_title"`
	PlotWidth    int    `yaml:"plot_width"`
	PlotHeight   int    `yaml:"plot_height"`
}

// DataConfig locates the evaluation inputs.
type DataConfig struct {
	Features    string `yaml:"features"`
	Labels      string `yaml:"labels"`
	LabelColumn string `yaml:"label_column"`
	Processed   string `yaml:"processed"`
	RawTrain    string `yaml:"raw_train"`
	RawStore    string `yaml:"raw_store"`
	// Remotes maps a local path to the URL it is fetched from when absent.
	Remotes map[string]string `yaml:"remotes"`
}

// ModelConfig describes the trained model.
type ModelConfig struct {
	Path     string   `yaml:"path"`
	Features []string `yaml:"features"`
	Target   string   `yaml:"target"`
}

// FilterConfig names the filterable feature columns.
type FilterConfig struct {
	StoreColumn string `yaml:"store_column"`
	MonthColumn string `yaml:"month_column"`
}

// DatabaseConfig locates the DuckDB database.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	Table       string `yaml:"table"`
	StoreColumn string `yaml:"store_column"`
	PriceColumn string `yaml:"price_column"`
	SalesColumn string `yaml:"sales_column"`
}

// ServerConfig configures the HTTP dashboard.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	TopFeatures int    `yaml:"top_features"`
	Cache       bool   `yaml:"cache"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Title:        "Elasticity Risk Exposure Dashboard",
			Description:  "Interactive tool to analyze price elasticity of demand and its effect on revenue",
			SidebarTitle: "Elasticity Settings",
			PlotWidth:    800,
			PlotHeight:   500,
		},
		Data: DataConfig{
			Features:  "data/processed/X_test.csv",
			Labels:    "data/processed/y_test.csv",
			Processed: "data/processed/processed_data.csv",
			RawTrain:  "data/raw/train.csv",
			RawStore:  "data/raw/store.csv",
		},
		Model: ModelConfig{
			Path:     "models/random_forest_elasticity.json",
			Features: []string{"Price", "DayOfWeek", "Store", "Promotion", "Holiday"},
			Target:   "Revenue",
		},
		Filters: FilterConfig{StoreColumn: "Store", MonthColumn: "Month"},
		Database: DatabaseConfig{
			Path:        "db/elasticity.duckdb",
			Table:       store.DefaultTable,
			StoreColumn: "Store",
			PriceColumn: "Price",
			SalesColumn: "Revenue",
		},
		Server: ServerConfig{Addr: ":8501", TopFeatures: 10, Cache: true},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadOptions select the sources Load reads.
type LoadOptions struct {
	// File is a YAML file. It must exist when set.
	File string
	// EnvFile is a dotenv file. A missing EnvFile is ignored.
	EnvFile string
	// Lookup reads environment variables. nil means os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Load builds and validates a Config from the given sources.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFoundError("config.Load", opts.File)
			}
			return nil, errors.Wrapf(err, "read %s", opts.File)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewDeserializationError("config.Load", opts.File, err)
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			lookup = layered(lookup, dotenv)
		case os.IsNotExist(err):
		default:
			return nil, errors.NewDeserializationError("config.Load", opts.EnvFile, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// layered prefers the process environment over values read from a dotenv file.
func layered(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("TITLE", &c.App.Title)
	str("FEATURES_PATH", &c.Data.Features)
	str("LABELS_PATH", &c.Data.Labels)
	str("LABEL_COLUMN", &c.Data.LabelColumn)
	str("PROCESSED_PATH", &c.Data.Processed)
	str("MODEL_PATH", &c.Model.Path)
	str("TARGET", &c.Model.Target)
	str("STORE_COLUMN", &c.Filters.StoreColumn)
	str("MONTH_COLUMN", &c.Filters.MonthColumn)
	str("DB_PATH", &c.Database.Path)
	str("DB_TABLE", &c.Database.Table)
	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup(EnvPrefix + "FEATURES_USED"); ok && v != "" {
		var names []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				names = append(names, f)
			}
		}
		c.Model.Features = names
	}
	if v, ok := lookup(EnvPrefix + "TOP_FEATURES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"TOP_FEATURES", "must be an integer", v)
		}
		c.Server.TopFeatures = n
	}
	for _, name := range []string{"CACHE", "LOG_JSON"} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+name, "must be a boolean", v)
		}
		if name == "CACHE" {
			c.Server.Cache = b
		} else {
			c.Log.JSON = b
		}
	}

	// A *_URL variable registers a remote for the matching local path.
	for name, path := range map[string]string{
		"MODEL_URL":    c.Model.Path,
		"FEATURES_URL": c.Data.Features,
		"LABELS_URL":   c.Data.Labels,
	} {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			if c.Data.Remotes == nil {
				c.Data.Remotes = make(map[string]string)
			}
			c.Data.Remotes[path] = v
		}
	}
	return nil
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"data.features", c.Data.Features},
		{"data.labels", c.Data.Labels},
		{"model.path", c.Model.Path},
		{"model.target", c.Model.Target},
	} {
		if strings.TrimSpace(f.value) == "" {
			return errors.NewValidationError(f.name, "must not be empty", f.value)
		}
	}
	if len(c.Model.Features) == 0 {
		return errors.NewValidationError("model.features", "must list at least one feature", c.Model.Features)
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.NewValidationError("server.addr", "must be host:port", c.Server.Addr)
	}
	if c.Server.TopFeatures <= 0 {
		return errors.NewValidationError("server.top_features", "must be positive", c.Server.TopFeatures)
	}
	if c.App.PlotWidth <= 0 || c.App.PlotHeight <= 0 {
		return errors.NewValidationError("app.plot_size", "must be positive", []int{c.App.PlotWidth, c.App.PlotHeight})
	}
	if !logLevels[strings.ToLower(c.Log.Level)] {
		return errors.NewValidationError("log.level", "unknown level", c.Log.Level)
	}
	return nil
}

// LoaderPaths returns the evaluation inputs.
func (c *Config) LoaderPaths() loader.Paths {
	return loader.Paths{
		Features:    c.Data.Features,
		Labels:      c.Data.Labels,
		Model:       c.Model.Path,
		LabelColumn: c.Data.LabelColumn,
	}
}

// Source returns the loader source for the configured remotes. Without remotes it
// reads local files only. An S3 client is created only when an s3:// remote exists.
func (c *Config) Source(ctx context.Context) (loader.Source, error) {
	if len(c.Data.Remotes) == 0 {
		return loader.FileSource{}, nil
	}
	h := &loader.HTTPFetcher{}
	fetchers := map[string]loader.Fetcher{"http": h, "https": h}
	for _, remote := range c.Data.Remotes {
		if strings.HasPrefix(remote, "s3://") {
			s3, err := loader.NewS3Fetcher(ctx)
			if err != nil {
				return nil, err
			}
			fetchers["s3"] = s3
			break
		}
	}
	return loader.NewSource(c.Data.Remotes, fetchers), nil
}

// EvaluateOptions returns the evaluator settings.
func (c *Config) EvaluateOptions() evaluate.Options {
	return evaluate.Options{StoreColumn: c.Filters.StoreColumn, MonthColumn: c.Filters.MonthColumn}
}

// StoreOptions returns the settings of the persistent database.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Path:    c.Database.Path,
		Persist: true,
		Table:   c.Database.Table,
		Columns: store.SalesColumns{
			Store: c.Database.StoreColumn,
			Price: c.Database.PriceColumn,
			Sales: c.Database.SalesColumn,
		},
	}
}

// SetupLogging configures the process logger.
func (c *Config) SetupLogging() {
	if c.Log.JSON {
		log.SetupJSONLogger(os.Stderr, c.Log.Level)
		return
	}
	log.SetupLogger(c.Log.Level)
}
