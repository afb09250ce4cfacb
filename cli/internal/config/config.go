// Package config resolves the settings of a dbre run from .dbre.yaml, a
// database.properties file, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/magiconair/properties"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/dbre/internal/debug"
	"github.com/satishbabariya/dbre/introspect"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/reconcile"
	"github.com/satishbabariya/dbre/snapshot"
)

var AppFs = afero.NewOsFs()

const (
	// PropertiesFile holds connection properties as database.* keys.
	PropertiesFile = "database.properties"
	// DefaultManifest lists the types generated so far.
	DefaultManifest = ".dbre/managed.yaml"
)

// ErrNoSchema is returned when no schema was configured or chosen.
var ErrNoSchema = errors.New("no schema configured (use --schema or set schema in .dbre.yaml)")

// Config holds the resolved settings.
type Config struct {
	Schema           string
	Namespace        string
	ProjectNamespace string
	SnapshotPath     string
	ManifestPath     string
	Include          []string
	Exclude          []string
	Options          model.Options
	Policy           reconcile.Policy
	Connection       introspect.Properties
	// ConnectionSource names where the connection came from.
	ConnectionSource string
	// Files are the inputs whose changes call for a refresh.
	Files []string
}

// Load reads the configuration. configFile, when set, replaces the search
// for .dbre.yaml.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetEnvPrefix("DBRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("snapshot", snapshot.DefaultPath)
	v.SetDefault("manifest", DefaultManifest)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(".dbre")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "dbre"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Schema:           v.GetString("schema"),
		Namespace:        v.GetString("namespace"),
		ProjectNamespace: v.GetString("project_namespace"),
		SnapshotPath:     v.GetString("snapshot"),
		ManifestPath:     v.GetString("manifest"),
		Include:          v.GetStringSlice("include"),
		Exclude:          v.GetStringSlice("exclude"),
		Options: model.Options{
			IncludeNonPortableAttributes: v.GetBool("options.include_non_portable_attributes"),
			DisableVersionFields:         v.GetBool("options.disable_version_fields"),
			DisableGeneratedIdentifiers:  v.GetBool("options.disable_generated_identifiers"),
		},
		Policy: reconcile.Policy{
			ActiveRecord:      v.GetBool("policy.active_record"),
			Repository:        v.GetBool("policy.repository"),
			Service:           v.GetBool("policy.service"),
			TestAutomatically: v.GetBool("policy.test_automatically"),
		},
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.Files = append(cfg.Files, used)
	}

	props, found, err := LoadProperties(PropertiesFile)
	if err != nil {
		return nil, err
	}
	switch {
	case found:
		cfg.Connection = props
		cfg.ConnectionSource = PropertiesFile
		cfg.Files = append(cfg.Files, PropertiesFile)
	case v.GetString("connection.url") != "":
		cfg.Connection = introspect.Properties{
			DriverName: v.GetString("connection.driver"),
			URL:        v.GetString("connection.url"),
			Username:   v.GetString("connection.username"),
			Password:   v.GetString("connection.password"),
		}
		cfg.ConnectionSource = "connection block of " + v.ConfigFileUsed()
	case os.Getenv("DATABASE_URL") != "":
		cfg.Connection = introspect.Properties{URL: os.Getenv("DATABASE_URL")}
		cfg.ConnectionSource = "DATABASE_URL"
	}

	debug.Debug("configuration loaded", "config", v.ConfigFileUsed(), "connection", cfg.ConnectionSource, "schema", cfg.Schema)
	return cfg, nil
}

// LoadProperties reads connection properties from a properties file. found
// is false when the file does not exist or sets no database.url. Keys match
// case-insensitively and ${...} references are taken literally.
func LoadProperties(path string) (props introspect.Properties, found bool, err error) {
	data, err := afero.ReadFile(AppFs, path)
	if errors.Is(err, os.ErrNotExist) {
		return props, false, nil
	}
	if err != nil {
		return props, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return props, false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	get := func(key string) string {
		if v, ok := p.Get(key); ok {
			return strings.TrimSpace(v)
		}
		for _, k := range p.Keys() {
			if strings.EqualFold(k, key) {
				v, _ := p.Get(k)
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	props = introspect.Properties{
		DriverName: get("database.driverClassName"),
		URL:        get("database.url"),
		Username:   get("database.username"),
		Password:   get("database.password"),
	}
	return props, props.URL != "", nil
}

// Validate fails fast when a run cannot start.
func (c *Config) Validate() error {
	if c.Connection.URL == "" {
		return fmt.Errorf("%w: set database.url in %s, a connection block in .dbre.yaml or DATABASE_URL",
			introspect.ErrNoConnection, PropertiesFile)
	}
	return nil
}

// SchemaRef returns the configured schema, or nil when none is set.
func (c *Config) SchemaRef() *model.Schema {
	if c.Schema == "" {
		return nil
	}
	s := model.NewSchema(c.Schema)
	return &s
}

// Filter returns the table filter of the run.
func (c *Config) Filter() introspect.Filter {
	return introspect.Filter{Include: c.Include, Exclude: c.Exclude}
}

// loadDotEnv applies .env and then .env.local. Variables already set in
// the environment win over .env; .env.local overrides both.
func loadDotEnv() error {
	for _, f := range []struct {
		path      string
		overwrite bool
	}{{".env", false}, {".env.local", true}} {
		file, err := AppFs.Open(f.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		vars, err := godotenv.Parse(file)
		file.Close()
		if err != nil {
			debug.Warn("ignoring unreadable env file", "path", f.path, "error", err)
			continue
		}
		for k, val := range vars {
			if _, set := os.LookupEnv(k); set && !f.overwrite {
				continue
			}
			if err := os.Setenv(k, val); err != nil {
				return err
			}
		}
	}
	return nil
}
