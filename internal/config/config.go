// Package config loads narrow's configuration: a YAML file, then NARROW_*
// environment overrides, then validation against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Search   Search   `yaml:"search" json:"search"`
	Log      Log      `yaml:"log" json:"log"`
	Metrics  Metrics  `yaml:"metrics" json:"metrics"`
}

// Database selects the store. DSN is a file path for sqlite and a lib/pq
// connection string for postgres.
type Database struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// Search selects the full-text backend and its text-search configuration.
type Search struct {
	Backend string `yaml:"backend" json:"backend"`
	Config  string `yaml:"config" json:"config"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type Metrics struct {
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: Database{Driver: "sqlite", DSN: "narrow.db"},
		Search:   Search{Backend: "stemmed", Config: "english"},
		Log:      Log{Level: "info", Format: "text"},
		Metrics:  Metrics{Namespace: "narrow"},
	}
}

// envOverrides maps environment variables to the field they replace.
var envOverrides = []struct {
	name string
	set  func(*Config, string)
}{
	{"NARROW_DB_DRIVER", func(c *Config, v string) { c.Database.Driver = v }},
	{"NARROW_DB_DSN", func(c *Config, v string) { c.Database.DSN = v }},
	{"NARROW_SEARCH_BACKEND", func(c *Config, v string) { c.Search.Backend = v }},
	{"NARROW_SEARCH_CONFIG", func(c *Config, v string) { c.Search.Config = v }},
	{"NARROW_LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
	{"NARROW_LOG_FORMAT", func(c *Config, v string) { c.Log.Format = v }},
	{"NARROW_METRICS_NAMESPACE", func(c *Config, v string) { c.Metrics.Namespace = v }},
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	for _, o := range envOverrides {
		if v, ok := lookup(o.name); ok {
			o.set(&cfg, strings.TrimSpace(v))
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ValidationError lists every schema violation of a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var problems []string
	for _, e := range cueerrors.Errors(err) {
		problems = append(problems, e.Error())
	}
	if len(problems) == 0 {
		problems = append(problems, err.Error())
	}
	return &ValidationError{Problems: problems}
}
