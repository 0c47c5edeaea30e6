// Package config loads and validates the YAML run configuration: data
// source locations, column mappings, rule sets, and output settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
)

// Source describes one tabular data source on disk.
type Source struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter,omitempty"`
	Encoding  string `yaml:"encoding,omitempty"`
}

// Assist configures the optional model-assisted features. The API key
// itself never lives in the file; only the environment variable name
// that carries it.
type Assist struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// RunConfig is the complete configuration for one run.
type RunConfig struct {
	Project         string                     `yaml:"project"`
	OutputDir       string                     `yaml:"output_dir,omitempty"`
	Workers         int                        `yaml:"workers,omitempty"`
	Source1         Source                     `yaml:"source1"`
	Source2         Source                     `yaml:"source2"`
	ValidationData  *Source                    `yaml:"validation_data,omitempty"`
	Mappings        rules.Mappings             `yaml:"column_mappings,omitempty"`
	ReconRules      []rules.ReconciliationRule `yaml:"reconciliation_rules,omitempty"`
	ValidationRules []rules.ValidationRule     `yaml:"validation_rules,omitempty"`
	Assist          Assist                     `yaml:"assist,omitempty"`

	// baseDir anchors relative paths to the config file's directory.
	baseDir string
}

// Defaults applied after unmarshaling.
const (
	DefaultDelimiter = ","
	DefaultEncoding  = "utf-8"
	DefaultOutputDir = "./output"
	DefaultModel     = "gemini-2.0-flash"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
)

// Load reads, parses, and validates a run configuration file. Relative
// source and output paths resolve against the file's directory.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read config", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapIO("resolve config path", path, err)
	}
	cfg.baseDir = filepath.Dir(abs)
	return cfg, nil
}

// Parse unmarshals and validates a run configuration document.
func Parse(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *RunConfig) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	for _, src := range []*Source{&c.Source1, &c.Source2, c.ValidationData} {
		if src == nil {
			continue
		}
		if src.Delimiter == "" {
			src.Delimiter = DefaultDelimiter
		}
		if src.Encoding == "" {
			src.Encoding = DefaultEncoding
		}
	}
	if c.Assist.Model == "" {
		c.Assist.Model = DefaultModel
	}
	if c.Assist.APIKeyEnv == "" {
		c.Assist.APIKeyEnv = DefaultAPIKeyEnv
	}
}

// Validate rejects configurations that cannot produce a meaningful run:
// no rules at all, missing sources for the rules present, malformed
// rules, or duplicate rule ids.
func (c *RunConfig) Validate() error {
	if c.Project == "" {
		return errors.NewConfigError("config", "project name is required", nil)
	}
	if len(c.ReconRules) == 0 && len(c.ValidationRules) == 0 {
		return errors.NewConfigError("config", "no rules configured", nil)
	}

	if len(c.ReconRules) > 0 {
		if c.Source1.Path == "" || c.Source2.Path == "" {
			return errors.NewConfigError("config",
				"reconciliation rules require source1 and source2 paths", nil)
		}
	}
	if len(c.ValidationRules) > 0 {
		target := c.ValidationData
		if target == nil {
			target = &c.Source1
		}
		if target.Path == "" {
			return errors.NewConfigError("config",
				"validation rules require a data source", nil)
		}
	}

	reconIDs := make([]string, 0, len(c.ReconRules))
	for i := range c.ReconRules {
		if err := c.ReconRules[i].Validate(); err != nil {
			return err
		}
		reconIDs = append(reconIDs, c.ReconRules[i].ID)
	}
	if err := rules.UniqueIDs(reconIDs); err != nil {
		return err
	}

	validationIDs := make([]string, 0, len(c.ValidationRules))
	for i := range c.ValidationRules {
		r := &c.ValidationRules[i]
		r.Severity = rules.ParseSeverity(string(r.Severity))
		if err := r.Validate(); err != nil {
			return err
		}
		validationIDs = append(validationIDs, r.ID)
	}
	if err := rules.UniqueIDs(validationIDs); err != nil {
		return err
	}

	for _, m := range c.Mappings {
		if strings.TrimSpace(m.Source1) == "" || strings.TrimSpace(m.Source2) == "" {
			return errors.NewConfigError("config",
				fmt.Sprintf("column mapping %q/%q is incomplete", m.Source1, m.Source2), nil)
		}
	}
	return nil
}

// SourceByName returns the configured source with the given name.
func (c *RunConfig) SourceByName(name string) (Source, error) {
	for _, src := range []*Source{&c.Source1, &c.Source2, c.ValidationData} {
		if src != nil && src.Name == name {
			return *src, nil
		}
	}
	return Source{}, errors.NewConfigError("config",
		fmt.Sprintf("no configured source named %q", name), nil)
}

// ResolvePath anchors a possibly relative path to the config file's
// directory. Paths from Parse (no file) resolve against the working
// directory.
func (c *RunConfig) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}
