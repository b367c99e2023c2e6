// Package config reads the YAML rule file: scan settings plus the source
// and sink rules that drive the analysis.
//
//	config:
//	  max_depth: 15
//	  scan_packages: [com.example]
//	  auth_config:
//	    blocking_annotations: [com.example.security.RequireLogin]
//	    bypass_annotations: [com.example.security.Anonymous]
//	sources:
//	  - type: method
//	    signature: "<javax.servlet.ServletRequest: java.lang.String getParameter(java.lang.String)>"
//	sinks:
//	  - type: method
//	    vuln_type: SQLi
//	    category: sqli
//	    signature: "<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>"
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/picatz/taintflow/rules"
	"github.com/picatz/taintflow/score"
)

// ErrUnknownRuleType is returned for rules whose type is neither "method"
// nor "annotation".
var ErrUnknownRuleType = errors.New("unknown rule type")

//go:embed default_rules.yaml
var defaultRules []byte

// Config is a parsed rule file.
type Config struct {
	Scan    ScanConfig         `yaml:"config"`
	Sources []rules.SourceRule `yaml:"sources"`
	Sinks   []rules.SinkRule   `yaml:"sinks"`
}

// ScanConfig holds analysis settings.
type ScanConfig struct {
	// MaxDepth bounds the call stack of the worklist engine; zero means
	// the engine default.
	MaxDepth int `yaml:"max_depth"`

	// ScanPackages restricts which packages are treated as application
	// code. Empty means everything that was loaded.
	ScanPackages []string `yaml:"scan_packages"`

	Auth score.AuthConfig `yaml:"auth_config"`
}

// Default returns the built-in rule set.
func Default() *Config {
	cfg, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in rules: %v", err))
	}
	return cfg
}

// WriteDefault writes the built-in rule file to w, as a starting point for
// a project specific one.
func WriteDefault(w io.Writer) error {
	_, err := w.Write(defaultRules)
	return err
}

// Load reads and parses the rule file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a rule file. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks rule types and signatures.
func (c *Config) Validate() error {
	var errs []error
	for i, r := range c.Sources {
		if err := checkRule(r.Type, r.Signature, r.Value); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
		}
	}
	for i, r := range c.Sinks {
		if err := checkRule(r.Type, r.Signature, ""); err != nil {
			errs = append(errs, fmt.Errorf("sinks[%d]: %w", i, err))
		}
	}
	if c.Scan.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must not be negative, got %d", c.Scan.MaxDepth))
	}
	return errors.Join(errs...)
}

func checkRule(typ, sig, value string) error {
	switch strings.ToLower(typ) {
	case "", rules.TypeMethod:
		if sig == "" {
			return errors.New("method rule without signature")
		}
	case rules.TypeAnnotation:
		if sig == "" && value == "" {
			return errors.New("annotation rule without value")
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownRuleType, typ)
	}
	return nil
}

// Index builds the rule index.
func (c *Config) Index() *rules.Index {
	return rules.NewIndex(c.Sources, c.Sinks)
}

// Merge returns a config holding the rules of c followed by those of
// other. Scan settings of other win when set.
func (c *Config) Merge(other *Config) *Config {
	out := &Config{
		Scan:    c.Scan,
		Sources: append(append([]rules.SourceRule(nil), c.Sources...), other.Sources...),
		Sinks:   append(append([]rules.SinkRule(nil), c.Sinks...), other.Sinks...),
	}
	if other.Scan.MaxDepth != 0 {
		out.Scan.MaxDepth = other.Scan.MaxDepth
	}
	if len(other.Scan.ScanPackages) > 0 {
		out.Scan.ScanPackages = other.Scan.ScanPackages
	}
	if len(other.Scan.Auth.BlockingAnnotations) > 0 || len(other.Scan.Auth.BypassAnnotations) > 0 {
		out.Scan.Auth = other.Scan.Auth
	}
	return out
}
