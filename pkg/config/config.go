// Package config loads the declarative seed configuration for the
// allocation engine: the executor roster and the ordered rule list. Files
// are YAML or TOML, chosen by extension. Validation happens here, at
// configuration time, so a bad pool reference surfaces to the operator
// before the engine ever sees a ticket.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"triage/pkg/registry"
	"triage/pkg/rules"
	"triage/pkg/strategy"
)

// File is the top-level configuration document.
type File struct {
	Executors []ExecutorConfig `yaml:"executors" toml:"executors" json:"executors"`
	Rules     []RuleConfig     `yaml:"rules" toml:"rules" json:"rules"`
}

// ExecutorConfig declares one executor. Availability defaults to available.
type ExecutorConfig struct {
	ID           string   `yaml:"id" toml:"id" json:"id"`
	Name         string   `yaml:"name" toml:"name" json:"name"`
	Skills       []string `yaml:"skills" toml:"skills" json:"skills,omitempty"`
	MaxLoad      int      `yaml:"max_load" toml:"max_load" json:"max_load"`
	Availability string   `yaml:"availability" toml:"availability" json:"availability,omitempty"`
}

// RuleConfig declares one allocation rule. Evaluation order is the file
// order; IDs are generated when omitted. Active defaults to true, condition
// fields default to the Any wildcard.
type RuleConfig struct {
	ID       string   `yaml:"id" toml:"id" json:"id,omitempty"`
	Name     string   `yaml:"name" toml:"name" json:"name"`
	Category string   `yaml:"category" toml:"category" json:"category,omitempty"`
	Priority string   `yaml:"priority" toml:"priority" json:"priority,omitempty"`
	Type     string   `yaml:"type" toml:"type" json:"type,omitempty"`
	Pool     []string `yaml:"pool" toml:"pool" json:"pool"`
	Strategy string   `yaml:"strategy" toml:"strategy" json:"strategy"`
	Active   *bool    `yaml:"active" toml:"active" json:"active,omitempty"`
}

// Load reads and parses a configuration file. The format is chosen by
// extension: .yaml/.yml or .toml.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", ext)
	}
	return &f, nil
}

// Build constructs a populated registry and rule set from the document.
// Executors are registered first so rule pools validate against them; any
// validation error aborts the build with the offending entry named.
func Build(f *File) (*registry.Registry, *rules.RuleSet, error) {
	reg := registry.NewRegistry()
	for i, ec := range f.Executors {
		ex := registry.Executor{
			ID:      ec.ID,
			Name:    ec.Name,
			Skills:  ec.Skills,
			MaxLoad: ec.MaxLoad,
		}
		if ec.Availability != "" {
			a, ok := registry.ParseAvailability(ec.Availability)
			if !ok {
				return nil, nil, fmt.Errorf("executor %d (%s): unknown availability %q", i, ec.ID, ec.Availability)
			}
			ex.Availability = a
		}
		if ex.Name == "" {
			ex.Name = ex.ID
		}
		if err := reg.Add(ex); err != nil {
			return nil, nil, fmt.Errorf("executor %d: %w", i, err)
		}
	}

	rs := rules.NewRuleSet(reg)
	for i, rc := range f.Rules {
		kind, err := strategy.ParseKind(rc.Strategy)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %d (%s): %w", i, rc.Name, err)
		}
		id := rc.ID
		if id == "" {
			id = uuid.New().String()
		}
		active := true
		if rc.Active != nil {
			active = *rc.Active
		}
		r := rules.Rule{
			ID:   id,
			Name: rc.Name,
			Conditions: rules.Conditions{
				Category: rc.Category,
				Priority: rc.Priority,
				Type:     rc.Type,
			},
			Pool:     rc.Pool,
			Strategy: kind,
			Active:   active,
		}
		if err := rs.Add(r); err != nil {
			return nil, nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return reg, rs, nil
}
