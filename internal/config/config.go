// Package config reads bindsmith.yaml, the description of one generation
// unit: the type model, the receiver operations to implement, the delegate
// candidates and the field accessors to generate.
//
// The type model may also be filled from Go packages and .proto services
// named under sources; those are merged by the pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/bindsmith/internal/accessor"
	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// FileNames are the config file names FindConfig looks for, in order.
var FileNames = []string{"bindsmith.yaml", "bindsmith.yml"}

// Config represents the top-level bindsmith.yaml configuration.
type Config struct {
	// Unit describes the generated type and where it is written.
	Unit UnitSpec `yaml:"unit"`

	// Termination is "return" (default) or "drop".
	Termination string `yaml:"termination,omitempty"`

	// TieBreakers enables the optional ambiguity rules: priority, name and
	// length.
	TieBreakers []string `yaml:"tie_breakers,omitempty"`

	// Disable lists tags whose binder is removed from the registry.
	Disable []string `yaml:"disable_tags,omitempty"`

	// Sources names Go packages and proto files that contribute receivers,
	// candidates and types.
	Sources Sources `yaml:"sources,omitempty"`

	Types      []TypeSpec      `yaml:"types,omitempty"`
	Receivers  []ReceiverSpec  `yaml:"receivers,omitempty"`
	Candidates []CandidateSpec `yaml:"candidates,omitempty"`
	Accessors  []AccessorSpec  `yaml:"accessors,omitempty"`
}

// UnitSpec names the generation unit.
type UnitSpec struct {
	// Name is the generated Go type name (e.g. "FooProxy").
	Name string `yaml:"name"`

	// Package is the Go package the unit is emitted into. It is also the
	// scope used for visibility decisions.
	Package string `yaml:"package"`

	// Extends lists the supertypes of the generated type. Protected
	// members of these types are visible to the unit.
	Extends []string `yaml:"extends,omitempty"`

	// Output is the generated file path, relative to the config file.
	// Defaults to <lowercase name>_gen.go.
	Output string `yaml:"output,omitempty"`
}

// Sources lists external inputs of the type model.
type Sources struct {
	// Go is a list of go/packages patterns (e.g. "./service/...").
	Go []string `yaml:"go,omitempty"`

	// Proto is a list of .proto files whose services become receivers.
	Proto []string `yaml:"proto,omitempty"`

	// ProtoImportPaths are searched for proto imports. Defaults to the
	// config directory.
	ProtoImportPaths []string `yaml:"proto_import_paths,omitempty"`
}

// TypeSpec declares a type, its direct supertypes and fields.
type TypeSpec struct {
	Name   string      `yaml:"name"`
	Supers []string    `yaml:"supers,omitempty"`
	Fields []FieldSpec `yaml:"fields,omitempty"`
}

// FieldSpec declares one field of a TypeSpec.
type FieldSpec struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Visibility string `yaml:"visibility,omitempty"`
	// Package defaults to the unit package.
	Package string `yaml:"package,omitempty"`
	Final   bool   `yaml:"final,omitempty"`
	Static  bool   `yaml:"static,omitempty"`
}

// ReceiverSpec is one receiver operation to implement.
type ReceiverSpec struct {
	Name      string   `yaml:"name"`
	Declaring string   `yaml:"declaring"`
	Params    []string `yaml:"params,omitempty"`
	// Return defaults to void.
	Return string `yaml:"return,omitempty"`
	Static bool   `yaml:"static,omitempty"`
}

// CandidateSpec is one delegate candidate.
type CandidateSpec struct {
	Name       string      `yaml:"name"`
	Declaring  string      `yaml:"declaring"`
	Package    string      `yaml:"package,omitempty"`
	Visibility string      `yaml:"visibility,omitempty"`
	Params     []ParamSpec `yaml:"params,omitempty"`
	Return     string      `yaml:"return,omitempty"`
	Static     bool        `yaml:"static,omitempty"`
	Special    bool        `yaml:"special,omitempty"`
	Ignored    bool        `yaml:"ignored,omitempty"`
	Priority   int         `yaml:"priority,omitempty"`
}

// ParamSpec is one delegate parameter: a type and an optional tag such as
// "arg(1)", "this", "origin", "field(name)" or "all(slack)".
type ParamSpec struct {
	Type string `yaml:"type"`
	Tag  string `yaml:"tag,omitempty"`
}

// AccessorSpec requests a getter/setter pair for a field of Owner, either by
// explicit field name or derived from a bean style method name.
type AccessorSpec struct {
	Owner  string `yaml:"owner"`
	Field  string `yaml:"field,omitempty"`
	Method string `yaml:"method,omitempty"`
	Access string `yaml:"access,omitempty"`
	// Define adds the field to the generated type instead of reusing one.
	Define bool `yaml:"define,omitempty"`
}

// LoadConfig reads and parses a bindsmith.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses bindsmith.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// Marshal renders the configuration back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// FindConfig searches for bindsmith.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error when none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Unit.Name == "" {
		return fmt.Errorf("%s: unit.name is required", path)
	}
	if c.Unit.Package == "" {
		return fmt.Errorf("%s: unit.package is required", path)
	}
	if len(c.Receivers) == 0 && len(c.Sources.Go) == 0 && len(c.Sources.Proto) == 0 {
		return fmt.Errorf("%s: no receivers defined and no sources to read them from", path)
	}

	switch strings.ToLower(c.Termination) {
	case "", "return", "drop":
	default:
		return fmt.Errorf("%s: termination: unknown mode %q (want return or drop)", path, c.Termination)
	}

	for i, name := range c.TieBreakers {
		r, err := binding.ParseRule(name)
		if err != nil {
			return fmt.Errorf("%s: tie_breakers[%d]: %w", path, i, err)
		}
		if r != binding.RulePriority && r != binding.RuleMethodName && r != binding.RuleParameterCount {
			return fmt.Errorf("%s: tie_breakers[%d]: %q is always enabled", path, i, name)
		}
	}

	for i, tag := range c.Disable {
		if _, err := parseTagKind(tag); err != nil {
			return fmt.Errorf("%s: disable_tags[%d]: %w", path, i, err)
		}
	}

	seenTypes := make(map[string]bool)
	for i, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("%s: types[%d]: name is required", path, i)
		}
		if seenTypes[t.Name] {
			return fmt.Errorf("%s: types[%d]: type %q declared twice", path, i, t.Name)
		}
		seenTypes[t.Name] = true
		seenFields := make(map[string]bool)
		for j, f := range t.Fields {
			if f.Name == "" || f.Type == "" {
				return fmt.Errorf("%s: types[%d].fields[%d] (%s): name and type are required", path, i, j, t.Name)
			}
			if seenFields[f.Name] {
				return fmt.Errorf("%s: types[%d].fields[%d] (%s): field %q declared twice", path, i, j, t.Name, f.Name)
			}
			seenFields[f.Name] = true
			if _, err := typesystem.ParseVisibility(f.Visibility); err != nil {
				return fmt.Errorf("%s: types[%d].fields[%d] (%s): %w", path, i, j, t.Name, err)
			}
		}
	}

	seenReceivers := make(map[string]bool)
	for i, r := range c.Receivers {
		if r.Name == "" || r.Declaring == "" {
			return fmt.Errorf("%s: receivers[%d]: name and declaring are required", path, i)
		}
		key := r.Declaring + "." + r.Name + "(" + strings.Join(r.Params, ",") + ")"
		if seenReceivers[key] {
			return fmt.Errorf("%s: receivers[%d]: %s declared twice", path, i, key)
		}
		seenReceivers[key] = true
	}

	for i, cand := range c.Candidates {
		if cand.Name == "" || cand.Declaring == "" {
			return fmt.Errorf("%s: candidates[%d]: name and declaring are required", path, i)
		}
		if _, err := typesystem.ParseVisibility(cand.Visibility); err != nil {
			return fmt.Errorf("%s: candidates[%d] (%s): %w", path, i, cand.Name, err)
		}
		for j, p := range cand.Params {
			if p.Type == "" {
				return fmt.Errorf("%s: candidates[%d].params[%d] (%s): type is required", path, i, j, cand.Name)
			}
			if _, err := binding.ParseTag(p.Tag); err != nil {
				return fmt.Errorf("%s: candidates[%d].params[%d] (%s): %w", path, i, j, cand.Name, err)
			}
		}
	}

	for i, a := range c.Accessors {
		if a.Owner == "" {
			return fmt.Errorf("%s: accessors[%d]: owner is required", path, i)
		}
		if (a.Field == "") == (a.Method == "") {
			return fmt.Errorf("%s: accessors[%d] (%s): exactly one of field or method is required", path, i, a.Owner)
		}
		if a.Method != "" && a.Access != "" {
			return fmt.Errorf("%s: accessors[%d] (%s): access is implied by method %q", path, i, a.Owner, a.Method)
		}
		if _, err := accessor.ParseAccess(a.Access); err != nil {
			return fmt.Errorf("%s: accessors[%d] (%s): %w", path, i, a.Owner, err)
		}
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Termination == "" {
		c.Termination = "return"
	}
	c.Termination = strings.ToLower(c.Termination)
	if c.Unit.Output == "" {
		c.Unit.Output = strings.ToLower(c.Unit.Name) + "_gen.go"
	}
	for i := range c.Types {
		for j := range c.Types[i].Fields {
			if c.Types[i].Fields[j].Package == "" {
				c.Types[i].Fields[j].Package = c.Unit.Package
			}
		}
	}
	for i := range c.Candidates {
		if c.Candidates[i].Package == "" {
			c.Candidates[i].Package = c.Unit.Package
		}
	}
}

// OutputPath resolves the generated file path against configDir.
func (c *Config) OutputPath(configDir string) string {
	if filepath.IsAbs(c.Unit.Output) {
		return c.Unit.Output
	}
	return filepath.Join(configDir, c.Unit.Output)
}

// ProtoImportPaths returns the proto search path, defaulting to configDir.
func (c *Config) ProtoImportPaths(configDir string) []string {
	if len(c.Sources.ProtoImportPaths) == 0 {
		return []string{configDir}
	}
	paths := make([]string, len(c.Sources.ProtoImportPaths))
	for i, p := range c.Sources.ProtoImportPaths {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(configDir, p)
		}
	}
	return paths
}

func parseTagKind(s string) (binding.TagKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arg", "argument":
		return binding.TagArgument, nil
	case "this":
		return binding.TagThis, nil
	case "origin":
		return binding.TagOrigin, nil
	case "field":
		return binding.TagField, nil
	case "all", "allarguments":
		return binding.TagAllArguments, nil
	case "none", "untagged":
		return binding.TagNone, nil
	}
	return 0, fmt.Errorf("unknown tag kind %q", s)
}
