package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/diagnostics"
)

const scenarioYAML = `
unit:
  name: FooProxy
  package: app
  extends: [Foo]
tie_breakers: [name]
types:
  - name: Foo
    fields:
      - name: foo
        type: Object
        final: true
      - name: count
        type: int
        visibility: protected
  - name: FooProxy
    fields:
      - name: label
        type: String
        visibility: private
receivers:
  - name: foo
    declaring: Foo
    params: [String, Integer]
    return: String
candidates:
  - name: qux
    declaring: Delegate
    static: true
    return: String
    params:
      - type: Integer
        tag: arg(1)
      - type: String
        tag: arg(0)
  - name: baz
    declaring: Delegate
    static: true
    return: String
    params:
      - type: String
      - type: Object
accessors:
  - owner: Foo
    method: getCount
  - owner: FooProxy
    field: label
    define: true
`

func TestParseConfig_ValidScenario(t *testing.T) {
	cfg, err := ParseConfig([]byte(scenarioYAML), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Unit.Name != "FooProxy" || cfg.Unit.Package != "app" {
		t.Errorf("unit = %+v", cfg.Unit)
	}
	if cfg.Unit.Output != "fooproxy_gen.go" {
		t.Errorf("output = %q, want fooproxy_gen.go", cfg.Unit.Output)
	}
	if cfg.Termination != "return" {
		t.Errorf("termination = %q, want return", cfg.Termination)
	}
	if len(cfg.Candidates) != 2 || cfg.Candidates[0].Package != "app" {
		t.Errorf("candidates = %+v", cfg.Candidates)
	}
	if cfg.Types[0].Fields[0].Package != "app" {
		t.Errorf("field package default = %q, want app", cfg.Types[0].Fields[0].Package)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing unit name",
			yaml:    "unit: {package: app}\nreceivers: [{name: a, declaring: A}]",
			wantErr: "unit.name is required",
		},
		{
			name:    "missing unit package",
			yaml:    "unit: {name: P}\nreceivers: [{name: a, declaring: A}]",
			wantErr: "unit.package is required",
		},
		{
			name:    "nothing to bind",
			yaml:    "unit: {name: P, package: app}",
			wantErr: "no receivers defined",
		},
		{
			name:    "bad termination",
			yaml:    "unit: {name: P, package: app}\ntermination: throw\nreceivers: [{name: a, declaring: A}]",
			wantErr: "termination: unknown mode",
		},
		{
			name:    "default rule as tie breaker",
			yaml:    "unit: {name: P, package: app}\ntie_breakers: [score]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "tie_breakers[0]",
		},
		{
			name:    "unknown tie breaker",
			yaml:    "unit: {name: P, package: app}\ntie_breakers: [coin]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "unknown tie breaker",
		},
		{
			name:    "unknown disabled tag",
			yaml:    "unit: {name: P, package: app}\ndisable_tags: [super]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "disable_tags[0]",
		},
		{
			name:    "duplicate type",
			yaml:    "unit: {name: P, package: app}\ntypes: [{name: A}, {name: A}]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "types[1]: type \"A\" declared twice",
		},
		{
			name:    "field without type",
			yaml:    "unit: {name: P, package: app}\ntypes: [{name: A, fields: [{name: x}]}]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "types[0].fields[0] (A)",
		},
		{
			name:    "bad field visibility",
			yaml:    "unit: {name: P, package: app}\ntypes: [{name: A, fields: [{name: x, type: int, visibility: secret}]}]\nreceivers: [{name: a, declaring: A}]",
			wantErr: "unknown visibility",
		},
		{
			name:    "receiver without declaring type",
			yaml:    "unit: {name: P, package: app}\nreceivers: [{name: a}]",
			wantErr: "receivers[0]: name and declaring are required",
		},
		{
			name:    "duplicate receiver",
			yaml:    "unit: {name: P, package: app}\nreceivers: [{name: a, declaring: A}, {name: a, declaring: A}]",
			wantErr: "receivers[1]",
		},
		{
			name:    "malformed tag",
			yaml:    "unit: {name: P, package: app}\nreceivers: [{name: a, declaring: A}]\ncandidates: [{name: c, declaring: D, params: [{type: int, tag: 'arg(x)'}]}]",
			wantErr: "candidates[0].params[0] (c)",
		},
		{
			name:    "accessor with field and method",
			yaml:    "unit: {name: P, package: app}\nreceivers: [{name: a, declaring: A}]\naccessors: [{owner: A, field: x, method: getX}]",
			wantErr: "exactly one of field or method",
		},
		{
			name:    "accessor access with method",
			yaml:    "unit: {name: P, package: app}\nreceivers: [{name: a, declaring: A}]\naccessors: [{owner: A, method: getX, access: set}]",
			wantErr: "access is implied",
		},
		{
			name:    "invalid yaml",
			yaml:    "unit: [",
			wantErr: "parsing test.yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseConfig_MalformedTagKeepsCode(t *testing.T) {
	yaml := "unit: {name: P, package: app}\nreceivers: [{name: a, declaring: A}]\ncandidates: [{name: c, declaring: D, params: [{type: int, tag: 'field()'}]}]"
	_, err := ParseConfig([]byte(yaml), "test.yaml")
	if !errors.Is(err, diagnostics.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestModel_ScenarioA(t *testing.T) {
	cfg, err := ParseConfig([]byte(scenarioYAML), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := cfg.Model()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Rules) != 1 || m.Rules[0] != binding.RuleMethodName {
		t.Errorf("rules = %v", m.Rules)
	}
	if got := m.Candidates[1].Params[1].Type; !got.IsUniversal() {
		t.Errorf("Object resolved to %v/%s, want the universal type", got, got.Kind)
	}
	if idx, ok := m.Candidates[0].Params[0].Tag.Index(); !ok || idx != 1 {
		t.Errorf("qux tag = %v", m.Candidates[0].Params[0].Tag)
	}

	sel := m.Selector(m.Hierarchy, nil)
	plan, err := sel.Select(&m.Receivers[0], m.Candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Candidate.Name != "qux" {
		t.Errorf("winner = %s, want qux", plan.Candidate.Name)
	}
}

func TestModel_FieldAccessors(t *testing.T) {
	cfg, err := ParseConfig([]byte(scenarioYAML), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := cfg.Model()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fas, err := m.FieldAccessors(m.Hierarchy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fas) != 2 {
		t.Fatalf("accessors = %d, want 2", len(fas))
	}
	if got := fas[0].Plan(); got.Getter != "getCount" || got.Setter != "" {
		t.Errorf("bean plan = %+v", got)
	}
	if got := fas[1].Plan(); got.Getter != "getLabel" || got.Setter != "setLabel" {
		t.Errorf("explicit plan = %+v", got)
	}

	m.Accessors = append(m.Accessors, AccessorSpec{Owner: "Foo", Method: "setFoo"})
	_, err = m.FieldAccessors(m.Hierarchy)
	if !errors.Is(err, diagnostics.ErrIllegalArgument) {
		t.Fatalf("setter on final field: expected ErrIllegalArgument, got %v", err)
	}
	if !strings.Contains(err.Error(), "accessors[2] (Foo)") {
		t.Errorf("error %q does not name the accessor", err)
	}
}

func TestModel_DisabledTagsAndTermination(t *testing.T) {
	yaml := `
unit: {name: P, package: app}
termination: DROP
disable_tags: [origin]
receivers:
  - name: run
    declaring: Job
    return: String
candidates:
  - name: describe
    declaring: Helper
    static: true
    params:
      - type: String
        tag: origin
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := cfg.Model()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Termination != binding.Dropping {
		t.Errorf("termination = %s, want drop", m.Termination)
	}
	if !m.Candidates[0].Return.IsVoid() {
		t.Errorf("omitted return should be void, got %v", m.Candidates[0].Return)
	}
	_, err = m.Selector(m.Hierarchy, nil).Select(&m.Receivers[0], m.Candidates)
	if !errors.Is(err, diagnostics.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for a disabled tag, got %v", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg, err := ParseConfig([]byte(scenarioYAML), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := ParseConfig(data, "roundtrip.yaml")
	if err != nil {
		t.Fatalf("re-parse failed: %v\n%s", err, data)
	}
	if len(again.Candidates) != len(cfg.Candidates) || again.Candidates[0].Params[0].Tag != "arg(1)" {
		t.Errorf("round trip lost candidates: %+v", again.Candidates)
	}
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		// A bindsmith.yaml above the temp dir would be found; only assert
		// that it is outside our tree.
		if strings.HasPrefix(got, root) {
			t.Fatalf("found %s before creating one", got)
		}
	}

	path := filepath.Join(root, "a", "bindsmith.yml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("FindConfig = %q, want %q", got, path)
	}

	cfg, err := LoadConfig(got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputPath(filepath.Dir(got)) != filepath.Join(root, "a", "fooproxy_gen.go") {
		t.Errorf("output path = %q", cfg.OutputPath(filepath.Dir(got)))
	}
	if paths := cfg.ProtoImportPaths("/cfg"); len(paths) != 1 || paths[0] != "/cfg" {
		t.Errorf("proto import paths = %v", paths)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Fatalf("expected a reading error, got %v", err)
	}
}
