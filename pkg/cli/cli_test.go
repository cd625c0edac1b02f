package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const proxyYAML = `
unit:
  name: FooProxy
  package: app
receivers:
  - name: foo
    declaring: Foo
    params: [String]
    return: String
candidates:
  - name: echo
    declaring: Delegate
    static: true
    return: String
    params:
      - type: String
  - name: secret
    declaring: Delegate
    static: true
    ignored: true
    priority: 2
    return: String
    params:
      - type: String
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bindsmith.yaml")
	if err := os.WriteFile(path, []byte(proxyYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), append(args, "--log-level", "error"), &out)
	return out.String(), err
}

func TestExecute_Version(t *testing.T) {
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "bindsmith ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestExecute_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "--dry-run") {
		t.Errorf("help should list flags:\n%s", out)
	}
}

func TestExecute_InvalidFlags(t *testing.T) {
	if _, err := execute(t, "--nonexistent-flag"); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := execute(t, "-c", writeConfig(t), "explode")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestExecute_Generate(t *testing.T) {
	path := writeConfig(t)
	out, err := execute(t, "-c", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Generated ") {
		t.Errorf("unexpected output %q", out)
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "fooproxy_gen.go"))
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	if !strings.Contains(string(data), "return echo(arg0)") {
		t.Errorf("unexpected generated code:\n%s", data)
	}

	out, err = execute(t, "-c", path)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !strings.Contains(out, "1 cached selections") {
		t.Errorf("second run should reuse the selection: %q", out)
	}
}

func TestExecute_DryRunWritesNothing(t *testing.T) {
	path := writeConfig(t)
	out, err := execute(t, "-c", path, "--dry-run", "--no-cache")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Would generate") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "fooproxy_gen.go")); !os.IsNotExist(err) {
		t.Error("dry run must not write the generated file")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".bindsmith")); !os.IsNotExist(err) {
		t.Error("--no-cache must not create the cache")
	}
}

func TestExecute_Check(t *testing.T) {
	out, err := execute(t, "check", "-c", writeConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Foo.foo(String)String → Delegate.echo(String) String (3,1)") {
		t.Errorf("check should report the selection:\n%s", out)
	}
}

func TestExecute_List(t *testing.T) {
	out, err := execute(t, "list", "-c", writeConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Receivers (1):",
		"Candidates (2):",
		"Delegate.secret(String) String [static] [ignored] [priority:2]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestExecute_CacheClean(t *testing.T) {
	path := writeConfig(t)
	if _, err := execute(t, "-c", path); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "cache", "clean", "-c", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Cleaned ") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "-c", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "0 cached selections") {
		t.Errorf("selections should be forgotten: %q", out)
	}
}

func TestExecute_MissingConfig(t *testing.T) {
	_, err := execute(t, "-c", filepath.Join(t.TempDir(), "bindsmith.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config")
	}
}
