package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/bindsmith/internal/cache"
	"github.com/funvibe/bindsmith/internal/diagnostics"
)

const proxyYAML = `
unit:
  name: FooProxy
  package: app
  extends: [Foo]
types:
  - name: Foo
    fields:
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

const userProto = `syntax = "proto3";
package demo.v1;
option go_package = "example.com/app/demov1;demov1";

message GetUserRequest { string user_id = 1; }
message User { string name = 1; }

service UserService {
  rpc GetUser(GetUserRequest) returns (User);
  rpc WatchUsers(GetUserRequest) returns (stream User);
}
`

const protoYAML = `
unit:
  name: UserProxy
  package: example.com/app
sources:
  proto: [user.proto]
candidates:
  - name: FetchUser
    declaring: example.com/app/users.Store
    package: example.com/app/users
    static: true
    params:
      - type: "*example.com/app/demov1.GetUserRequest"
    return: "*example.com/app/demov1.User"
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "bindsmith.yaml")
}

func run(t *testing.T, configPath string, store *cache.Cache) *PipelineContext {
	t.Helper()
	ctx := NewContext(context.Background(), configPath, nil)
	return Default(store, nil).Run(ctx)
}

func TestPipeline_ConfigOnly(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": proxyYAML})

	ctx := run(t, path, nil)
	if ctx.Failed() {
		t.Fatalf("pipeline failed: %v", ctx.Err())
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "fooproxy_gen.go"))
	if err != nil {
		t.Fatalf("generated file not written: %v", err)
	}
	src := string(data)
	for _, want := range []string{
		"package app",
		"func (u *FooProxy) foo(arg0 string, arg1 int) string {",
		"return qux(arg1, arg0)",
		"func (u *FooProxy) getCount() int {",
		"return u.selfFoo.count",
		"func (u *FooProxy) getLabel() string {",
		"func (u *FooProxy) setLabel(v string) {",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated code missing %q\n%s", want, src)
		}
	}
	if ctx.Stats.Bound != 1 {
		t.Errorf("expected 1 bound receiver, got %d", ctx.Stats.Bound)
	}
}

func TestPipeline_ProtoReceivers(t *testing.T) {
	path := writeProject(t, map[string]string{
		"bindsmith.yaml": protoYAML,
		"user.proto":     userProto,
	})

	ctx := run(t, path, nil)
	if ctx.Failed() {
		t.Fatalf("pipeline failed: %v", ctx.Err())
	}
	if len(ctx.Receivers) != 1 {
		t.Fatalf("expected the unary rpc only, got %d receivers", len(ctx.Receivers))
	}
	src := ctx.File.Content
	for _, want := range []string{
		`"example.com/app/demov1"`,
		`"example.com/app/users"`,
		"func (u *UserProxy) GetUser(arg0 *demov1.GetUserRequest) *demov1.User {",
		"return users.FetchUser(arg0)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated code missing %q\n%s", want, src)
		}
	}
}

func TestPipeline_CacheHit(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": proxyYAML})
	store, err := cache.OpenProject(context.Background(), filepath.Dir(path))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()

	first := run(t, path, store)
	if first.Failed() {
		t.Fatalf("first run failed: %v", first.Err())
	}
	if first.Stats.CacheMisses != 1 || first.Stats.CacheHits != 0 {
		t.Errorf("first run: expected 1 miss, got %+v", first.Stats)
	}

	second := run(t, path, store)
	if second.Failed() {
		t.Fatalf("second run failed: %v", second.Err())
	}
	if second.Stats.CacheHits != 1 || second.Stats.CacheMisses != 0 {
		t.Errorf("second run: expected 1 hit, got %+v", second.Stats)
	}
	if first.File.Content != second.File.Content {
		t.Error("cached selection must generate the same code")
	}
}

func TestPipeline_PrunesStaleSelections(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": proxyYAML})
	store, err := cache.OpenProject(context.Background(), filepath.Dir(path))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()

	if first := run(t, path, store); first.Failed() {
		t.Fatalf("first run failed: %v", first.Err())
	}
	if err := os.WriteFile(path, []byte(proxyYAML+"\n# edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := run(t, path, store)
	if second.Failed() {
		t.Fatalf("second run failed: %v", second.Err())
	}
	if second.Stats.CacheMisses != 1 {
		t.Errorf("edited config must miss the cache, got %+v", second.Stats)
	}
	n, err := store.Len(context.Background())
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the current selection to remain, got %d", n)
	}
}

const hierarchyYAML = `
unit:
  name: Proxy
  package: app
receivers:
  - name: handle
    declaring: Proxy
    params: [Leaf]
candidates:
  - name: onBase
    declaring: Delegate
    static: true
    params:
      - type: Base
  - name: onSub
    declaring: Delegate
    static: true
    params:
      - type: Sub
`

// declareSupers plays the part of a source stage that adds supertype edges
// to the type model.
type declareSupers [][2]string

func (d declareSupers) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	h := ctx.Model.Hierarchy
	for _, edge := range d {
		h.Declare(h.Named(edge[0]), h.Named(edge[1]))
	}
	return ctx
}

func bindWith(t *testing.T, path string, store *cache.Cache, supers declareSupers) (*PipelineContext, string) {
	t.Helper()
	ctx := NewContext(context.Background(), path, nil)
	ctx = New(&ConfigProcessor{}, supers, &BindProcessor{Cache: store}).Run(ctx)
	if ctx.Failed() {
		t.Fatalf("bind failed: %v", ctx.Err())
	}
	out, err := ctx.Unit.Close()
	if err != nil {
		t.Fatalf("closing unit: %v", err)
	}
	return ctx, out.Delegations[0].Target.Name
}

func TestPipeline_TypeModelChangeReselects(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": hierarchyYAML})
	store, err := cache.OpenProject(context.Background(), filepath.Dir(path))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()

	_, first := bindWith(t, path, store, declareSupers{{"Leaf", "Sub"}, {"Sub", "Base"}})
	if first != "onSub" {
		t.Fatalf("first winner = %s, want onSub", first)
	}

	second, winner := bindWith(t, path, store, declareSupers{{"Leaf", "Base"}, {"Base", "Sub"}})
	if winner != "onBase" {
		t.Errorf("winner after the hierarchy changed = %s, want onBase", winner)
	}
	if second.Stats.CacheHits != 0 || second.Stats.CacheMisses != 1 {
		t.Errorf("a changed type model must miss the cache, got %+v", second.Stats)
	}
}

func TestPipeline_StaleCachedWinnerIsReplaced(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": hierarchyYAML})
	store, err := cache.OpenProject(context.Background(), filepath.Dir(path))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer store.Close()
	supers := declareSupers{{"Leaf", "Sub"}, {"Sub", "Base"}}

	first, _ := bindWith(t, path, store, supers)
	key := selectionKey(first)
	recv := first.Receivers[0].String()
	var onBase string
	for i := range first.Candidates {
		if first.Candidates[i].Name == "onBase" {
			onBase = first.Candidates[i].String()
		}
	}
	if err := store.Store(context.Background(), key, cache.Selection{Receiver: recv, Candidate: onBase, Score: "(2,0)"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	second, winner := bindWith(t, path, store, supers)
	if winner != "onSub" {
		t.Errorf("winner = %s, want onSub over the remembered onBase", winner)
	}
	if second.Stats.CacheMisses != 1 {
		t.Errorf("a superseded selection must count as a miss, got %+v", second.Stats)
	}
	sel, ok, err := store.Lookup(context.Background(), key, recv)
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if !strings.Contains(sel.Candidate, "onSub") {
		t.Errorf("cache still names %s", sel.Candidate)
	}
}

func TestPipeline_CollectsBindErrors(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": `
unit:
  name: Proxy
  package: app
types:
  - name: Animal
  - name: Dog
    supers: [Animal]
receivers:
  - name: feed
    declaring: Proxy
    params: [Dog]
  - name: walk
    declaring: Proxy
    params: [String]
candidates:
  - name: a
    declaring: Helpers
    static: true
    params: [{type: Animal}]
  - name: b
    declaring: Helpers
    static: true
    params: [{type: Animal}]
`})

	ctx := run(t, path, nil)
	if len(ctx.Errors) != 2 {
		t.Fatalf("expected one error per failing receiver, got %v", ctx.Errors)
	}
	if !errors.Is(ctx.Errors[0], diagnostics.ErrAmbiguousCandidate) {
		t.Errorf("feed: expected ambiguity, got %v", ctx.Errors[0])
	}
	if !errors.Is(ctx.Errors[1], diagnostics.ErrNoCandidate) {
		t.Errorf("walk: expected no candidate, got %v", ctx.Errors[1])
	}
	if ctx.File != nil {
		t.Error("nothing should be emitted after bind errors")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "proxy_gen.go")); !os.IsNotExist(err) {
		t.Errorf("no file should be written, stat returned %v", err)
	}
}

func TestPipeline_DryRun(t *testing.T) {
	path := writeProject(t, map[string]string{"bindsmith.yaml": proxyYAML})

	ctx := NewContext(context.Background(), path, nil)
	ctx.DryRun = true
	ctx = Default(nil, nil).Run(ctx)
	if ctx.Failed() {
		t.Fatalf("pipeline failed: %v", ctx.Err())
	}
	if ctx.File == nil || ctx.File.Content == "" {
		t.Fatal("dry run should still render the file")
	}
	if _, err := os.Stat(ctx.File.Filename); !os.IsNotExist(err) {
		t.Errorf("dry run must not write %s", ctx.File.Filename)
	}
}

func TestPipeline_MissingConfig(t *testing.T) {
	ctx := run(t, filepath.Join(t.TempDir(), "bindsmith.yaml"), nil)
	if !ctx.Failed() {
		t.Fatal("expected an error for a missing config")
	}
	if len(ctx.Errors) != 1 {
		t.Errorf("later stages should skip, got %v", ctx.Errors)
	}
}
