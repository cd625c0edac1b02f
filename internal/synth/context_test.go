package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

var (
	tFoo  = typesystem.Ref("Foo")
	tBase = typesystem.Ref("Base")
	tInt  = typesystem.Primitive("int")
)

func TestRequestAccessor_Idempotent(t *testing.T) {
	ctx := New("u1")
	target := MethodTarget(tBase, "greet", "(String)String", typesystem.String)

	first, err := ctx.RequestAccessor(target, MethodAccessor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ctx.RequestAccessor(target, MethodAccessor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("second request returned %v, want %v", second, first)
	}
	if ctx.Len() != 1 {
		t.Errorf("context holds %d members, want 1", ctx.Len())
	}
	if first.Name != "accessor_greet_u1_0" {
		t.Errorf("name = %q", first.Name)
	}
}

func TestRequestAccessor_KindIsPartOfIdentity(t *testing.T) {
	ctx := New("u1")
	f := typesystem.Field{Name: "count", Type: tInt, Owner: tFoo, Visibility: typesystem.Private}

	get, err := ctx.RequestAccessor(FieldTarget(f), FieldGetter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	set, err := ctx.RequestAccessor(FieldTarget(f), FieldSetter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if get.Handle == set.Handle || get.Name == set.Name {
		t.Fatalf("getter and setter share a member: %v / %v", get, set)
	}
	if get.Descriptor != "()int" {
		t.Errorf("getter descriptor = %q, want ()int", get.Descriptor)
	}
	if set.Descriptor != "(int)void" {
		t.Errorf("setter descriptor = %q, want (int)void", set.Descriptor)
	}
}

func TestRequestCachedField_AlwaysFresh(t *testing.T) {
	ctx := New("u1")
	a, err := ctx.RequestCachedField(typesystem.TypeHint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ctx.RequestCachedField(typesystem.TypeHint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Handle == b.Handle || a.Name == b.Name {
		t.Fatalf("cached fields were shared: %v / %v", a, b)
	}
	if !strings.HasPrefix(a.Name, CachedFieldPrefix+"_") {
		t.Errorf("name %q lacks the cached field prefix", a.Name)
	}
}

func TestNamesUniqueWithinContext(t *testing.T) {
	ctx := New("unit-7")
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		m, err := ctx.RequestCachedField(tFoo)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[m.Name] {
			t.Fatalf("duplicate name %q", m.Name)
		}
		seen[m.Name] = true
	}
	for _, name := range []string{"a", "b", "a.b"} {
		m, err := ctx.RequestAccessor(MethodTarget(tFoo, name, "()void", typesystem.Void), MethodAccessor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[m.Name] {
			t.Fatalf("duplicate name %q", m.Name)
		}
		if strings.ContainsAny(m.Name, ".-") {
			t.Errorf("name %q is not an identifier", m.Name)
		}
		seen[m.Name] = true
	}
}

func TestClosedContextRejectsRequests(t *testing.T) {
	ctx := New("u1")
	target := MethodTarget(tBase, "greet", "()void", typesystem.Void)
	if _, err := ctx.RequestAccessor(target, MethodAccessor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	members, err := ctx.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 1 || !ctx.Closed() {
		t.Fatalf("close returned %d members, closed=%v", len(members), ctx.Closed())
	}

	if _, err := ctx.RequestAccessor(target, MethodAccessor); !errors.Is(err, diagnostics.ErrIllegalState) {
		t.Errorf("accessor after close: expected ErrIllegalState, got %v", err)
	}
	if _, err := ctx.RequestCachedField(tFoo); !errors.Is(err, diagnostics.ErrIllegalState) {
		t.Errorf("cached field after close: expected ErrIllegalState, got %v", err)
	}
	if _, err := ctx.Close(); !errors.Is(err, diagnostics.ErrIllegalState) {
		t.Errorf("second close: expected ErrIllegalState, got %v", err)
	}
}

func TestMemberLookup(t *testing.T) {
	ctx := New("u1")
	m, _ := ctx.RequestCachedField(tFoo)
	got, ok := ctx.Member(m.Handle)
	if !ok || got != m {
		t.Errorf("Member(%d) = %v, %v", m.Handle, got, ok)
	}
	if _, ok := ctx.Member(NoHandle); ok {
		t.Error("NoHandle resolved to a member")
	}
	if _, ok := ctx.Member(Handle(10)); ok {
		t.Error("out of range handle resolved to a member")
	}
}

func TestInvalidRequests(t *testing.T) {
	ctx := New("u1")
	if _, err := ctx.RequestAccessor(TargetIdentity{}, MethodAccessor); !errors.Is(err, diagnostics.ErrIllegalArgument) {
		t.Errorf("zero target: expected ErrIllegalArgument, got %v", err)
	}
	if _, err := ctx.RequestAccessor(MethodTarget(tFoo, "x", "()void", typesystem.Void), CachedField); !errors.Is(err, diagnostics.ErrIllegalArgument) {
		t.Errorf("cached kind: expected ErrIllegalArgument, got %v", err)
	}
	if _, err := ctx.RequestCachedField(typesystem.Void); !errors.Is(err, diagnostics.ErrIllegalArgument) {
		t.Errorf("void slot: expected ErrIllegalArgument, got %v", err)
	}
	if ctx.Len() != 0 {
		t.Errorf("failed requests allocated %d members", ctx.Len())
	}
}
