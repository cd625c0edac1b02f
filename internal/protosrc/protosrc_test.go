package protosrc

import (
	"testing"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

const userProto = `syntax = "proto3";

package demo.v1;

option go_package = "example.com/app/demov1;demov1";

message GetUserRequest {
  string user_id = 1;
}

message User {
  message Address {
    string city = 1;
  }
  enum Role {
    ROLE_UNSPECIFIED = 0;
    ROLE_ADMIN = 1;
  }
  string name = 1;
  repeated string tags = 2;
  int64 created = 3;
  Address address = 4;
  map<string, int32> scores = 5;
  Role role = 6;
  bytes avatar = 7;
}

service UserService {
  rpc GetUser(GetUserRequest) returns (User);
  rpc WatchUsers(GetUserRequest) returns (stream User);
}
`

func load(t *testing.T, files map[string]string, names ...string) (*Result, *typesystem.Hierarchy) {
	t.Helper()
	h := typesystem.NewHierarchy()
	res, err := NewLoader(nil, WithFiles(files)).Load(h, names...)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return res, h
}

func TestLoad_UnaryMethodsBecomeReceivers(t *testing.T) {
	res, _ := load(t, map[string]string{"user.proto": userProto}, "user.proto")

	if len(res.Receivers) != 1 {
		t.Fatalf("expected 1 receiver (streaming skipped), got %d", len(res.Receivers))
	}
	r := res.Receivers[0]
	want := "example.com/app/demov1.UserServiceServer.GetUser(*example.com/app/demov1.GetUserRequest)*example.com/app/demov1.User"
	if got := r.String(); got != want {
		t.Errorf("receiver:\n got %s\nwant %s", got, want)
	}
}

func TestLoad_MessagesAndFields(t *testing.T) {
	res, h := load(t, map[string]string{"user.proto": userProto}, "user.proto")

	names := make(map[string]bool)
	for _, m := range res.Messages {
		names[m.Name] = true
	}
	for _, want := range []string{
		"example.com/app/demov1.GetUserRequest",
		"example.com/app/demov1.User",
		"example.com/app/demov1.User_Address",
	} {
		if !names[want] {
			t.Errorf("message %s not declared (got %v)", want, names)
		}
	}
	if len(res.Messages) != 3 {
		t.Errorf("map entries must not be declared, got %d messages", len(res.Messages))
	}

	user := typesystem.Ref("example.com/app/demov1.User")
	tests := []struct {
		field string
		typ   string
	}{
		{"Name", "String"},
		{"Tags", "[]String"},
		{"Created", "long"},
		{"Address", "*example.com/app/demov1.User_Address"},
		{"Scores", "Object"},
		{"Role", "example.com/app/demov1.User_Role"},
		{"Avatar", "[]byte"},
	}
	for _, tt := range tests {
		f, ok := h.LookupField(user, tt.field)
		if !ok {
			t.Errorf("field %s not declared", tt.field)
			continue
		}
		if f.Type.Name != tt.typ {
			t.Errorf("field %s: got type %s, want %s", tt.field, f.Type, tt.typ)
		}
		if f.Visibility != typesystem.Public || f.Package != "example.com/app/demov1" {
			t.Errorf("field %s: unexpected visibility %s in %q", tt.field, f.Visibility, f.Package)
		}
	}

	f, _ := h.LookupField(typesystem.Ref("example.com/app/demov1.GetUserRequest"), "UserId")
	if f.Type.Name != "String" {
		t.Errorf("user_id should become UserId of type String, got %+v", f)
	}
}

func TestLoad_WithoutGoPackage(t *testing.T) {
	src := `syntax = "proto3";
package ping;
message Ping { int32 seq = 1; }
service Pinger { rpc Send(Ping) returns (Ping); }
`
	res, h := load(t, map[string]string{"ping.proto": src}, "ping.proto")
	if len(res.Receivers) != 1 {
		t.Fatalf("expected 1 receiver, got %d", len(res.Receivers))
	}
	if got := res.Receivers[0].String(); got != "PingerServer.Send(*Ping)*Ping" {
		t.Errorf("unexpected receiver %s", got)
	}
	f, ok := h.LookupField(typesystem.Ref("Ping"), "Seq")
	if !ok || f.Type.Name != "int32" {
		t.Errorf("Seq should be int32, got %+v", f)
	}
}

func TestLoad_Imports(t *testing.T) {
	files := map[string]string{
		"common.proto": `syntax = "proto3";
package common;
option go_package = "example.com/common";
message Empty {}
`,
		"svc.proto": `syntax = "proto3";
package svc;
import "common.proto";
option go_package = "example.com/svc";
service Health { rpc Check(common.Empty) returns (common.Empty); }
`,
	}
	res, _ := load(t, files, "svc.proto")
	if len(res.Receivers) != 1 {
		t.Fatalf("expected 1 receiver, got %d", len(res.Receivers))
	}
	r := res.Receivers[0]
	if r.Params[0].Name != "*example.com/common.Empty" {
		t.Errorf("imported message should keep its own go package, got %s", r.Params[0])
	}
	if r.Declaring.Name != "example.com/svc.HealthServer" {
		t.Errorf("unexpected declaring type %s", r.Declaring)
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := NewLoader(nil, WithFiles(map[string]string{"bad.proto": "syntax = \"proto3\"; message {"})).
		Load(typesystem.NewHierarchy(), "bad.proto")
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"user_id":    "UserId",
		"name":       "Name",
		"x2y":        "X2Y",
		"already_Up": "AlreadyUp",
	}
	for in, want := range tests {
		if got := camelCase(in); got != want {
			t.Errorf("camelCase(%q) = %q; want %q", in, got, want)
		}
	}
}
