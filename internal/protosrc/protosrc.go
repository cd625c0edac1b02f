// Package protosrc turns gRPC service definitions into receiver operations.
//
// Every unary rpc of every service in the parsed files becomes a receiver
// declared on "<go package>.<Service>Server", taking the request message
// pointer and returning the response message pointer. Messages are
// declared in the hierarchy with their fields under the Go names
// protoc-gen-go gives them.
package protosrc

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Result holds the receivers and message types read from proto files.
type Result struct {
	Receivers []binding.Receiver
	Messages  []typesystem.Type
}

// Loader parses .proto files.
type Loader struct {
	parser protoparse.Parser
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFiles serves file contents from memory instead of the file system.
func WithFiles(files map[string]string) Option {
	return func(l *Loader) { l.parser.Accessor = protoparse.FileContentsFromMap(files) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader resolving imports against importPaths.
func NewLoader(importPaths []string, opts ...Option) *Loader {
	l := &Loader{
		parser: protoparse.Parser{ImportPaths: importPaths},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses files and declares their messages in h.
func (l *Loader) Load(h *typesystem.Hierarchy, files ...string) (*Result, error) {
	fds, err := l.parser.ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}

	res := &Result{}
	for _, fd := range fds {
		for _, msg := range fd.GetMessageTypes() {
			res.Messages = append(res.Messages, declareMessage(h, msg)...)
		}
		for _, sd := range fd.GetServices() {
			res.Receivers = append(res.Receivers, l.serviceReceivers(h, sd)...)
		}
		l.logger.Debug("proto file loaded", "file", fd.GetName(), "package", fd.GetPackage(),
			"services", len(fd.GetServices()), "messages", len(fd.GetMessageTypes()))
	}
	return res, nil
}

func (l *Loader) serviceReceivers(h *typesystem.Hierarchy, sd *desc.ServiceDescriptor) []binding.Receiver {
	declaring := h.Named(qualify(sd.GetFile(), sd.GetName()+"Server"))
	h.Declare(declaring)

	var out []binding.Receiver
	for _, md := range sd.GetMethods() {
		if md.IsClientStreaming() || md.IsServerStreaming() {
			l.logger.Warn("streaming rpc skipped", "service", sd.GetFullyQualifiedName(), "method", md.GetName())
			continue
		}
		out = append(out, binding.Receiver{
			Name:      md.GetName(),
			Params:    []typesystem.Type{messagePointer(h, md.GetInputType())},
			Return:    messagePointer(h, md.GetOutputType()),
			Declaring: declaring,
		})
	}
	return out
}

// declareMessage declares msg and its nested messages, skipping map entries.
func declareMessage(h *typesystem.Hierarchy, msg *desc.MessageDescriptor) []typesystem.Type {
	if msg.IsMapEntry() {
		return nil
	}
	owner := h.Named(goName(msg.GetFile(), msg.GetFullyQualifiedName()))
	h.Declare(owner)
	pkg := goPackage(msg.GetFile())
	for _, fld := range msg.GetFields() {
		h.DeclareField(typesystem.Field{
			Name:       camelCase(fld.GetName()),
			Type:       fieldType(h, fld),
			Owner:      owner,
			Package:    pkg,
			Visibility: typesystem.Public,
		})
	}
	out := []typesystem.Type{owner}
	for _, nested := range msg.GetNestedMessageTypes() {
		out = append(out, declareMessage(h, nested)...)
	}
	return out
}

func messagePointer(h *typesystem.Hierarchy, msg *desc.MessageDescriptor) typesystem.Type {
	return h.Named("*" + goName(msg.GetFile(), msg.GetFullyQualifiedName()))
}

// fieldType maps a proto field onto the model. Map fields have no model
// counterpart and are typed as the universal type.
func fieldType(h *typesystem.Hierarchy, fld *desc.FieldDescriptor) typesystem.Type {
	if fld.IsMap() {
		return typesystem.Object
	}
	name := scalarName(fld)
	if fld.IsRepeated() {
		name = "[]" + name
	}
	return h.Named(name)
}

func scalarName(fld *desc.FieldDescriptor) string {
	switch fld.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return "int32"
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_SINT64, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return "long"
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return "uint32"
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64, descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return "uint64"
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return "float"
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return "double"
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return "boolean"
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return typesystem.String.Name
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return "[]byte"
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		m := fld.GetMessageType()
		return "*" + goName(m.GetFile(), m.GetFullyQualifiedName())
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		e := fld.GetEnumType()
		return goName(e.GetFile(), e.GetFullyQualifiedName())
	}
	return typesystem.Object.Name
}

// goPackage is the import path from the go_package option, or "" when the
// file has none.
func goPackage(fd *desc.FileDescriptor) string {
	opts := fd.GetFileOptions()
	if opts == nil {
		return ""
	}
	path, _, _ := strings.Cut(opts.GetGoPackage(), ";")
	return path
}

// goName turns a fully qualified proto name into the Go type name,
// joining nested names with underscores ("Outer_Inner").
func goName(fd *desc.FileDescriptor, fqn string) string {
	local := fqn
	if pkg := fd.GetPackage(); pkg != "" {
		local = strings.TrimPrefix(fqn, pkg+".")
	}
	return qualify(fd, strings.ReplaceAll(local, ".", "_"))
}

func qualify(fd *desc.FileDescriptor, name string) string {
	if pkg := goPackage(fd); pkg != "" {
		return pkg + "." + name
	}
	return name
}

// camelCase converts a proto field name to its Go field name:
// "user_id" becomes "UserId".
func camelCase(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = r >= '0' && r <= '9'
		sb.WriteRune(r)
	}
	return sb.String()
}
