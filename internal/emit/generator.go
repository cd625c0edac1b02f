// Package emit renders a closed generation unit as Go source: one struct
// holding the receiver values and synthetic fields, one method per
// delegation and one per synthetic accessor.
package emit

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/funvibe/bindsmith/internal/accessor"
	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/synth"
	"github.com/funvibe/bindsmith/internal/typesystem"
	"github.com/funvibe/bindsmith/internal/unit"
)

// GeneratedFile represents a generated Go source file.
type GeneratedFile struct {
	// Filename is the path the file is written to.
	Filename string

	// Content is the full Go source code.
	Content string
}

// Generator produces Go source for generation units.
type Generator struct {
	format bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithoutFormatting skips gofmt, which is useful when debugging templates.
func WithoutFormatting() Option {
	return func(g *Generator) { g.format = false }
}

// NewGenerator creates a generator that formats its output.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{format: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders out into filename.
func (g *Generator) Generate(out *unit.Output, filename string) (GeneratedFile, error) {
	ctx := newFileContext(out)
	if err := ctx.build(); err != nil {
		return GeneratedFile{}, fmt.Errorf("generating %s: %w", out.Name, err)
	}
	src, err := ctx.render()
	if err != nil {
		return GeneratedFile{}, err
	}
	if g.format {
		formatted, err := imports.Process(filename, []byte(src), &imports.Options{
			Comments:   true,
			TabIndent:  true,
			TabWidth:   8,
			FormatOnly: true,
		})
		if err != nil {
			return GeneratedFile{}, fmt.Errorf("formatting %s: %w\n%s", filename, err, src)
		}
		src = string(formatted)
	}
	return GeneratedFile{Filename: filename, Content: src}, nil
}

// fileContext holds state while generating a single unit file.
type fileContext struct {
	out    *unit.Output
	types  *typeMapper
	name   string
	selves map[string]string // receiver type name → struct field
	order  []string          // receiver type names in first-use order

	fields  []fieldDecl
	params  []paramDecl
	inits   []initDecl
	methods []methodDecl
	seen    map[string]bool
}

type fieldDecl struct {
	Name string
	Type string
}

type paramDecl struct {
	Name string
	Type string
}

type initDecl struct {
	Field string
	Expr  string
}

type methodDecl struct {
	Doc     string
	Name    string
	Params  string
	Results string
	Body    string
}

func newFileContext(out *unit.Output) *fileContext {
	return &fileContext{
		out:    out,
		types:  newTypeMapper(out.Scope.Package),
		name:   identifier(out.Name),
		selves: make(map[string]string),
		seen:   make(map[string]bool),
	}
}

// self returns the struct field holding the value of receiver type t.
func (ctx *fileContext) self(t typesystem.Type) string {
	if f, ok := ctx.selves[t.Name]; ok {
		return f
	}
	f := "self" + ucFirst(identifier(shortName(t.Name)))
	ctx.selves[t.Name] = f
	ctx.order = append(ctx.order, t.Name)
	return f
}

func (ctx *fileContext) member(h synth.Handle) (synth.Member, error) {
	if !h.Valid() || int(h) >= len(ctx.out.Members) {
		return synth.Member{}, fmt.Errorf("synthetic member %d does not exist", h)
	}
	return ctx.out.Members[h], nil
}

func (ctx *fileContext) addMethod(m methodDecl) error {
	if ctx.seen[m.Name] {
		return fmt.Errorf("method %s generated twice", m.Name)
	}
	ctx.seen[m.Name] = true
	ctx.methods = append(ctx.methods, m)
	return nil
}

func (ctx *fileContext) build() error {
	hints := ctx.hintValues()

	for _, d := range ctx.out.Delegations {
		if err := ctx.delegation(d); err != nil {
			return fmt.Errorf("receiver %s: %w", d.Receiver.String(), err)
		}
	}
	for _, b := range ctx.out.Accessors {
		if err := ctx.accessorBody(b); err != nil {
			return err
		}
	}

	instances := make(map[synth.Handle]bool)
	for _, d := range ctx.out.Delegations {
		if d.Instance.Valid() {
			instances[d.Instance] = true
		}
	}

	var cached []fieldDecl
	for _, m := range ctx.out.Members {
		switch m.Kind {
		case synth.CachedField:
			typ := ctx.types.goType(m.ValueType.Name)
			cached = append(cached, fieldDecl{Name: m.Name, Type: typ})
			if v, ok := hints[m.Handle]; ok {
				ctx.inits = append(ctx.inits, initDecl{Field: m.Name, Expr: strconv.Quote(v)})
			} else if instances[m.Handle] {
				ctx.params = append(ctx.params, paramDecl{Name: m.Name, Type: typ})
				ctx.inits = append(ctx.inits, initDecl{Field: m.Name, Expr: m.Name})
			}
		default:
			if err := ctx.syntheticAccessor(m); err != nil {
				return err
			}
		}
	}

	var selfParams []paramDecl
	var selfInits []initDecl
	for _, name := range ctx.order {
		f := ctx.selves[name]
		typ := ctx.types.goType(name)
		ctx.fields = append(ctx.fields, fieldDecl{Name: f, Type: typ})
		selfParams = append(selfParams, paramDecl{Name: f, Type: typ})
		selfInits = append(selfInits, initDecl{Field: f, Expr: f})
	}
	ctx.params = append(selfParams, ctx.params...)
	ctx.inits = append(selfInits, ctx.inits...)
	for _, f := range ctx.out.Fields {
		ctx.fields = append(ctx.fields, fieldDecl{Name: f.Name, Type: ctx.types.goType(f.Type.Name)})
	}
	ctx.fields = append(ctx.fields, cached...)
	return nil
}

// hintValues maps each cached field holding an origin constant to its value.
func (ctx *fileContext) hintValues() map[synth.Handle]string {
	hints := make(map[synth.Handle]string)
	for _, d := range ctx.out.Delegations {
		for _, a := range d.Args {
			if !a.Via.Valid() || a.Source.Kind() != binding.SourceConstant {
				continue
			}
			if v, ok := a.Source.Value(); ok {
				hints[a.Via] = v
			}
		}
	}
	return hints
}

func (ctx *fileContext) delegation(d unit.Delegation) error {
	recv := d.Receiver
	params := make([]string, len(recv.Params))
	for i, p := range recv.Params {
		params[i] = fmt.Sprintf("arg%d %s", i, ctx.types.goType(p.Name))
	}

	target, err := ctx.callTarget(d)
	if err != nil {
		return err
	}
	args := make([]string, len(d.Args))
	for i, a := range d.Args {
		expr, err := ctx.argument(a)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = expr
	}
	call := target + "(" + strings.Join(args, ", ") + ")"

	ret := ctx.types.goType(recv.Return.Name)
	var body string
	switch {
	case ret == "":
		body = call
	case d.Drop || d.Target.Return.IsVoid() || d.Target.Return.IsZero():
		body = call + "\nvar zero " + ret + "\nreturn zero"
	default:
		body = "return " + call
	}

	return ctx.addMethod(methodDecl{
		Doc:     fmt.Sprintf("%s implements %s by delegating to %s.", recv.Name, recv.String(), d.Target.String()),
		Name:    identifier(recv.Name),
		Params:  strings.Join(params, ", "),
		Results: ret,
		Body:    indentCode(body, "\t"),
	})
}

func (ctx *fileContext) callTarget(d unit.Delegation) (string, error) {
	c := d.Target
	switch {
	case d.Invoke.Valid():
		m, err := ctx.member(d.Invoke)
		if err != nil {
			return "", err
		}
		return "u." + m.Name, nil
	case c.Static:
		return ctx.types.qualify(c.Package, c.Name), nil
	case d.ViaReceiver:
		return "u." + ctx.self(d.Receiver.Declaring) + "." + c.Name, nil
	case d.Instance.Valid():
		m, err := ctx.member(d.Instance)
		if err != nil {
			return "", err
		}
		return "u." + m.Name + "." + c.Name, nil
	}
	return "", fmt.Errorf("%s has no instance to be called on", c.String())
}

func (ctx *fileContext) argument(a unit.Argument) (string, error) {
	src := a.Source
	if a.Via.Valid() {
		m, err := ctx.member(a.Via)
		if err != nil {
			return "", err
		}
		if m.Kind == synth.CachedField {
			return "u." + m.Name, nil
		}
		return "u." + m.Name + "()", nil
	}
	switch src.Kind() {
	case binding.SourceArgument:
		slot, _ := src.Slot()
		return "arg" + strconv.Itoa(slot), nil
	case binding.SourceReceiver:
		t, _ := src.Type()
		return "u." + ctx.self(t), nil
	case binding.SourceConstant:
		v, _ := src.Value()
		return strconv.Quote(v), nil
	case binding.SourceField:
		f, _ := src.Field()
		return ctx.fieldRef(f), nil
	case binding.SourceAllArguments:
		slots, _ := src.Slots()
		t, _ := src.Type()
		elems := make([]string, len(slots))
		for i, slot := range slots {
			elems[i] = "arg" + strconv.Itoa(slot)
		}
		return ctx.types.goType(t.Name) + "{" + strings.Join(elems, ", ") + "}", nil
	}
	return "", fmt.Errorf("source %s cannot be rendered", src.Kind())
}

func (ctx *fileContext) fieldRef(f typesystem.Field) string {
	if f.Owner.Equal(ctx.out.Scope.Type) {
		return "u." + f.Name
	}
	return "u." + ctx.self(f.Owner) + "." + f.Name
}

func (ctx *fileContext) syntheticAccessor(m synth.Member) error {
	t := m.Target
	typ := ctx.types.goType(m.ValueType.Name)
	switch m.Kind {
	case synth.MethodAccessor:
		names, _ := splitDescriptor(t.Descriptor)
		params := make([]string, len(names))
		args := make([]string, len(names))
		for i, n := range names {
			args[i] = "arg" + strconv.Itoa(i)
			params[i] = args[i] + " " + ctx.types.goType(n)
		}
		call := "u." + ctx.self(t.Owner) + "." + t.Name + "(" + strings.Join(args, ", ") + ")"
		if typ != "" {
			call = "return " + call
		}
		return ctx.addMethod(methodDecl{
			Doc:     fmt.Sprintf("%s invokes %s.", m.Name, t.String()),
			Name:    m.Name,
			Params:  strings.Join(params, ", "),
			Results: typ,
			Body:    indentCode(call, "\t"),
		})
	case synth.FieldGetter:
		return ctx.addMethod(methodDecl{
			Doc:     fmt.Sprintf("%s reads %s.%s.", m.Name, t.Owner, t.Name),
			Name:    m.Name,
			Results: typ,
			Body:    indentCode("return u."+ctx.self(t.Owner)+"."+t.Name, "\t"),
		})
	case synth.FieldSetter:
		return ctx.addMethod(methodDecl{
			Doc:    fmt.Sprintf("%s writes %s.%s.", m.Name, t.Owner, t.Name),
			Name:   m.Name,
			Params: "v " + typ,
			Body:   indentCode("u."+ctx.self(t.Owner)+"."+t.Name+" = v", "\t"),
		})
	}
	return fmt.Errorf("unknown synthetic member kind %s", m.Kind)
}

func (ctx *fileContext) accessorBody(b accessor.Body) error {
	typ := ctx.types.goType(b.Field.Type.Name)
	ref := ctx.fieldRef(b.Field)
	if b.Write {
		return ctx.addMethod(methodDecl{
			Name:   b.Method,
			Params: "v " + typ,
			Body:   indentCode(ref+" = v", "\t"),
		})
	}
	return ctx.addMethod(methodDecl{
		Name:    b.Method,
		Results: typ,
		Body:    indentCode("return "+ref, "\t"),
	})
}

// render generates the final Go source for this unit.
func (ctx *fileContext) render() (string, error) {
	tmpl, err := template.New("unit").Parse(unitFileTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	params := make([]string, len(ctx.params))
	for i, p := range ctx.params {
		params[i] = p.Name + " " + p.Type
	}

	data := struct {
		Package  string
		Unit     string
		UnitID   string
		TypeName string
		Imports  []importEntry
		Fields   []fieldDecl
		Params   string
		Inits    []initDecl
		Methods  []methodDecl
	}{
		Package:  ImportAlias(ctx.out.Scope.Package),
		Unit:     ctx.out.Name,
		UnitID:   ctx.out.ID.String(),
		TypeName: ctx.name,
		Imports:  ctx.types.sortedImports(),
		Fields:   ctx.fields,
		Params:   strings.Join(params, ", "),
		Inits:    ctx.inits,
		Methods:  ctx.methods,
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// indentCode adds a prefix to each line of code.
func indentCode(code, prefix string) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	var result strings.Builder
	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}
		if line != "" {
			result.WriteString(prefix)
			result.WriteString(line)
		}
	}
	return result.String()
}

const unitFileTemplate = `// Code generated by bindsmith. DO NOT EDIT.
// Unit {{.Unit}} ({{.UnitID}}).

package {{.Package}}
{{- if .Imports}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)
{{- end}}

type {{.TypeName}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
}

func New{{.TypeName}}({{.Params}}) *{{.TypeName}} {
	return &{{.TypeName}}{
{{- range .Inits}}
		{{.Field}}: {{.Expr}},
{{- end}}
	}
}
{{- range .Methods}}

{{if .Doc}}// {{.Doc}}
{{end -}}
func (u *{{$.TypeName}}) {{.Name}}({{.Params}}){{if .Results}} {{.Results}}{{end}} {
{{.Body}}
}
{{- end}}
`
