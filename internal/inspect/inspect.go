// Package inspect builds receivers and delegate candidates from Go source.
//
// Interfaces marked with a //bind:receiver directive contribute their
// methods as receiver operations. Functions and methods marked with
// //bind:delegate become candidates; further directives refine them:
//
//	//bind:tag <param> <tag>   tag a parameter, e.g. "//bind:tag id arg(0)"
//	//bind:special             call through an accessor shim
//	//bind:ignore              keep the candidate out of selection
//	//bind:priority <n>        rank for the priority tie breaker
//
// Struct types are declared in the hierarchy with their fields; embedded
// fields become supertypes so promoted fields resolve.
package inspect

import (
	"fmt"
	"go/ast"
	"go/types"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

const directivePrefix = "//bind:"

// Package is one type-checked Go package with its syntax.
type Package struct {
	Types  *types.Package
	Syntax []*ast.File
}

// Result holds everything extracted from a set of packages.
type Result struct {
	Receivers  []binding.Receiver
	Candidates []binding.Candidate
	Oracle     *Oracle
}

// Extractor walks packages into an Oracle and its hierarchy.
type Extractor struct {
	oracle *Oracle
	logger *slog.Logger
}

// NewExtractor returns an extractor declaring types into h.
func NewExtractor(h *typesystem.Hierarchy, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{oracle: NewOracle(h), logger: logger}
}

// Extract reads receivers, candidates and types from pkgs. Output order is
// deterministic: packages in the given order, declarations sorted by name.
func (e *Extractor) Extract(pkgs ...Package) (*Result, error) {
	res := &Result{Oracle: e.oracle}
	for _, pkg := range pkgs {
		if pkg.Types == nil {
			return nil, fmt.Errorf("package has no type information")
		}
		e.declareTypes(pkg.Types)

		decls := collectDirectives(pkg.Syntax)
		recvs, err := e.receivers(pkg.Types, decls)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Types.Path(), err)
		}
		cands, err := e.candidates(pkg.Types, decls)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Types.Path(), err)
		}
		res.Receivers = append(res.Receivers, recvs...)
		res.Candidates = append(res.Candidates, cands...)
		e.logger.Debug("package inspected", "package", pkg.Types.Path(),
			"receivers", len(recvs), "candidates", len(cands))
	}
	return res, nil
}

// declareTypes registers every named struct and interface of pkg.
func (e *Extractor) declareTypes(pkg *types.Package) {
	h := e.oracle.Hierarchy()
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		owner := e.oracle.Type(tn.Type())
		st, ok := tn.Type().Underlying().(*types.Struct)
		if !ok {
			h.Declare(owner)
			continue
		}
		var supers []typesystem.Type
		for i := 0; i < st.NumFields(); i++ {
			f := st.Field(i)
			ft := e.oracle.Type(f.Type())
			if f.Embedded() {
				supers = append(supers, e.oracle.Type(deref(f.Type())))
			}
			h.DeclareField(typesystem.Field{
				Name:       f.Name(),
				Type:       ft,
				Owner:      owner,
				Package:    pkg.Path(),
				Visibility: visibility(f),
			})
		}
		h.Declare(owner, supers...)
	}
}

func (e *Extractor) receivers(pkg *types.Package, decls map[string]directives) ([]binding.Receiver, error) {
	var out []binding.Receiver
	for _, name := range pkg.Scope().Names() {
		d, ok := decls[name]
		if !ok || !d.receiver {
			continue
		}
		tn, ok := pkg.Scope().Lookup(name).(*types.TypeName)
		if !ok {
			return nil, diagnostics.Configuration("%s: //bind:receiver on a non-type declaration", name)
		}
		iface, ok := tn.Type().Underlying().(*types.Interface)
		if !ok {
			return nil, diagnostics.Configuration("%s: //bind:receiver needs an interface type", name)
		}
		declaring := e.oracle.Type(tn.Type())
		for i := 0; i < iface.NumMethods(); i++ {
			m := iface.Method(i)
			sig := m.Type().(*types.Signature)
			ret, ok := e.result(sig)
			if !ok {
				e.logger.Warn("receiver skipped: more than one result", "interface", declaring.Name, "method", m.Name())
				continue
			}
			r := binding.Receiver{
				Name:      m.Name(),
				Return:    ret,
				Declaring: declaring,
			}
			for j := 0; j < sig.Params().Len(); j++ {
				r.Params = append(r.Params, e.oracle.Type(sig.Params().At(j).Type()))
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Extractor) candidates(pkg *types.Package, decls map[string]directives) ([]binding.Candidate, error) {
	keys := make([]string, 0, len(decls))
	for k, d := range decls {
		if d.delegate {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []binding.Candidate
	for _, key := range keys {
		d := decls[key]
		fn := lookupFunc(pkg, d.recvType, d.name)
		if fn == nil {
			return nil, diagnostics.Configuration("%s: //bind:delegate target not found", key)
		}
		sig := fn.Type().(*types.Signature)
		ret, ok := e.result(sig)
		if !ok {
			e.logger.Warn("candidate skipped: more than one result", "func", key)
			continue
		}

		c := binding.Candidate{
			Name:       fn.Name(),
			Return:     ret,
			Package:    pkg.Path(),
			Visibility: visibility(fn),
			Ignored:    d.ignore,
			Special:    d.special,
			Priority:   d.priority,
		}
		if recv := sig.Recv(); recv != nil {
			c.Declaring = e.oracle.Type(deref(recv.Type()))
		} else {
			c.Static = true
			c.Declaring = typesystem.Ref(pkg.Path())
		}

		used := make(map[string]bool, len(d.tags))
		for j := 0; j < sig.Params().Len(); j++ {
			p := sig.Params().At(j)
			tag := binding.Untagged()
			if text, ok := d.tags[p.Name()]; ok {
				t, err := binding.ParseTag(text)
				if err != nil {
					return nil, fmt.Errorf("%s parameter %s: %w", key, p.Name(), err)
				}
				tag = t
				used[p.Name()] = true
			}
			c.Params = append(c.Params, binding.Parameter{Type: e.oracle.Type(p.Type()), Tag: tag})
		}
		for name := range d.tags {
			if !used[name] {
				return nil, diagnostics.Configuration("%s: //bind:tag names unknown parameter %q", key, name)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// result maps a signature's results to a single return type.
func (e *Extractor) result(sig *types.Signature) (typesystem.Type, bool) {
	switch sig.Results().Len() {
	case 0:
		return typesystem.Void, true
	case 1:
		return e.oracle.Type(sig.Results().At(0).Type()), true
	}
	return typesystem.Type{}, false
}

func lookupFunc(pkg *types.Package, recvType, name string) *types.Func {
	if recvType == "" {
		fn, _ := pkg.Scope().Lookup(name).(*types.Func)
		return fn
	}
	tn, ok := pkg.Scope().Lookup(recvType).(*types.TypeName)
	if !ok {
		return nil
	}
	obj, _, _ := types.LookupFieldOrMethod(types.NewPointer(tn.Type()), true, pkg, name)
	fn, _ := obj.(*types.Func)
	return fn
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

func visibility(obj types.Object) typesystem.Visibility {
	if obj.Exported() {
		return typesystem.Public
	}
	return typesystem.PackagePrivate
}

// directives are the //bind: lines attached to one declaration.
type directives struct {
	name     string
	recvType string
	receiver bool
	delegate bool
	special  bool
	ignore   bool
	priority int
	tags     map[string]string
}

// collectDirectives indexes directive comments by declaration: "Name" for
// types and functions, "Type.Method" for methods.
func collectDirectives(files []*ast.File) map[string]directives {
	out := make(map[string]directives)
	for _, file := range files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				d := parseDirectives(decl.Doc)
				if d == nil {
					continue
				}
				d.name = decl.Name.Name
				key := d.name
				if decl.Recv != nil && len(decl.Recv.List) == 1 {
					d.recvType = recvTypeName(decl.Recv.List[0].Type)
					key = d.recvType + "." + d.name
				}
				out[key] = *d
			case *ast.GenDecl:
				for _, spec := range decl.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					doc := ts.Doc
					if doc == nil && len(decl.Specs) == 1 {
						doc = decl.Doc
					}
					d := parseDirectives(doc)
					if d == nil {
						continue
					}
					d.name = ts.Name.Name
					out[d.name] = *d
				}
			}
		}
	}
	return out
}

func parseDirectives(doc *ast.CommentGroup) *directives {
	if doc == nil {
		return nil
	}
	var d *directives
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		if d == nil {
			d = &directives{tags: make(map[string]string)}
		}
		fields := strings.Fields(strings.TrimPrefix(c.Text, directivePrefix))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "receiver":
			d.receiver = true
		case "delegate":
			d.delegate = true
		case "special":
			d.delegate, d.special = true, true
		case "ignore":
			d.delegate, d.ignore = true, true
		case "priority":
			if len(fields) == 2 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					d.priority = n
				}
			}
		case "tag":
			if len(fields) == 3 {
				d.tags[fields[1]] = fields[2]
			}
		}
	}
	return d
}

func recvTypeName(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}
