package emit

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// goReservedWords are Go keywords that cannot be used as import aliases.
var goReservedWords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
	// Generated code uses these identifiers, so avoid them as aliases
	"u": true, "zero": true,
}

// ImportAlias returns a valid Go identifier for an import path.
// Handles hyphens (go-redis → goredis), versioned paths (v9 → parent),
// and reserved words (go → pkgGo).
func ImportAlias(pkgPath string) string {
	parts := strings.Split(pkgPath, "/")
	last := parts[len(parts)-1]
	if isVersionSegment(last) && len(parts) > 1 {
		last = parts[len(parts)-2]
	}

	alias := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, last)

	if alias == "" {
		alias = "pkg"
	}
	if goReservedWords[alias] {
		alias = "pkg" + strings.ToUpper(alias[:1]) + alias[1:]
	}
	return alias
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// identifier returns a valid Go identifier for a string.
// Replaces invalid characters with underscores.
func identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func ucFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// builtinGoTypes maps the names of the default type model onto Go.
var builtinGoTypes = map[string]string{
	"boolean": "bool", "Boolean": "bool",
	"byte": "byte", "Byte": "byte",
	"short": "int16", "Short": "int16",
	"char": "rune", "Character": "rune",
	"int": "int", "Integer": "int",
	"long": "int64", "Long": "int64",
	"float": "float32", "Float": "float32",
	"double": "float64", "Double": "float64",
	"String": "string",
	"Object": "any",
	"Type":   "string",
}

// typeMapper renders model type names as Go type expressions and records
// the imports they need.
type typeMapper struct {
	pkgPath string
	imports map[string]string // path → alias
}

func newTypeMapper(pkgPath string) *typeMapper {
	return &typeMapper{pkgPath: pkgPath, imports: make(map[string]string)}
}

// goType maps a model name such as "Integer", "*example.com/app.Foo" or
// "[]string" to Go.
func (m *typeMapper) goType(name string) string {
	switch {
	case name == "" || name == "void":
		return ""
	case strings.HasPrefix(name, "*"):
		return "*" + m.goType(name[1:])
	case strings.HasPrefix(name, "[]"):
		return "[]" + m.goType(name[2:])
	}
	if g, ok := builtinGoTypes[name]; ok {
		return g
	}
	if pkg, typ, ok := splitQualified(name); ok {
		return m.qualify(pkg, typ)
	}
	return name
}

// qualify returns name as seen from the generated package, importing pkg
// when it is a different package.
func (m *typeMapper) qualify(pkg, name string) string {
	if pkg == "" || pkg == m.pkgPath {
		return name
	}
	alias, ok := m.imports[pkg]
	if !ok {
		alias = m.uniqueAlias(ImportAlias(pkg))
		m.imports[pkg] = alias
	}
	return alias + "." + name
}

func (m *typeMapper) uniqueAlias(base string) string {
	taken := make(map[string]bool, len(m.imports))
	for _, a := range m.imports {
		taken[a] = true
	}
	alias := base
	for i := 2; taken[alias]; i++ {
		alias = base + strconv.Itoa(i)
	}
	return alias
}

type importEntry struct {
	Path  string
	Alias string
}

func (m *typeMapper) sortedImports() []importEntry {
	entries := make([]importEntry, 0, len(m.imports))
	for path, alias := range m.imports {
		e := importEntry{Path: path}
		if alias != defaultImportName(path) {
			e.Alias = alias
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

func defaultImportName(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// splitQualified splits "example.com/app.Foo" into its package path and
// type name. Names without a package path are not qualified.
func splitQualified(name string) (pkg, typ string, ok bool) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.LastIndexByte(name, '.')
	if dot <= slash || dot < 0 {
		return "", "", false
	}
	return name[:dot], name[dot+1:], true
}

// shortName is the unqualified form of a model type name.
func shortName(name string) string {
	name = strings.TrimLeft(name, "*[]")
	if _, typ, ok := splitQualified(name); ok {
		return typ
	}
	return name
}

// splitDescriptor returns the parameter and return type names of a
// descriptor "(A,B)R". Commas nested in brackets or parentheses do not
// split.
func splitDescriptor(desc string) (params []string, ret string) {
	if !strings.HasPrefix(desc, "(") {
		return nil, desc
	}
	depth, start := 0, 1
	for i := 1; i < len(desc); i++ {
		switch desc[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				if i > start {
					params = append(params, desc[start:i])
				}
				return params, desc[i+1:]
			}
			depth--
		case ',':
			if depth == 0 {
				params = append(params, desc[start:i])
				start = i + 1
			}
		}
	}
	return params, ""
}
