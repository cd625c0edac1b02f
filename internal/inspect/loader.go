package inspect

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Inspector loads Go packages with golang.org/x/tools/go/packages and runs
// an Extractor over them.
type Inspector struct {
	// dir is the directory patterns are resolved against.
	dir    string
	logger *slog.Logger
}

// NewInspector creates an inspector resolving patterns in dir.
func NewInspector(dir string, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inspector{dir: dir, logger: logger}
}

// Inspect loads patterns and extracts them into h.
func (ins *Inspector) Inspect(h *typesystem.Hierarchy, patterns ...string) (*Result, error) {
	pkgs, err := ins.load(patterns)
	if err != nil {
		return nil, err
	}
	return NewExtractor(h, ins.logger).Extract(pkgs...)
}

func (ins *Inspector) load(patterns []string) ([]Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: ins.dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}

	loaded, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	out := make([]Package, 0, len(loaded))
	for _, pkg := range loaded {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		out = append(out, Package{Types: pkg.Types, Syntax: pkg.Syntax})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	ins.logger.Debug("packages loaded", "dir", ins.dir, "patterns", patterns, "count", len(out))
	return out, nil
}
