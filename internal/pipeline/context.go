package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/config"
	"github.com/funvibe/bindsmith/internal/emit"
	"github.com/funvibe/bindsmith/internal/typesystem"
	"github.com/funvibe/bindsmith/internal/unit"
)

// Processor is one stage of the pipeline. Stages record failures in
// ctx.Errors and return; later stages skip when earlier ones failed.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries the state of one generation run between stages.
type PipelineContext struct {
	// Context bounds the I/O of the run (cache, package loading).
	Context context.Context

	ConfigPath string
	ConfigDir  string
	ConfigData []byte
	Config     *config.Config
	Model      *config.Model

	// Oracle starts as the declared hierarchy and is replaced by a go/types
	// backed oracle when Go sources are read.
	Oracle     typesystem.Oracle
	Receivers  []binding.Receiver
	Candidates []binding.Candidate

	Unit   *unit.Unit
	Output *unit.Output
	File   *emit.GeneratedFile

	// DryRun keeps the write stage from touching the file system.
	DryRun bool

	Stats  Stats
	Logger *slog.Logger
	Errors []error
}

// Stats counts what the bind stage did.
type Stats struct {
	Bound       int
	CacheHits   int
	CacheMisses int
}

// NewContext starts a run for the config file at configPath.
func NewContext(ctx context.Context, configPath string, logger *slog.Logger) *PipelineContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PipelineContext{
		Context:    ctx,
		ConfigPath: configPath,
		ConfigDir:  filepath.Dir(configPath),
		Logger:     logger,
	}
}

// Failed reports whether any stage recorded an error.
func (c *PipelineContext) Failed() bool { return len(c.Errors) > 0 }

// Err joins the recorded errors, or returns nil.
func (c *PipelineContext) Err() error { return errors.Join(c.Errors...) }

func (c *PipelineContext) fail(err error) *PipelineContext {
	c.Errors = append(c.Errors, err)
	return c
}
