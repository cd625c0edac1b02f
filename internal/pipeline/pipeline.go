package pipeline

import (
	"github.com/funvibe/bindsmith/internal/cache"
	"github.com/funvibe/bindsmith/internal/emit"
)

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Default returns the full generation pipeline. A nil store disables the
// selection cache.
func Default(store *cache.Cache, gen *emit.Generator) *Pipeline {
	return New(
		&ConfigProcessor{},
		&SourceProcessor{},
		&BindProcessor{Cache: store},
		&AccessorProcessor{},
		&EmitProcessor{Generator: gen},
		&WriteProcessor{},
	)
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors; every stage decides whether it can run, so the
		// bind stage reports all failing receivers at once.
	}
	return ctx
}
