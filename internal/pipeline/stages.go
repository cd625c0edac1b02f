package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/cache"
	"github.com/funvibe/bindsmith/internal/config"
	"github.com/funvibe/bindsmith/internal/emit"
	"github.com/funvibe/bindsmith/internal/inspect"
	"github.com/funvibe/bindsmith/internal/logging"
	"github.com/funvibe/bindsmith/internal/protosrc"
	"github.com/funvibe/bindsmith/internal/unit"
)

// ConfigProcessor reads the configuration and resolves its type model.
type ConfigProcessor struct{}

func (cp *ConfigProcessor) Process(ctx *PipelineContext) *PipelineContext {
	data, err := os.ReadFile(ctx.ConfigPath)
	if err != nil {
		return ctx.fail(fmt.Errorf("reading config %s: %w", ctx.ConfigPath, err))
	}
	cfg, err := config.ParseConfig(data, ctx.ConfigPath)
	if err != nil {
		return ctx.fail(err)
	}
	model, err := cfg.Model()
	if err != nil {
		return ctx.fail(fmt.Errorf("%s: %w", ctx.ConfigPath, err))
	}

	ctx.ConfigData = data
	ctx.Config = cfg
	ctx.Model = model
	ctx.Oracle = model.Hierarchy
	ctx.Receivers = append(ctx.Receivers, model.Receivers...)
	ctx.Candidates = append(ctx.Candidates, model.Candidates...)
	ctx.Logger.Debug("config loaded", "path", ctx.ConfigPath, "unit", cfg.Unit.Name,
		"receivers", len(model.Receivers), "candidates", len(model.Candidates))
	return ctx
}

// SourceProcessor adds receivers and candidates from Go packages and proto
// files named in the configuration.
type SourceProcessor struct{}

func (sp *SourceProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() || ctx.Config == nil {
		return ctx
	}
	src := ctx.Config.Sources

	if len(src.Go) > 0 {
		done := logging.StartTimer(ctx.Logger, "inspect go sources")
		res, err := inspect.NewInspector(ctx.ConfigDir, ctx.Logger).Inspect(ctx.Model.Hierarchy, src.Go...)
		done()
		if err != nil {
			return ctx.fail(fmt.Errorf("inspecting go sources: %w", err))
		}
		ctx.Oracle = res.Oracle
		ctx.Receivers = append(ctx.Receivers, res.Receivers...)
		ctx.Candidates = append(ctx.Candidates, res.Candidates...)
	}

	if len(src.Proto) > 0 {
		loader := protosrc.NewLoader(ctx.Config.ProtoImportPaths(ctx.ConfigDir), protosrc.WithLogger(ctx.Logger))
		res, err := loader.Load(ctx.Model.Hierarchy, src.Proto...)
		if err != nil {
			return ctx.fail(fmt.Errorf("loading proto sources: %w", err))
		}
		ctx.Receivers = append(ctx.Receivers, res.Receivers...)
	}

	if len(ctx.Receivers) == 0 {
		return ctx.fail(fmt.Errorf("%s: no receivers to implement", ctx.ConfigPath))
	}
	return ctx
}

// BindProcessor selects and realizes a delegate for every receiver. Every
// receiver is selected over the full candidate pool; the cache only confirms
// the winner, and a changed winner replaces the remembered one.
type BindProcessor struct {
	Cache *cache.Cache
}

// fingerprinter is implemented by oracles that can describe their type model.
type fingerprinter interface {
	Fingerprint() string
}

// selectionKey fingerprints every input a selection depends on: the config
// file, the candidate set and the type model behind the oracle.
func selectionKey(ctx *PipelineContext) string {
	var model string
	if fp, ok := ctx.Oracle.(fingerprinter); ok {
		model = fp.Fingerprint()
	} else if ctx.Model != nil {
		model = ctx.Model.Hierarchy.Fingerprint()
	}
	return cache.Key(ctx.ConfigData, ctx.Candidates, model)
}

func (bp *BindProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() || ctx.Model == nil {
		return ctx
	}
	defer logging.StartTimer(ctx.Logger, "bind receivers")()

	// The unit id feeds synthetic member names, so it is derived from the
	// inputs to keep regenerated files stable.
	key := selectionKey(ctx)
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("bindsmith:"+ctx.Config.Unit.Package+"."+ctx.Config.Unit.Name+":"+key))
	u := unit.New(ctx.Config.Unit.Name, ctx.Model.Scope, unit.WithID(id), unit.WithLogger(ctx.Logger))
	ctx.Unit = u
	sel := ctx.Model.Selector(ctx.Oracle, ctx.Logger)

	for i := range ctx.Receivers {
		recv := &ctx.Receivers[i]
		d, err := u.Bind(sel, recv, ctx.Candidates)
		if err != nil {
			ctx.Errors = append(ctx.Errors, fmt.Errorf("receiver %s: %w", recv, err))
			continue
		}
		ctx.Stats.Bound++
		bp.remember(ctx, key, recv, d)
	}
	if bp.Cache != nil && !ctx.Failed() {
		if n, err := bp.Cache.Prune(ctx.Context, key); err != nil {
			ctx.Logger.Warn("failed to prune selection cache", "error", err)
		} else if n > 0 {
			ctx.Logger.Debug("pruned stale selections", "count", n)
		}
	}
	return ctx
}

// remember counts a hit when the cache already names the selected candidate
// and stores the selection otherwise.
func (bp *BindProcessor) remember(ctx *PipelineContext, key string, recv *binding.Receiver, d *unit.Delegation) {
	if bp.Cache == nil {
		return
	}
	target := d.Target.String()
	hit, ok, err := bp.Cache.Lookup(ctx.Context, key, recv.String())
	if err != nil {
		ctx.Logger.Warn("cache lookup failed", "receiver", recv.String(), "error", err)
	}
	if ok && hit.Candidate == target {
		ctx.Stats.CacheHits++
		return
	}
	if ok {
		ctx.Logger.Info("cached selection superseded", "receiver", recv.String(), "cached", hit.Candidate, "selected", target)
	}
	ctx.Stats.CacheMisses++
	err = bp.Cache.Store(ctx.Context, key, cache.Selection{
		Receiver:  recv.String(),
		Candidate: target,
		Score:     d.Score.String(),
	})
	if err != nil {
		ctx.Logger.Warn("failed to cache selection", "receiver", recv.String(), "error", err)
	}
}

// AccessorProcessor adds the configured field accessors to the unit.
type AccessorProcessor struct{}

func (ap *AccessorProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() || ctx.Unit == nil {
		return ctx
	}
	accessors, err := ctx.Model.FieldAccessors(ctx.Oracle)
	if err != nil {
		return ctx.fail(err)
	}
	for _, fa := range accessors {
		if err := ctx.Unit.AddAccessor(fa); err != nil {
			return ctx.fail(fmt.Errorf("accessor for %s: %w", fa.Plan().Field, err))
		}
	}
	return ctx
}

// EmitProcessor closes the unit and renders it.
type EmitProcessor struct {
	Generator *emit.Generator
}

func (ep *EmitProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() || ctx.Unit == nil {
		return ctx
	}
	out, err := ctx.Unit.Close()
	if err != nil {
		return ctx.fail(err)
	}
	ctx.Output = out

	gen := ep.Generator
	if gen == nil {
		gen = emit.NewGenerator()
	}
	file, err := gen.Generate(out, ctx.Config.OutputPath(ctx.ConfigDir))
	if err != nil {
		return ctx.fail(err)
	}
	ctx.File = &file
	return ctx
}

// WriteProcessor writes the generated file unless the run is a dry run.
type WriteProcessor struct{}

func (wp *WriteProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() || ctx.File == nil || ctx.DryRun {
		return ctx
	}
	if err := os.MkdirAll(filepath.Dir(ctx.File.Filename), 0o755); err != nil {
		return ctx.fail(fmt.Errorf("creating output dir: %w", err))
	}
	if err := os.WriteFile(ctx.File.Filename, []byte(ctx.File.Content), 0o644); err != nil {
		return ctx.fail(fmt.Errorf("writing %s: %w", ctx.File.Filename, err))
	}
	ctx.Logger.Info("generated", "file", ctx.File.Filename, "delegations", len(ctx.Output.Delegations),
		"synthetic_members", len(ctx.Output.Members))
	return ctx
}
