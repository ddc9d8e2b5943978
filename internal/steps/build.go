package steps

import (
	"log/slog"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// Build assembles the six conversion stages in execution order, all
// sharing one reporter. The returned chain belongs to a single run.
func Build(cfg config.Config, logger *slog.Logger, reporter *quality.Reporter) []pipeline.Step {
	return []pipeline.Step{
		NewTemplateStep(cfg.Paths, logger, reporter),
		NewExtractStep(cfg.Paths, logger, reporter),
		NewPrefillStep(cfg.Prefill, cfg.Paths, logger, reporter),
		NewRemapStep(cfg.Mapping, cfg.Fill, cfg.Paths, logger, reporter),
		NewDedupeStep(cfg.Dedupe, cfg.Paths, logger, reporter),
		NewCrossRefStep(cfg.CrossRef, cfg.Paths, logger, reporter),
	}
}

// Factory adapts Build to the pipeline manager's per-run step factory.
func Factory(cfg config.Config, logger *slog.Logger) pipeline.StepFactory {
	return func(reporter *quality.Reporter) []pipeline.Step {
		return Build(cfg, logger, reporter)
	}
}

// Select filters a step chain down to the named step IDs, keeping
// execution order. Unknown names are ignored; an empty selection
// returns the full chain. Dependency declarations are dropped on the
// survivors so a partial chain can run against an intermediate file.
func Select(chain []pipeline.Step, ids []string) []pipeline.Step {
	if len(ids) == 0 {
		return chain
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []pipeline.Step
	for _, step := range chain {
		if wanted[step.ID()] {
			out = append(out, standalone{step})
		}
	}
	return out
}

// standalone strips a step's dependency declarations so it can run
// outside the full chain, against whatever file the caller supplies.
type standalone struct {
	pipeline.Step
}

func (standalone) Dependencies() []string { return nil }
