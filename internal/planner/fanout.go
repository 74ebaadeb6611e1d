package planner

import (
	"context"
	"time"

	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/shared"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Fan-out sampling parameters.
const (
	fanOutMaxTokens   = 1100
	fanOutTemperature = 0.7
	fanOutTopP        = 0.95

	previewRunes = 200
)

type fanOutSlot struct {
	output ProviderOutput
	meta   shared.CallMeta
	ok     bool
}

// runFanOut sends prompt to every spec concurrently. Each goroutine writes
// only its own slot and never returns an error, so one failing provider
// cannot cancel the others. The successful outputs keep the order of specs.
func (p *Planner) runFanOut(ctx context.Context, specs []ProviderSpec, prompt string) ([]ProviderOutput, []shared.CallMeta) {
	slots := make([]fanOutSlot, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			slots[i] = p.callProvider(ctx, spec, prompt)
			return nil
		})
	}
	// Every goroutine returns nil; failures live in their slots, so Wait
	// only joins.
	_ = g.Wait()

	var (
		outputs []ProviderOutput
		metas   = make([]shared.CallMeta, 0, len(slots))
	)
	for _, s := range slots {
		metas = append(metas, s.meta)
		if s.ok {
			outputs = append(outputs, s.output)
		}
	}
	return outputs, metas
}

func (p *Planner) callProvider(ctx context.Context, spec ProviderSpec, prompt string) fanOutSlot {
	ctx, span := tracer.Start(ctx, "planner.fanout.call")
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", string(spec.Provider)), attribute.String("llm.model", spec.Model))

	start := time.Now()
	resp, err := p.gen.Generate(ctx, spec.Provider, llm.Request{
		Model:       spec.Model,
		Prompt:      prompt,
		MaxTokens:   fanOutMaxTokens,
		Temperature: fanOutTemperature,
		TopP:        fanOutTopP,
		Timeout:     p.cfg.Timeout,
	})
	meta := shared.CallMeta{
		Provider:  string(spec.Provider),
		Role:      "fanout",
		Usage:     resp.Usage,
		Latency:   time.Since(start),
		Err:       err,
		Transient: llm.IsTransient(err),
	}
	if meta.Usage.Model == "" {
		meta.Usage.Model = spec.Model
	}
	p.metrics.ObserveCall(meta)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		p.log.Warn("fan-out provider failed",
			"provider", spec.Provider,
			"model", spec.Model,
			"latency_ms", meta.Latency.Milliseconds(),
			"transient", meta.Transient,
			"error", err,
		)
		return fanOutSlot{meta: meta}
	}

	p.log.Debug("fan-out provider succeeded",
		"provider", spec.Provider,
		"latency_ms", meta.Latency.Milliseconds(),
		"tokens", resp.Usage.Total(),
	)
	return fanOutSlot{
		output: ProviderOutput{Spec: spec, Text: resp.Content, Usage: resp.Usage},
		meta:   meta,
		ok:     true,
	}
}

func sourcesOf(outputs []ProviderOutput) []Source {
	sources := make([]Source, len(outputs))
	for i, o := range outputs {
		sources[i] = Source{
			Provider: o.Spec.Provider,
			Model:    o.Spec.Model,
			Preview:  shared.Truncate(o.Text, previewRunes),
		}
	}
	return sources
}
