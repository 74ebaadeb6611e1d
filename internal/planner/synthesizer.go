package planner

import (
	"context"
	"time"

	"ai-fitness-planner/internal/llm"
	"ai-fitness-planner/internal/shared"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Synthesis sampling parameters.
const (
	synthesisMaxTokens   = 1200
	synthesisTemperature = 0.6
	synthesisTopP        = 0.9
)

// runSynthesis merges the successful fan-out outputs with one call to the
// synthesizer. It is not retried and has no fallback.
func (p *Planner) runSynthesis(ctx context.Context, planType PlanType, synth ProviderSpec, outputs []ProviderOutput) (llm.ContentResponse, shared.CallMeta, error) {
	ctx, span := tracer.Start(ctx, "planner.synthesis")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", string(synth.Provider)),
		attribute.Int("planner.inputs", len(outputs)),
	)

	prompt, err := BuildSynthesisPrompt(planType, outputs)
	if err != nil {
		return llm.ContentResponse{}, shared.CallMeta{}, err
	}

	start := time.Now()
	resp, err := p.gen.Generate(ctx, synth.Provider, llm.Request{
		Model:       synth.Model,
		Prompt:      prompt,
		MaxTokens:   synthesisMaxTokens,
		Temperature: synthesisTemperature,
		TopP:        synthesisTopP,
		Timeout:     p.cfg.SynthesisTimeout,
	})
	meta := shared.CallMeta{
		Provider:  string(synth.Provider),
		Role:      "synthesis",
		Usage:     resp.Usage,
		Latency:   time.Since(start),
		Err:       err,
		Transient: llm.IsTransient(err),
	}
	if meta.Usage.Model == "" {
		meta.Usage.Model = synth.Model
	}
	p.metrics.ObserveCall(meta)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return llm.ContentResponse{}, meta, err
	}
	return resp, meta, nil
}
