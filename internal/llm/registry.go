package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"ai-fitness-planner/internal/config"
)

// DefaultTimeout bounds a provider call when neither the request nor the
// registry sets one.
const DefaultTimeout = 30 * time.Second

// Registry dispatches normalized requests to named providers and enforces a
// wall-clock deadline on every call.
type Registry struct {
	generators map[ProviderName]TextGenerator
	timeout    time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		generators: make(map[ProviderName]TextGenerator),
		timeout:    timeout,
	}
}

// Register adds or replaces the generator for name.
func (r *Registry) Register(name ProviderName, gen TextGenerator) {
	r.generators[name] = gen
}

func (r *Registry) Has(name ProviderName) bool {
	_, ok := r.generators[name]
	return ok
}

// Names returns the registered providers in the default fan-out order.
func (r *Registry) Names() []ProviderName {
	var names []ProviderName
	for _, p := range config.ProviderOrder {
		if r.Has(ProviderName(p)) {
			names = append(names, ProviderName(p))
		}
	}
	return names
}

type generateResult struct {
	resp ContentResponse
	err  error
}

// Generate calls provider name. A missing provider is a *ConfigError; every
// other failure, including deadline expiry and empty output, is a
// *ProviderError.
func (r *Registry) Generate(ctx context.Context, name ProviderName, req Request) (ContentResponse, error) {
	gen, ok := r.generators[name]
	if !ok {
		return ContentResponse{}, &ConfigError{Provider: name}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The adapter runs on its own goroutine so an adapter that ignores its
	// context still cannot hold the caller past the deadline.
	done := make(chan generateResult, 1)
	go func() {
		resp, err := gen.GenerateContent(callCtx, req)
		done <- generateResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return ContentResponse{}, classify(callCtx, name, res.err)
		}
		if strings.TrimSpace(res.resp.Content) == "" {
			return ContentResponse{}, &ProviderError{Provider: name, Reason: ReasonEmpty}
		}
		return res.resp, nil
	case <-callCtx.Done():
		return ContentResponse{}, classify(callCtx, name, callCtx.Err())
	}
}

// Close releases any generators holding resources.
func (r *Registry) Close() error {
	var errs []error
	for _, gen := range r.generators {
		if c, ok := gen.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func classify(callCtx context.Context, name ProviderName, err error) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	reason := ReasonTransport
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(callCtx.Err(), context.Canceled):
		reason = ReasonCanceled
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		out := *pe
		if out.Provider == "" {
			out.Provider = name
		}
		if reason != ReasonTransport {
			out.Reason = reason
		}
		return &out
	}
	return &ProviderError{Provider: name, Reason: reason, Err: err}
}
