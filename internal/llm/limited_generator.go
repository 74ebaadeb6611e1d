package llm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// LimitedGenerator caps the number of in-flight calls to one provider across
// all concurrent requests in this process.
type LimitedGenerator struct {
	next TextGenerator
	sem  *semaphore.Weighted
}

func NewLimitedGenerator(next TextGenerator, maxConcurrent int) *LimitedGenerator {
	return &LimitedGenerator{next: next, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// GenerateContent waits for a slot, giving up when ctx is done.
func (l *LimitedGenerator) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return ContentResponse{}, err
	}
	defer l.sem.Release(1)
	return l.next.GenerateContent(ctx, req)
}

func (l *LimitedGenerator) Close() error {
	if c, ok := l.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
