package embeddings

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a Lazy provider after Close.
var ErrClosed = errors.New("embeddings provider closed")

// Factory builds a provider on first use.
type Factory func(ctx context.Context) (Provider, error)

// Lazy defers building a Provider until the first embedding is requested.
// A failed build is not cached; the next call tries again.
type Lazy struct {
	factory Factory

	mu       sync.Mutex
	provider Provider
	closed   bool
}

var _ Provider = (*Lazy)(nil)

func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Get returns the provider, building it if needed.
func (l *Lazy) Get(ctx context.Context) (Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.provider != nil {
		return l.provider, nil
	}
	p, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	l.provider = p
	return p, nil
}

// Reset drops the built provider so the next call rebuilds it, for example
// after the API key changes.
func (l *Lazy) Reset() {
	l.mu.Lock()
	l.provider = nil
	l.mu.Unlock()
}

// Close releases the provider. Further calls fail with ErrClosed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.provider = nil
	return nil
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	p, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, text)
}

func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return p.EmbedBatch(ctx, texts)
}

// Name reports the built provider's name, or "lazy" before first use.
func (l *Lazy) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.provider == nil {
		return "lazy"
	}
	return l.provider.Name()
}

// Dimension is zero until the provider is built.
func (l *Lazy) Dimension() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.provider == nil {
		return 0
	}
	return l.provider.Dimension()
}
