package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUnknownModel = errors.New("unknown model")

type ProviderFactory func(ctx context.Context) (Provider, error)

// Registry maps user-facing model names (chatgpt, yandexgpt) to backends.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// RegisterProvider binds a name to an already built provider.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.Register(name, func(context.Context) (Provider, error) { return p, nil })
}

func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return f(ctx)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	return out
}
