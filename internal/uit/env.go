package uit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

type caller interface {
	Connected() bool
	Call(ctx context.Context, command, workingDir string) (string, error)
}

// Env caches environment variables of the remote login shell. Concurrent lookups of the same
// variable share a single remote call.
type Env struct {
	caller caller

	mu     sync.RWMutex
	values map[string]string
	group  singleflight.Group
}

func NewEnv(c caller) *Env {
	return &Env{
		caller: c,
		values: make(map[string]string),
	}
}

// Get returns the cached value of name, fetching it on first use. Empty values are not cached.
func (e *Env) Get(ctx context.Context, name string) (string, error) {
	if !e.caller.Connected() {
		return "", ErrNotConnected
	}

	if value, ok := e.Cached(name); ok {
		return value, nil
	}
	return e.fetch(ctx, name, name)
}

// Refresh re-fetches name regardless of the cached value.
func (e *Env) Refresh(ctx context.Context, name string) (string, error) {
	if !e.caller.Connected() {
		return "", ErrNotConnected
	}
	return e.fetch(ctx, "refresh:"+name, name)
}

func (e *Env) Cached(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.values[name]
	return value, ok
}

func (e *Env) fetch(ctx context.Context, key, name string) (string, error) {
	v, err, _ := e.group.Do(key, func() (any, error) {
		output, err := e.caller.Call(ctx, "echo $"+name, ".")
		if err != nil {
			return "", err
		}

		value := strings.TrimSpace(output)

		e.mu.Lock()
		defer e.mu.Unlock()
		if value == "" {
			delete(e.values, name)
		} else {
			e.values[name] = value
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
