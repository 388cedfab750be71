package team

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// NameResolver looks up the display handle of an identity.
type NameResolver interface {
	DisplayName(ctx context.Context, id string) (string, error)
}

// Registry caches team member handles. It is filled once at start-up and
// refreshed when the team configuration changes.
type Registry struct {
	resolver NameResolver
	logger   zerolog.Logger

	mu    sync.RWMutex
	names map[string]string
}

// NewRegistry creates an empty registry. resolver may be nil when all
// handles come from configuration.
func NewRegistry(resolver NameResolver, logger zerolog.Logger) *Registry {
	return &Registry{
		resolver: resolver,
		logger:   logger.With().Str("component", "team_registry").Logger(),
		names:    make(map[string]string),
	}
}

// Set records a handle directly.
func (r *Registry) Set(id, name string) {
	if id == "" || name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

// Name returns the cached handle for id.
func (r *Registry) Name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[id]; ok {
		return name, true
	}
	for known, name := range r.names {
		if SameID(known, id) {
			return name, true
		}
	}
	return "", false
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Refresh resolves every id and replaces the cache. Ids that fail to
// resolve keep their previous handle; the failures are returned joined.
func (r *Registry) Refresh(ctx context.Context, ids []string) error {
	if r.resolver == nil {
		return nil
	}

	r.mu.RLock()
	next := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := r.names[id]; ok {
			next[id] = name
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		name, err := r.resolver.DisplayName(ctx, id)
		if err != nil {
			r.logger.Error().Err(err).Str("member_id", id).Msg("resolving team member handle")
			errs = append(errs, fmt.Errorf("member %s: %w", id, err))
			continue
		}
		if name == "" {
			continue
		}
		next[id] = name
		r.logger.Info().Str("member_id", id).Str("handle", name).Msg("cached team member handle")
	}

	r.mu.Lock()
	r.names = next
	r.mu.Unlock()

	return errors.Join(errs...)
}
