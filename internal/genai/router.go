package genai

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages multiple text-generation clients and falls back down
// the registration order when the preferred one fails.
type Router struct {
	mu       sync.RWMutex
	clients  map[string]Client
	order    []string
	defaults string
	logger   *zap.Logger
}

// NewRouter creates a new client router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		clients: make(map[string]Client),
		logger:  logger,
	}
}

// Register adds a client to the router. The first registered client
// becomes the default.
func (r *Router) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID()]; !ok {
		r.order = append(r.order, c.ID())
	}
	r.clients[c.ID()] = c
	if r.defaults == "" {
		r.defaults = c.ID()
	}
	r.logger.Info("registered model client", zap.String("id", c.ID()), zap.String("name", c.Name()))
}

// SetDefault sets the preferred client.
func (r *Router) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = id
}

// Get returns a client by ID.
func (r *Router) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// List returns all registered clients in registration order.
func (r *Router) List() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// Generate runs the prompt against the default client, falling back to
// the remaining clients in registration order when it fails.
func (r *Router) Generate(ctx context.Context, prompt string) (string, error) {
	r.mu.RLock()
	primary, ok := r.clients[r.defaults]
	order := append([]string(nil), r.order...)
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("no model client registered")
	}

	text, err := primary.Generate(ctx, prompt)
	if err == nil {
		return text, nil
	}
	r.logger.Warn("primary model client failed, trying fallbacks",
		zap.String("client", primary.ID()), zap.Error(err))

	for _, id := range order {
		if id == primary.ID() {
			continue
		}
		fb, ok := r.Get(id)
		if !ok {
			continue
		}
		text, err = fb.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		r.logger.Warn("fallback model client failed", zap.String("client", id), zap.Error(err))
	}

	return "", fmt.Errorf("all model clients failed: %w", err)
}
