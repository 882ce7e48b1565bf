// Package genai is the hosted text-generation boundary. The synthesis
// service depends on nothing beyond "generate text from a prompt
// string, return text"; prompt construction and response parsing stay
// on the caller's side.
package genai

import (
	"context"
	"time"
)

// Client is a hosted text-generation backend.
type Client interface {
	ID() string
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Config holds configuration for a client instance.
type Config struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}
