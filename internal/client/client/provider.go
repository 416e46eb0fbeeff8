package client

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/shellkeeper/internal/logging"
)

// Factory constructs a Client from the service URL and public key.
type Factory func(serviceURL, publicKey string) (Client, error)

// Provider hands out one shared Client, built on first use.
type Provider struct {
	mu         sync.Mutex
	client     Client
	factory    Factory
	serviceURL string
	publicKey  string
	logger     logging.Logger
}

func NewProvider(serviceURL, publicKey string, factory Factory, logger logging.Logger) *Provider {
	return &Provider{serviceURL: serviceURL, publicKey: publicKey, factory: factory, logger: logger}
}

// StaticProvider wraps an already constructed client.
func StaticProvider(c Client) *Provider {
	return &Provider{client: c}
}

// Get returns the shared client, constructing it if needed. When the factory
// or a configuration value is missing, or construction fails, the problem is
// logged and Get returns nil; the next call tries again.
func (p *Provider) Get(ctx context.Context) Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client
	}

	if p.factory == nil {
		p.logError(ctx, "backend client factory is not available")
		return nil
	}
	if p.serviceURL == "" || p.publicKey == "" {
		p.logError(ctx, "backend configuration is incomplete",
			"has_url", p.serviceURL != "", "has_key", p.publicKey != "")
		return nil
	}

	c, err := p.factory(p.serviceURL, p.publicKey)
	if err != nil {
		p.logError(ctx, "backend client construction failed", "error", err)
		return nil
	}
	if c == nil {
		p.logError(ctx, "backend client factory returned nothing")
		return nil
	}

	p.client = c
	return c
}

func (p *Provider) logError(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(ctx, msg, args...)
	}
}
