package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bcic-ai/knowledge-sdk/capsule"
)

// Pipeline is an explicit ordered sequence of plugins. Registration order
// is application order; there is no dynamic dispatch.
type Pipeline struct {
	mu      sync.RWMutex
	plugins []CapsulePlugin
	logger  *slog.Logger
}

// NewPipeline creates an empty pipeline.
func NewPipeline(plugins ...CapsulePlugin) (*Pipeline, error) {
	p := &Pipeline{logger: slog.Default()}
	for _, pl := range plugins {
		if err := p.Register(pl); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SetLogger sets the structured logger.
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if logger != nil {
		p.logger = logger
	}
}

// Register appends a plugin to the pipeline. Plugin names must be unique.
func (p *Pipeline) Register(pl CapsulePlugin) error {
	if pl == nil {
		return fmt.Errorf("plugin is nil")
	}
	if pl.Name() == "" {
		return fmt.Errorf("plugin name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.plugins {
		if existing.Name() == pl.Name() {
			return fmt.Errorf("plugin %s is already registered", pl.Name())
		}
	}
	p.plugins = append(p.plugins, pl)
	return nil
}

// Plugins returns the registered plugins in application order.
func (p *Pipeline) Plugins() []CapsulePlugin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]CapsulePlugin(nil), p.plugins...)
}

// Len returns the number of registered plugins.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.plugins)
}

// Apply runs the pipeline over the capsule. Plugins whose Validate gate
// returns false are skipped; a failing Transform aborts the pipeline.
// The input capsule is never mutated.
func (p *Pipeline) Apply(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error) {
	p.mu.RLock()
	plugins := p.plugins
	logger := p.logger
	p.mu.RUnlock()

	cur := c
	for _, pl := range plugins {
		if !pl.Validate(cur) {
			logger.Debug("plugin skipped", "plugin", pl.Name(), "capsule", cur.ID)
			continue
		}

		next, err := pl.Transform(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("plugin %s (%s): %w", pl.Name(), pl.Version(), err)
		}
		if next == nil {
			continue
		}
		cur = next
	}
	return cur, nil
}
