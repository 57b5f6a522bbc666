package plugin

import (
	"context"
	"fmt"

	"github.com/bcic-ai/knowledge-sdk/capsule"
)

// TransformFunc enriches a capsule. It must return a new or cloned
// capsule rather than mutating its argument; the identity fields and
// version are owned by the store and must not change.
type TransformFunc func(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error)

// ValidateFunc decides whether the plugin applies to the capsule.
// Returning false skips the plugin for that capsule, it is not an error.
type ValidateFunc func(c *capsule.Capsule) bool

// CapsulePlugin is a named, versioned capsule transform hook.
type CapsulePlugin interface {
	// Name returns the unique identifier for the plugin.
	Name() string

	// Version returns the semantic version of the plugin.
	Version() string

	// Validate reports whether the plugin applies to the capsule.
	Validate(c *capsule.Capsule) bool

	// Transform returns the enriched capsule.
	Transform(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error)
}

// funcPlugin is the builder-backed CapsulePlugin implementation.
type funcPlugin struct {
	name      string
	version   string
	validate  ValidateFunc
	transform TransformFunc
}

// Option configures a plugin under construction.
type Option func(*funcPlugin)

// WithName sets the plugin name.
func WithName(name string) Option {
	return func(p *funcPlugin) { p.name = name }
}

// WithVersion sets the plugin version.
func WithVersion(version string) Option {
	return func(p *funcPlugin) { p.version = version }
}

// WithValidate sets the applicability gate. Without one the plugin
// applies to every capsule.
func WithValidate(fn ValidateFunc) Option {
	return func(p *funcPlugin) { p.validate = fn }
}

// WithTransform sets the transform. Required.
func WithTransform(fn TransformFunc) Option {
	return func(p *funcPlugin) { p.transform = fn }
}

// New builds a CapsulePlugin from the given options.
func New(opts ...Option) (CapsulePlugin, error) {
	p := &funcPlugin{
		version:  "0.0.0",
		validate: func(*capsule.Capsule) bool { return true },
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.name == "" {
		return nil, fmt.Errorf("plugin name is required")
	}
	if p.transform == nil {
		return nil, fmt.Errorf("plugin %s: transform is required", p.name)
	}
	return p, nil
}

func (p *funcPlugin) Name() string    { return p.name }
func (p *funcPlugin) Version() string { return p.version }

func (p *funcPlugin) Validate(c *capsule.Capsule) bool {
	return p.validate(c)
}

func (p *funcPlugin) Transform(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error) {
	return p.transform(ctx, c)
}
