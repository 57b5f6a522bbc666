// Package plugin provides the capsule transform pipeline.
//
// A CapsulePlugin is a named, versioned hook: a Validate gate deciding
// whether the plugin applies to a capsule, plus a Transform that returns
// the enriched capsule. Plugins are registered in an explicit ordered
// Pipeline; the store runs the pipeline before committing a create or
// update, so enrichment happens inside the same logical operation as the
// write.
//
// Plugins are created either by implementing the interface directly or
// with the builder:
//
//	p, err := plugin.New(
//		plugin.WithName("institution-tagger"),
//		plugin.WithVersion("1.0.0"),
//		plugin.WithTransform(func(ctx context.Context, c *capsule.Capsule) (*capsule.Capsule, error) {
//			out := c.Clone()
//			if c.Metadata.Institution != "" {
//				out.Metadata.Tags = append(out.Metadata.Tags, c.Metadata.Institution)
//			}
//			return out, nil
//		}),
//	)
package plugin
