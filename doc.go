// Package sdk is the entry point for the knowledge capsule system: a
// versioned capsule store scored along the four DATM quality dimensions,
// a typed knowledge graph index, and a query service composing the two.
//
// The System facade wires the pieces together from functional options:
//
//	system, err := sdk.NewSystem(
//	    sdk.WithConfigPath("knowledge.yaml"),
//	    sdk.WithPlugins(myPlugin),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := system.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer system.Shutdown(ctx)
//
// Each subsystem is usable on its own: store holds capsules, graph holds
// the knowledge graph, query runs composed searches with graph context,
// score implements DATM computation, and persist provides the durability
// backends. The sdk package only composes them.
package sdk
