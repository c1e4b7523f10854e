// Package command implements a fault-tolerant remote-call execution engine.
// It composes service discovery, bulkhead-bounded circuit breaking, retry
// with backoff, and optional read-through caching around a caller-supplied
// remote invocation.
//
// A command is described by a Descriptor built with NewDescriptor, then
// run against an Engine via the package-level Execute (synchronous) or
// Enqueue (returns a channel of one Result) functions. Both share
// identical execution semantics; only the delivery shape differs.
//
// Example:
//
//	engine := command.NewEngine()
//
//	desc, err := command.NewDescriptor[CustomDTO]().
//	    WithName("get-widget").
//	    WithURIProvider(command.NewConstantURIProvider[CustomDTO]("http://widgets.internal")).
//	    WithCallback(func(ctx context.Context, cmdCtx *command.Context, baseURI string) (CustomDTO, error) {
//	        return fetchWidget(ctx, baseURI)
//	    }).
//	    Build()
//
//	result, err := command.Execute(ctx, engine, desc)
package command
