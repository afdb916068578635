// Package core provides the parse service shared by the HTTP server and the CLI.
//
// The package wraps the StarTable engine with everything a host needs around
// it, independent of any transport. It can be used by web handlers, CLI tools,
// or tests without modification.
//
// # Architecture
//
//   - Service: the entry point for all operations (parse, parse-and-store, spans).
//   - ParseLimiter: bounds how many inputs are decoded at once.
//   - Directive registry: optional handlers that post-process directive blocks.
//   - Error messages: maps technical errors to user-facing codes.
//
// # Parse Flow
//
//  1. Request options are merged with the configured defaults
//  2. A parse slot is acquired from the [ParseLimiter]
//  3. The body is opened as a CSV or Excel row source
//  4. Blocks stream out of [startable.Stream]; directive handlers run on each directive
//  5. [Service.ParseAndStore] additionally persists the result through a [BlockStore]
//
// # Directive Handlers
//
// Handlers are registered at init time using [RegisterDirective]:
//
//	core.RegisterDirective("include", func(ctx context.Context, b startable.Block) ([]startable.Block, error) {
//	    d, _ := b.Directive()
//	    return loadIncluded(ctx, d.Lines)
//	})
//
// # Error Handling
//
// Errors are returned wrapped with context. Use [MapError] to convert them to
// user-friendly messages with error codes for display.
package core
