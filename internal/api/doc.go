// Package api provides the operator HTTP API for Hearth Core.
//
// It exposes automation CRUD, engine message injection and restore
// hooks to operator tooling. The server follows the same lifecycle
// pattern as the other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
