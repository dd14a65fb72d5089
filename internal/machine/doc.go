// Package machine manages automation instances ("machines"): durable
// CRUD, specification transcoding and versioning, and the enable/disable
// lifecycle against the engine host.
//
// A machine is an id plus a canonical specification text and an enabled
// flag. The Registry owns the only in-memory representation of each
// machine, persists every mutation through a Repository, and translates
// CRUD into engine enable/disable calls. Lifecycle changes are broadcast
// through an EventPublisher so other services can react.
//
// Specifications arrive in whatever dialect the caller has; a Transcoder
// canonicalises them and tags the result with its version. At load time
// machines carrying a stale version are re-transcoded from their
// retained original text, letting the format evolve without manual
// migration.
//
// # Layers
//
//	Registry   - thread-safe map + lifecycle orchestration
//	Repository - persistence interface, SQLite implementation
//	Transcoder - spec canonicalisation, passthrough default
//
// The registry is deliberately availability-favouring: a failed
// persistence write is logged and the in-memory/engine state still
// advances, accepting eventual inconsistency after a crash.
package machine
