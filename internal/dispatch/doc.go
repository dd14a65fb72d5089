// Package dispatch executes the side effects automations emit.
//
// Engine backends hand their emitted actions - JSON-RPC-shaped requests,
// singly or in nested arrays - to the Dispatcher, which flattens them
// and runs each on a bounded worker pool. Handlers are registered per
// method name (device.write, notify.send, ...); the dispatcher never
// knows what an action means.
//
// The feedback loop: a request carrying an id gets exactly one response
// message posted back into the engine host, whether the handler
// succeeded, failed, or was never found. The automation's own
// specification decides how to react to an error response; the
// dispatcher never retries.
package dispatch
