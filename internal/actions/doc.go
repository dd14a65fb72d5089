// Package actions implements the action handlers invoked by the
// dispatcher on behalf of running automations.
//
// Handlers fall into three shapes: request/response RPC to an attached
// service over the broker (device resource access), fire-and-forget
// commands (camera capture requests, IPC passthrough), and the
// notification handler, which can rendezvous with an asynchronous
// media-upload feed before sending so a snapshot taken by one action
// can be attached to the notification sent by the next.
package actions
