// Package receiver implements the panel-facing TCP service: the listener,
// the per-connection state machine, and the frame pipeline that validates,
// authorizes, decrypts and decodes signals before acknowledging them.
//
// Acknowledgment latency is the contract with the panel: everything after
// the ACK is written (recording, heartbeat filtering, downstream delivery)
// happens off the connection's critical path.
package receiver
