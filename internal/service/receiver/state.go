package receiver

// connState is the explicit per-connection state machine. Every frame
// walks Validating → (Authorizing | Decrypting) → Decoding → Responding
// and returns to AwaitingFrame; Closed is terminal and reachable from any
// state on socket error, idle timeout, or disconnect.
type connState int

const (
	// stateAwaitingFrame blocks on the next complete frame.
	stateAwaitingFrame connState = iota
	// stateValidating runs the frame codec.
	stateValidating
	// stateAuthorizing checks the account registry.
	stateAuthorizing
	// stateDecrypting recovers an encrypted data block.
	stateDecrypting
	// stateDecoding interprets the plaintext data block.
	stateDecoding
	// stateResponding writes the ACK or NAK.
	stateResponding
	// stateClosed is terminal; the socket is released.
	stateClosed
)

// String names the state for logs.
func (s connState) String() string {
	switch s {
	case stateAwaitingFrame:
		return "awaiting_frame"
	case stateValidating:
		return "validating"
	case stateAuthorizing:
		return "authorizing"
	case stateDecrypting:
		return "decrypting"
	case stateDecoding:
		return "decoding"
	case stateResponding:
		return "responding"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
