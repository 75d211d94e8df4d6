package protocol

import "fmt"

// Reason is the short rejection code a NAK carries back to the panel.
// Panels alter their retry behaviour based on it, so the codes distinguish
// every rejection class the pipeline can produce.
type Reason string

const (
	// ReasonChecksum rejects a frame whose CRC or length field is wrong.
	ReasonChecksum Reason = "CRC"
	// ReasonMalformed rejects a frame that does not match the grammar.
	ReasonMalformed Reason = "FMT"
	// ReasonUnknownAccount rejects a frame from an account not in the registry.
	ReasonUnknownAccount Reason = "ACC"
	// ReasonPolicyMismatch rejects a frame whose encryption flag disagrees
	// with the account's key configuration.
	ReasonPolicyMismatch Reason = "EPM"
	// ReasonDecryptionFailed rejects an encrypted frame that would not decrypt.
	ReasonDecryptionFailed Reason = "DEC"
	// ReasonDecodeFailed rejects a frame whose payload would not decode.
	ReasonDecodeFailed Reason = "EVT"
)

// String returns the wire token of the reason.
func (r Reason) String() string {
	return string(r)
}

// responseAccount substitutes a placeholder when the account could not be
// parsed out of the offending frame.
func responseAccount(accountID string) string {
	if accountID == "" {
		return "0"
	}

	return accountID
}

// responseSequence substitutes a zero sequence when the offending frame's
// sequence could not be parsed.
func responseSequence(sequence string) string {
	if sequence == "" {
		return "0000"
	}

	return sequence
}

// BuildACK serializes a positive acknowledgment echoing the frame's
// sequence and account, terminated for the wire.
func BuildACK(sequence, accountID string) []byte {
	return fmt.Appendf(nil, "*ACK\"%sL0R0#%s[]\r\n", responseSequence(sequence), responseAccount(accountID))
}

// BuildNAK serializes a negative acknowledgment carrying the rejection
// reason in the data block.
func BuildNAK(sequence, accountID string, reason Reason) []byte {
	return fmt.Appendf(nil, "*NAK\"%sL0R0#%s[%s]\r\n", responseSequence(sequence), responseAccount(accountID), reason)
}
