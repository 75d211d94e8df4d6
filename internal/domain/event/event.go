package event

import "time"

// Qualifier tells whether a signal reports a new condition or the restore
// of a previously reported one.
type Qualifier string

const (
	// QualifierNew marks a freshly raised condition.
	QualifierNew Qualifier = "new"
	// QualifierRestore marks the clearing of a previously raised condition.
	QualifierRestore Qualifier = "restore"
)

// Classification describes how the broker understood the event code.
type Classification string

const (
	// ClassKnown means the two-letter code is in the broker's vocabulary.
	ClassKnown Classification = "known"
	// ClassUnrecognized means the code is syntactically valid but unknown.
	// Such events are still forwarded so new panel vocabularies pass through.
	ClassUnrecognized Classification = "unrecognized"
)

// AlarmEvent is one decoded alarm signal. It is created by the payload
// decoder from a validated (and, if needed, decrypted) frame and is
// immutable afterwards; the forwarder and the replay store share it read-only.
type AlarmEvent struct {
	// AccountID is the account the panel presented on the wire.
	AccountID string
	// Code is the two-letter signal type, e.g. "BA" for burglary alarm.
	Code string
	// Description is the human-readable name of a known code, empty otherwise.
	Description string
	// Zone is the zero-padded zone number the signal originated from.
	Zone string
	// Qualifier distinguishes new conditions from restores.
	Qualifier Qualifier
	// Classification records whether Code was recognized.
	Classification Classification
	// Timestamp is the panel-supplied event time.
	Timestamp time.Time
	// SyntheticTime is true when the panel omitted a timestamp and
	// ReceivedAt was substituted.
	SyntheticTime bool
	// ReceivedAt is the broker-assigned receive time.
	ReceivedAt time.Time
	// Raw is the plaintext data block the event was decoded from.
	Raw string
}

// Clone returns a copy of the event to avoid leaking internal references.
func (e *AlarmEvent) Clone() *AlarmEvent {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}

// ReplayRecord pairs an event with its forwarding outcome for the
// diagnostic replay buffer.
type ReplayRecord struct {
	// ID is the store-assigned monotonic record identifier.
	ID uint64
	// Event is the decoded alarm event.
	Event *AlarmEvent
	// Forwarded is true once the downstream delivery succeeded.
	Forwarded bool
	// ForwardError holds the terminal delivery error, if delivery was
	// exhausted without success.
	ForwardError string
}
