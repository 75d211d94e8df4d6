package forwarder

import (
	"github.com/oshokin/sia-bridge/internal/domain/event"
)

// timestampFormat is the layout the downstream consumer expects.
const timestampFormat = "2006-01-02 15:04:05"

// Payload is the JSON body delivered to the downstream target.
type Payload struct {
	// AccountCode is the panel account the event came from.
	AccountCode string `json:"account_code"`
	// Event is the two-letter signal code.
	Event string `json:"event"`
	// Description names known codes for consumers without a SIA table.
	Description string `json:"description,omitempty"`
	// Qualifier is "new" or "restore".
	Qualifier string `json:"qualifier"`
	// Classification is "known" or "unrecognized".
	Classification string `json:"classification"`
	// Zone is the zero-padded zone number.
	Zone string `json:"zone"`
	// Timestamp is the event time rendered in the broker's timezone.
	Timestamp string `json:"timestamp"`
	// SyntheticTimestamp is true when the panel sent no timestamp.
	SyntheticTimestamp bool `json:"synthetic_timestamp,omitempty"`
	// ReceivedAt is the broker receive time.
	ReceivedAt string `json:"received_at"`
	// Raw is the original plaintext data block.
	Raw string `json:"raw,omitempty"`
}

// mapEvent builds the delivery body from a decoded event.
func mapEvent(evt *event.AlarmEvent) Payload {
	return Payload{
		AccountCode:        evt.AccountID,
		Event:              evt.Code,
		Description:        evt.Description,
		Qualifier:          string(evt.Qualifier),
		Classification:     string(evt.Classification),
		Zone:               evt.Zone,
		Timestamp:          evt.Timestamp.Format(timestampFormat),
		SyntheticTimestamp: evt.SyntheticTime,
		ReceivedAt:         evt.ReceivedAt.Format(timestampFormat),
		Raw:                evt.Raw,
	}
}
