package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/sia-bridge/internal/domain/event"
)

// ErrDecode is returned when a decrypted or plaintext data block does not
// decode into an alarm event.
var ErrDecode = errors.New("payload decode failed")

const (
	// timestampLayout is the literal panel timestamp inside the data block.
	timestampLayout = "20060102150405"
	// zoneWidth is the width zone numbers are padded to.
	zoneWidth = 3
)

// DecodePayload interprets a plaintext data block into an alarm event.
//
// The block is the bracketed content with its '#' marker still attached:
// '#' QUALIFIER CODE ZONE '|' [TIMESTAMP]. Unknown two-letter codes are not
// rejected; they produce an event classified as unrecognized so that panel
// vocabularies the broker does not enumerate still pass through. A missing
// timestamp substitutes receivedAt and flags the event as synthetic.
func DecodePayload(
	accountID string,
	payload string,
	receivedAt time.Time,
	loc *time.Location,
) (*event.AlarmEvent, error) {
	if loc == nil {
		loc = time.Local
	}

	if payload == "" || payload[0] != markerPlaintext {
		return nil, fmt.Errorf("%w: missing plaintext marker", ErrDecode)
	}

	body := payload[1:]

	var qualifier event.Qualifier

	switch {
	case strings.HasPrefix(body, "N"):
		qualifier = event.QualifierNew
	case strings.HasPrefix(body, "R"):
		qualifier = event.QualifierRestore
	default:
		return nil, fmt.Errorf("%w: unknown qualifier marker", ErrDecode)
	}

	body = body[1:]
	if len(body) < 2 || !isUpperAlpha(body[:2]) {
		return nil, fmt.Errorf("%w: bad signal code", ErrDecode)
	}

	code := body[:2]
	body = body[2:]

	zoneDigits, body := splitDigits(body)

	var stamp string

	if body != "" {
		if body[0] != '|' {
			return nil, fmt.Errorf("%w: unexpected byte after zone", ErrDecode)
		}

		stamp = body[1:]
	}

	decoded := &event.AlarmEvent{
		AccountID:      accountID,
		Code:           code,
		Zone:           padZone(zoneDigits),
		Qualifier:      qualifier,
		Classification: event.ClassUnrecognized,
		ReceivedAt:     receivedAt,
		Raw:            payload,
	}

	if description, ok := event.DescribeCode(code); ok {
		decoded.Classification = event.ClassKnown
		decoded.Description = description
	}

	if stamp == "" {
		decoded.Timestamp = receivedAt
		decoded.SyntheticTime = true

		return decoded, nil
	}

	when, err := time.ParseInLocation(timestampLayout, stamp, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrDecode, stamp)
	}

	decoded.Timestamp = when

	return decoded, nil
}

// splitDigits cuts the leading run of ASCII digits off s.
func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}

	return s[:i], s[i:]
}

// padZone left-pads the zone number; panels that omit it report zone 000.
func padZone(zone string) string {
	for len(zone) < zoneWidth {
		zone = "0" + zone
	}

	return zone
}

// isUpperAlpha reports whether s is entirely ASCII uppercase letters.
func isUpperAlpha(s string) bool {
	for i := range len(s) {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}

	return true
}
