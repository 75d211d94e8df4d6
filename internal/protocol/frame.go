package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Message type tags accepted on the wire.
const (
	// TypeSIADCS tags a regular alarm signal frame.
	TypeSIADCS = "SIA-DCS"
	// TypeNull tags a link-test frame carrying no event.
	TypeNull = "NULL"
)

// Data block marker bytes, the first character inside the brackets.
const (
	// markerPlaintext prefixes a readable data block.
	markerPlaintext = '#'
	// markerEncrypted prefixes a hex-encoded encrypted data block.
	markerEncrypted = '*'
)

const (
	sequenceLength   = 4
	lengthFieldWidth = 4
	crcFieldWidth    = 4
	minAccountLength = 3
	maxAccountLength = 16
)

var (
	// ErrMalformed is returned when a frame does not match the wire grammar.
	ErrMalformed = errors.New("malformed frame")
	// ErrChecksum is returned when the CRC or length field does not cover
	// the frame content.
	ErrChecksum = errors.New("frame checksum invalid")
)

// Frame is one parsed protocol message. The codec fills every field before
// any later pipeline stage sees it; a frame that fails the grammar or the
// checksum never leaves Parse.
type Frame struct {
	// MessageType is the literal protocol tag, e.g. "SIA-DCS".
	MessageType string
	// Sequence is the panel's 4-digit sequence, echoed verbatim in responses.
	Sequence string
	// ReceiverLine is the collapsed receiver/line digit between sequence
	// and length. Carried for diagnostics only.
	ReceiverLine string
	// AccountID is the account identifier the panel presented.
	AccountID string
	// Encrypted reports whether the data block carries ciphertext.
	Encrypted bool
	// Payload is the data block content including its marker byte.
	// For encrypted frames the ciphertext hex follows the marker.
	Payload string
	// Raw is the frame body as received, without CRC prefix or terminator.
	Raw string
}

// Parse validates and splits one frame. The input is a single complete
// frame with line terminators already stripped. Parse holds no state
// between calls.
//
// A frame may carry a 4-hex-digit CRC-16 prefix in front of the body;
// bodies start with a double quote, so the two layouts are unambiguous.
// The CRC (when present) and the embedded length field are validated
// before the grammar is interpreted any further.
func Parse(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	body := string(data)

	// CRC-prefixed layout: 4 hex digits, then the quoted body.
	if body[0] != '"' {
		if len(body) < crcFieldWidth+1 || body[crcFieldWidth] != '"' {
			return nil, fmt.Errorf("%w: no message type tag", ErrMalformed)
		}

		wantCRC := strings.ToUpper(body[:crcFieldWidth])
		body = body[crcFieldWidth:]

		if !isHex(wantCRC) {
			return nil, fmt.Errorf("%w: checksum field is not hex", ErrMalformed)
		}

		if ChecksumHex([]byte(body)) != wantCRC {
			return nil, fmt.Errorf("%w: crc mismatch", ErrChecksum)
		}
	}

	frame := &Frame{Raw: body}

	rest, err := parseBody(frame, body)
	if err != nil {
		return nil, err
	}

	// Anything after the data block is a legacy timestamp tail; it is
	// tolerated but must not open another block.
	if rest != "" && !strings.HasPrefix(rest, "_") {
		return nil, fmt.Errorf("%w: trailing garbage after data block", ErrMalformed)
	}

	return frame, nil
}

// parseBody splits the quoted body into its fields and returns the unparsed
// tail after the data block.
func parseBody(frame *Frame, body string) (string, error) {
	closing := strings.IndexByte(body[1:], '"')
	if closing < 0 {
		return "", fmt.Errorf("%w: unterminated message type tag", ErrMalformed)
	}

	frame.MessageType = body[1 : closing+1]
	if frame.MessageType != TypeSIADCS && frame.MessageType != TypeNull {
		return "", fmt.Errorf("%w: unsupported message type %q", ErrMalformed, frame.MessageType)
	}

	rest := body[closing+2:]
	if len(rest) < sequenceLength+1+lengthFieldWidth {
		return "", fmt.Errorf("%w: truncated frame header", ErrMalformed)
	}

	frame.Sequence = rest[:sequenceLength]
	if !isDigits(frame.Sequence) {
		return "", fmt.Errorf("%w: non-numeric sequence", ErrMalformed)
	}

	frame.ReceiverLine = rest[sequenceLength : sequenceLength+1]
	if !isDigits(frame.ReceiverLine) {
		return "", fmt.Errorf("%w: non-numeric receiver/line token", ErrMalformed)
	}

	lengthField := rest[sequenceLength+1 : sequenceLength+1+lengthFieldWidth]
	if !isDigits(lengthField) {
		return "", fmt.Errorf("%w: non-numeric length field", ErrMalformed)
	}

	addressed := rest[sequenceLength+1+lengthFieldWidth:]

	open := strings.IndexByte(addressed, '[')
	if open < 0 {
		return "", fmt.Errorf("%w: missing data block", ErrMalformed)
	}

	// The data block cannot contain ']', so the first one after '[' closes
	// it; anything beyond is the frame tail.
	closeOffset := strings.IndexByte(addressed[open:], ']')
	if closeOffset < 0 {
		return "", fmt.Errorf("%w: unterminated data block", ErrMalformed)
	}

	closeIdx := open + closeOffset

	frame.AccountID = addressed[:open]
	if len(frame.AccountID) < minAccountLength || len(frame.AccountID) > maxAccountLength ||
		!isAlphanumeric(frame.AccountID) {
		return "", fmt.Errorf("%w: bad account field", ErrMalformed)
	}

	// The length field counts the addressed portion: the receiver/line
	// token plus account plus the bracketed block.
	want := len(frame.ReceiverLine) + open + (closeIdx - open + 1)
	if fmt.Sprintf("%04d", want) != lengthField {
		return "", fmt.Errorf("%w: length field mismatch", ErrChecksum)
	}

	blockContent := addressed[open+1 : closeIdx]

	switch {
	case frame.MessageType == TypeNull && blockContent == "":
		// Link test, empty block allowed.
	case blockContent == "":
		return "", fmt.Errorf("%w: empty data block", ErrMalformed)
	case blockContent[0] == markerPlaintext:
		frame.Encrypted = false
	case blockContent[0] == markerEncrypted:
		frame.Encrypted = true
	default:
		return "", fmt.Errorf("%w: unknown data block marker %q", ErrMalformed, blockContent[0])
	}

	frame.Payload = blockContent

	return addressed[closeIdx+1:], nil
}

// isDigits reports whether s is non-empty and all ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// isHex reports whether s is non-empty uppercase hex.
func isHex(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}

	return true
}

// isAlphanumeric reports whether s contains only ASCII letters and digits.
func isAlphanumeric(s string) bool {
	for i := range len(s) {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}

	return true
}
