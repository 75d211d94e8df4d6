package protocol

import "fmt"

// BuildFrame serializes a complete CRC-prefixed frame body. The data block
// is the bracketed content including its marker byte. The receiver side of
// this codec only parses; building lives here for the simulator and for
// round-trip tests.
func BuildFrame(messageType, sequence, receiverLine, accountID, dataBlock string) []byte {
	addressedLength := len(receiverLine) + len(accountID) + len(dataBlock) + 2

	body := fmt.Sprintf("\"%s\"%s%s%04d%s[%s]",
		messageType, sequence, receiverLine, addressedLength, accountID, dataBlock)

	return []byte(ChecksumHex([]byte(body)) + body)
}

// PlaintextBlock renders the plaintext data block for a signal:
// '#' qualifier, code, zone and an optional timestamp.
func PlaintextBlock(qualifier, code, zone, timestamp string) string {
	block := "#" + qualifier + code + zone

	if timestamp != "" {
		block += "|" + timestamp
	} else {
		block += "|"
	}

	return block
}
