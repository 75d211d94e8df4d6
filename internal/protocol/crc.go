package protocol

import "fmt"

// crcPolynomial is the reflected CRC-16 polynomial alarm receivers use on
// the wire (the Modbus variant).
const crcPolynomial uint16 = 0xA001

// Checksum computes the CRC-16 of the frame body.
func Checksum(data []byte) uint16 {
	var crc uint16

	for _, letter := range data {
		temp := uint16(letter)
		for range 8 {
			temp ^= crc & 1
			crc >>= 1

			if temp&1 != 0 {
				crc ^= crcPolynomial
			}

			temp >>= 1
		}
	}

	return crc
}

// ChecksumHex renders the CRC-16 of the frame body as the 4-digit
// uppercase hex field panels put in front of the body.
func ChecksumHex(data []byte) string {
	return fmt.Sprintf("%04X", Checksum(data))
}
