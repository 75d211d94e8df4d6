// Package protocol implements the framed alarm wire format: parsing and
// validation of incoming frames (grammar, CRC-16, embedded length field),
// decoding of plaintext data blocks into alarm events, and serialization of
// ACK/NAK responses.
//
// The codec is stateless: every function is a pure function of its input,
// which keeps it trivially fuzzable and lets connection handlers share it
// without coordination.
package protocol
