// Package siacrypt implements the block encryption panels apply to the
// data block: AES in CBC mode with a zero IV and PKCS#7 padding, the
// ciphertext hex-encoded on the wire. The key length (16, 24 or 32 bytes)
// selects the cipher strength.
package siacrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrKeySize is returned for keys that are not 16, 24 or 32 bytes.
	ErrKeySize = errors.New("key must be 16, 24 or 32 bytes")
	// ErrDecryptionFailed is returned when ciphertext does not decode,
	// does not align to the block size, or carries bad padding.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// ValidKeySize reports whether a key length selects a cipher strength.
func ValidKeySize(key []byte) bool {
	switch len(key) {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}

// Decrypt recovers the plaintext data block from its hex-encoded form.
// Failures report ErrDecryptionFailed without distinguishing the cause to
// the caller; details stay in the wrapped message and never include the key.
func Decrypt(ciphertextHex string, key []byte) ([]byte, error) {
	if !ValidKeySize(key) {
		return nil, ErrKeySize
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex", ErrDecryptionFailed)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
	}

	plaintext := make([]byte, len(ciphertext))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return stripPadding(plaintext)
}

// Encrypt is the inverse of Decrypt; the receiver itself never encrypts,
// but the simulator and round-trip tests do.
func Encrypt(plaintext, key []byte) (string, error) {
	if !ValidKeySize(key) {
		return "", ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("build cipher: %w", err)
	}

	padded := applyPadding(plaintext)
	ciphertext := make([]byte, len(padded))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(ciphertext), nil
}

// applyPadding appends PKCS#7 padding up to the block size.
func applyPadding(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, 0, len(data)+padLen)
	padded = append(padded, data...)

	for range padLen {
		padded = append(padded, byte(padLen))
	}

	return padded
}

// stripPadding validates and removes PKCS#7 padding.
func stripPadding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryptionFailed)
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryptionFailed)
		}
	}

	return data[:len(data)-padLen], nil
}
