// Package crypto encrypts direct-message text bodies at rest.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const aes256KeySize = 32

var (
	ErrInvalidKeySize = errors.New("invalid message key size (must be 32 bytes)")
	ErrDecryption     = errors.New("message decryption failed")
)

// DecryptionError describes why a stored token could not be decrypted.
// It matches ErrDecryption with errors.Is.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt message: %s: %v", e.Reason, e.Err)
	}
	return "decrypt message: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// Cipher is the message-body cipher the messaging service depends on.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// cbcCipher is AES-256-CBC with PKCS#7 padding. Tokens are hex(iv) + ":" + hex(ciphertext).
type cbcCipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewCBCCipher creates a Cipher for the given 32-byte key.
func NewCBCCipher(key []byte) (Cipher, error) {
	if len(key) != aes256KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	return &cbcCipher{block: block, rand: rand.Reader}, nil
}

// Encrypt draws a fresh IV for every call, so equal plaintexts yield different tokens.
func (c *cbcCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

func (c *cbcCipher) Decrypt(token string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(token, ":")
	if !ok {
		return "", &DecryptionError{Reason: "missing iv separator"}
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", &DecryptionError{Reason: "decode iv", Err: err}
	}
	if len(iv) != aes.BlockSize {
		return "", &DecryptionError{Reason: fmt.Sprintf("iv length %d", len(iv))}
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &DecryptionError{Reason: "decode ciphertext", Err: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: fmt.Sprintf("ciphertext length %d", len(ciphertext))}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", &DecryptionError{Reason: "bad padding", Err: err}
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding size")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-n], nil
}
