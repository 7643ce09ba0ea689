package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T) Cipher {
	t.Helper()
	c, err := NewCBCCipher(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := []string{
		"",
		"hello",
		"exactly sixteen!",
		strings.Repeat("long message body ", 40),
		"emoji 👋 and ünïcödé",
	}
	for _, in := range inputs {
		token, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("encrypt %q: %v", in, err)
		}
		if strings.Contains(token, in) && in != "" {
			t.Fatalf("token leaks plaintext %q", in)
		}
		out, err := c.Decrypt(token)
		if err != nil {
			t.Fatalf("decrypt %q: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: got %q want %q", out, in)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same text")
	if err != nil {
		t.Fatalf("encrypt first: %v", err)
	}
	second, err := c.Encrypt("same text")
	if err != nil {
		t.Fatalf("encrypt second: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens for equal plaintexts")
	}

	ivHex, ctHex, ok := strings.Cut(first, ":")
	if !ok {
		t.Fatalf("token %q has no separator", first)
	}
	if len(ivHex) != 32 {
		t.Fatalf("expected 16-byte hex iv, got %d chars", len(ivHex))
	}
	if len(ctHex)%32 != 0 {
		t.Fatalf("ciphertext is not block aligned: %d chars", len(ctHex))
	}
}

func TestDecryptMalformedTokens(t *testing.T) {
	c := newTestCipher(t)
	valid, err := c.Encrypt("hello")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ivHex, ctHex, _ := strings.Cut(valid, ":")

	tests := map[string]string{
		"no separator":       ivHex + ctHex,
		"iv not hex":         "zz" + ivHex[2:] + ":" + ctHex,
		"short iv":           ivHex[:8] + ":" + ctHex,
		"empty ciphertext":   ivHex + ":",
		"unaligned":          ivHex + ":" + ctHex[:30],
		"ciphertext not hex": ivHex + ":" + strings.Repeat("g", 32),
		"plaintext stored":   "hello",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(token)
			if err == nil {
				t.Fatalf("expected error for %q", token)
			}
			if !errors.Is(err, ErrDecryption) {
				t.Fatalf("expected ErrDecryption, got %v", err)
			}
			var decErr *DecryptionError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecryptionError, got %T", err)
			}
		})
	}
}

func TestNewCBCCipherRejectsBadKey(t *testing.T) {
	if _, err := NewCBCCipher(make([]byte, 16)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestPKCS7Unpad(t *testing.T) {
	block := bytes.Repeat([]byte{4}, 16)
	out, err := pkcs7Unpad(block, 16)
	if err != nil || len(out) != 12 {
		t.Fatalf("expected 12 bytes, got %d (%v)", len(out), err)
	}

	bad := append(bytes.Repeat([]byte{'a'}, 15), 0)
	if _, err := pkcs7Unpad(bad, 16); err == nil {
		t.Fatalf("expected zero padding byte to be rejected")
	}
}
