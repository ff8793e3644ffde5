// Package vault encrypts long-lived credentials such as bot tokens and
// enforcement API keys.
package vault

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

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

var (
	// ErrInvalidKey is returned by New when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("vault: encryption key must be 32 bytes")
	// ErrMalformedCiphertext is returned by Decrypt for input that was not
	// produced by Encrypt with the same key.
	ErrMalformedCiphertext = errors.New("vault: malformed ciphertext")
)

// Vault performs AES-256-CBC encryption with PKCS#7 padding. Output is
// "iv_hex:ciphertext_hex" with a fresh random IV per call.
type Vault struct {
	block cipher.Block
	rand  io.Reader
}

// New creates a Vault for the given key. There is no key rotation: values
// encrypted under a different key fail to decrypt.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{block: block, rand: rand.Reader}, nil
}

// Encrypt returns the hex encoded IV and ciphertext joined by a colon.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(v.rand, iv); err != nil {
		return "", fmt.Errorf("vault: generate iv: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(v.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It splits on the first colon.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(ciphertext, ":")
	if !ok {
		return "", fmt.Errorf("%w: missing separator", ErrMalformedCiphertext)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedCiphertext, err)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", fmt.Errorf("%w: body: %v", ErrMalformedCiphertext, err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv length %d", ErrMalformedCiphertext, len(iv))
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: body length %d", ErrMalformedCiphertext, len(ct))
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(v.block, iv).CryptBlocks(out, ct)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
