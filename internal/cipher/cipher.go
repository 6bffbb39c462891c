// Package cipher provides the symmetric encryption used for command and
// notification payloads on the notification socket.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// IVSize is the size of the initialisation vector sent with every frame.
const IVSize = aes.BlockSize

var (
	// ErrInvalidKey is returned when the shared secret is not a valid AES key.
	ErrInvalidKey = errors.New("invalid shared secret length")

	// ErrInvalidIV is returned when the IV is not IVSize bytes.
	ErrInvalidIV = errors.New("invalid iv length")

	// ErrInvalidPadding is returned when decrypted data has malformed PKCS#7 padding.
	ErrInvalidPadding = errors.New("invalid padding")
)

// Cipher encrypts and decrypts frame payloads with a shared secret.
type Cipher interface {
	Encrypt(plain, iv, key []byte) ([]byte, error)
	Decrypt(ciphertext, iv, key []byte) ([]byte, error)
}

// AESCBC is the identity host's payload cipher: AES in CBC mode with
// PKCS#7 padding.
type AESCBC struct{}

// NewAESCBC returns the default payload cipher.
func NewAESCBC() *AESCBC {
	return &AESCBC{}
}

// Encrypt pads and encrypts plain.
func (AESCBC) Encrypt(plain, iv, key []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	padded := pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt decrypts ciphertext and strips its padding.
func (AESCBC) Decrypt(ciphertext, iv, key []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

// RandomIV returns a fresh random IV.
func RandomIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	return iv, nil
}

func newBlock(key, iv []byte) (gocipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIV, len(iv))
	}
	return aes.NewCipher(key)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
