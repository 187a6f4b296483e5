// Package crypto implements the encryption subsystem protecting sensitive
// captured state: PBKDF2 key derivation with a per-session cached salt, and
// AES-256-CBC encryption with PKCS#7 padding emitted as base64 text suitable
// for embedding in a state file.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the number of random salt bytes used for key derivation.
	SaltLength = 32
	// Iterations is the PBKDF2 iteration count.
	Iterations = 100000
	// KeyLength is the derived key size in bytes (AES-256).
	KeyLength = 32
)

// ErrDecryptionFailed indicates a payload could not be decrypted, either
// because the passphrase is wrong or because the payload is corrupted.
// Decrypt never returns partial or garbage plaintext.
var ErrDecryptionFailed = errors.New("decryption failed")

// KeyMaterial holds a derived key together with the salt it was derived from.
// It is cached by a Session for the session's lifetime and is never persisted.
type KeyMaterial struct {
	Key  []byte
	Salt []byte
}

// deriveKey stretches a passphrase into an AES-256 key using PBKDF2-SHA256.
func deriveKey(passphrase string, salt []byte) KeyMaterial {
	key := pbkdf2.Key([]byte(passphrase), salt, Iterations, KeyLength, sha256.New)
	return KeyMaterial{Key: key, Salt: salt}
}

// Encrypt encrypts plain with AES-256-CBC and PKCS#7 padding using the
// provided key material and returns a base64-encoded payload.
//
// Payload layout before base64 encoding:
//
//	┌────────────┬────────────┬───────────────────────┐
//	│ 32 bytes   │ 16 bytes   │ remaining bytes       │
//	│ PBKDF2 salt│ CBC IV     │ padded ciphertext     │
//	└────────────┴────────────┴───────────────────────┘
//
// The salt is embedded so that a later Decrypt against the same passphrase
// can re-derive the key without access to the original session cache.
func Encrypt(plain []byte, km KeyMaterial) (string, error) {
	if len(km.Key) != KeyLength {
		return "", fmt.Errorf("invalid key length: got %d bytes, want %d", len(km.Key), KeyLength)
	}
	if len(km.Salt) != SaltLength {
		return "", fmt.Errorf("invalid salt length: got %d bytes, want %d", len(km.Salt), SaltLength)
	}

	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	payload := make([]byte, 0, SaltLength+aes.BlockSize+len(ciphertext))
	payload = append(payload, km.Salt...)
	payload = append(payload, iv...)
	payload = append(payload, ciphertext...)

	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt. The key is derived from the passphrase and the
// salt embedded in the payload, consulting the session's key cache. Any
// malformed payload, corrupted ciphertext, or wrong passphrase yields an
// error wrapping ErrDecryptionFailed.
func Decrypt(encoded string, passphrase string, session *Session) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrDecryptionFailed, err)
	}

	minLen := SaltLength + aes.BlockSize + aes.BlockSize
	if len(payload) < minLen {
		return nil, fmt.Errorf("%w: payload too short: got %d bytes, want at least %d", ErrDecryptionFailed, len(payload), minLen)
	}

	salt := payload[:SaltLength]
	iv := payload[SaltLength : SaltLength+aes.BlockSize]
	ciphertext := payload[SaltLength+aes.BlockSize:]

	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrDecryptionFailed, len(ciphertext))
	}

	km, err := session.DeriveKeyWithSalt(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AES cipher: %v", ErrDecryptionFailed, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plain, nil
}

// pkcs7Pad appends PKCS#7 padding to data.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Unpad strips and validates PKCS#7 padding. Invalid padding is the
// observable symptom of a wrong passphrase under CBC.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
