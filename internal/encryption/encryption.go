// Package encryption seals provider API keys stored in the local database.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sydlexius/modcheck/internal/filesystem"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Encryptor provides AES-256-GCM encryption and decryption.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a base64-encoded 32-byte key.
// If key is empty, it generates a random key and returns it encoded.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var keyBytes []byte
	if key == "" {
		keyBytes = make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
		key = base64.StdEncoding.EncodeToString(keyBytes)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, "", fmt.Errorf("decoding encryption key: %w", err)
		}
		keyBytes = decoded
	}

	if len(keyBytes) != KeySize {
		return nil, "", fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, "", fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("creating GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, key, nil
}

// LoadOrCreate reads the key stored at path, or generates one and writes it
// there with owner-only permissions. created reports whether a new key was
// written.
func LoadOrCreate(path string) (enc *Encryptor, created bool, err error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from local config
	switch {
	case err == nil:
		if key := strings.TrimSpace(string(data)); key != "" {
			enc, _, err := NewEncryptor(key)
			if err != nil {
				return nil, false, fmt.Errorf("key file %s: %w", path, err)
			}
			return enc, false, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("reading key file: %w", err)
	}

	enc, key, err := NewEncryptor("")
	if err != nil {
		return nil, false, err
	}
	if err := filesystem.WriteFileAtomic(path, []byte(key+"\n"), 0o600); err != nil {
		return nil, false, fmt.Errorf("writing key file: %w", err)
	}
	return enc, true, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext and returns the plaintext.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
