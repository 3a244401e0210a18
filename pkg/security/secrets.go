package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// EncryptionKey is a 32-byte AES-256 key used to encrypt the persisted
// per-user storage document at rest (OAuth token, cached profile, local
// collection snapshot).
type EncryptionKey [32]byte

// DeriveKeyFromDeviceID derives a storage encryption key from a stable
// per-device identifier, so the same device always unlocks its own
// persisted document without a separately-managed key file.
func DeriveKeyFromDeviceID(deviceID string) EncryptionKey {
	return EncryptionKey(sha256.Sum256([]byte(deviceID)))
}

// Seal encrypts plaintext with AES-256-GCM, prepending the nonce to the
// returned ciphertext so Open needs nothing but the key to reverse it.
func Seal(key EncryptionKey, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal with the same key.
func Open(key EncryptionKey, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt storage document: %w", err)
	}
	return plaintext, nil
}

func newGCM(key EncryptionKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
