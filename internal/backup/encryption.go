package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Archive encryption: AES-256-GCM with a key derived from an operator
// passphrase via PBKDF2. The random salt is prepended to the ciphertext so
// the archive is self-contained; the nonce follows the salt per GCM
// convention.

const (
	encryptionSaltSize  = 32
	encryptionKeySize   = 32
	pbkdf2Iterations    = 100000
	EncryptionAlgorithm = "AES-256-GCM"
)

// DeriveKey derives an AES-256 key from a passphrase and salt.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, encryptionKeySize, sha256.New)
}

// EncryptArchive encrypts archive bytes with a passphrase-derived key.
// Output layout: salt || nonce || ciphertext.
func EncryptArchive(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, NewEncryptionError("passphrase must not be empty", nil)
	}

	salt := make([]byte, encryptionSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, NewEncryptionError("failed to generate salt", err)
	}

	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, NewEncryptionError("failed to generate nonce", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// DecryptArchive reverses EncryptArchive. A wrong passphrase surfaces as an
// authentication failure, not garbage output.
func DecryptArchive(data []byte, passphrase string) ([]byte, error) {
	if len(data) < encryptionSaltSize {
		return nil, NewEncryptionError("encrypted archive too short to contain a salt", nil)
	}
	salt, rest := data[:encryptionSaltSize], data[encryptionSaltSize:]

	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	if len(rest) < gcm.NonceSize() {
		return nil, NewEncryptionError("encrypted archive too short to contain a nonce", nil)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt archive; wrong passphrase or corrupted data", err)
	}
	return plaintext, nil
}
