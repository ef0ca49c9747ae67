package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// encryptionSaltSize is the length of the salt prepended to
	// passphrase-encrypted archives.
	encryptionSaltSize = 32
	// pbkdf2Iterations is the PBKDF2-SHA256 iteration count for
	// passphrase-derived keys.
	pbkdf2Iterations = 100000
)

// EncryptionStats contains statistics about one encryption operation
type EncryptionStats struct {
	OriginalSize  int64         `json:"original_size"`
	EncryptedSize int64         `json:"encrypted_size"`
	Algorithm     string        `json:"algorithm"`
	KeyDerivation string        `json:"key_derivation"`
	Duration      time.Duration `json:"duration"`
}

// ArchiveEncryption encrypts sealed archives with AES-256-GCM. Keys come
// from an environment variable, a key file, or a passphrase run through
// PBKDF2. Passphrase-encrypted output carries its salt as a prefix:
// salt || nonce || ciphertext; key-based output is nonce || ciphertext.
type ArchiveEncryption struct {
	config *EncryptionConfig
}

// NewArchiveEncryption creates an archive encryptor for the given settings.
func NewArchiveEncryption(config *EncryptionConfig) *ArchiveEncryption {
	return &ArchiveEncryption{
		config: config,
	}
}

// IsEnabled returns whether encryption is enabled
func (ae *ArchiveEncryption) IsEnabled() bool {
	return ae.config.Enabled
}

// Algorithm returns the encryption algorithm in use
func (ae *ArchiveEncryption) Algorithm() string {
	if !ae.config.Enabled {
		return "NONE"
	}
	return "AES-256-GCM"
}

// Seal encrypts data using AES-256-GCM
func (ae *ArchiveEncryption) Seal(data []byte) ([]byte, *EncryptionStats, error) {
	if !ae.config.Enabled {
		return data, &EncryptionStats{
			OriginalSize:  int64(len(data)),
			EncryptedSize: int64(len(data)),
			Algorithm:     "NONE",
		}, nil
	}

	start := time.Now()

	key, salt, err := ae.sealKey()
	if err != nil {
		return nil, nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, NewEncryptionError("failed to generate nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	if len(salt) > 0 {
		ciphertext = append(salt, ciphertext...)
	}

	stats := &EncryptionStats{
		OriginalSize:  int64(len(data)),
		EncryptedSize: int64(len(ciphertext)),
		Algorithm:     "AES-256-GCM",
		KeyDerivation: ae.config.KeySource,
		Duration:      time.Since(start),
	}

	return ciphertext, stats, nil
}

// Open decrypts data produced by Seal
func (ae *ArchiveEncryption) Open(data []byte) ([]byte, error) {
	if !ae.config.Enabled {
		return data, nil
	}

	key, data, err := ae.openKey(data)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, NewEncryptionError("encrypted data too short", nil)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, NewEncryptionError("failed to decrypt data", err)
	}

	return plaintext, nil
}

// EncryptFile encrypts src into dst. dst is written with restricted
// permissions; src is left in place for the caller to dispose of.
func (ae *ArchiveEncryption) EncryptFile(src, dst string) (*EncryptionStats, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, NewEncryptionError(fmt.Sprintf("failed to read %s for encryption", src), err)
	}

	sealed, stats, err := ae.Seal(data)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(dst, sealed, 0o640); err != nil {
		return nil, NewEncryptionError(fmt.Sprintf("failed to write encrypted archive %s", dst), err)
	}

	return stats, nil
}

// DecryptFile decrypts src into dst.
func (ae *ArchiveEncryption) DecryptFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return NewEncryptionError(fmt.Sprintf("failed to read %s for decryption", src), err)
	}

	plain, err := ae.Open(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, plain, 0o640); err != nil {
		return NewEncryptionError(fmt.Sprintf("failed to write decrypted archive %s", dst), err)
	}

	return nil
}

// sealKey resolves the encryption key for sealing. Passphrase sources derive
// a key from a fresh random salt, which is returned for prepending.
func (ae *ArchiveEncryption) sealKey() ([]byte, []byte, error) {
	if ae.config.KeySource == "passphrase" && ae.config.KeyRetriever == nil {
		passphrase, err := ae.config.Passphrase()
		if err != nil {
			return nil, nil, NewEncryptionError("failed to get passphrase", err)
		}

		salt := make([]byte, encryptionSaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, NewEncryptionError("failed to generate salt", err)
		}

		return DeriveKeyFromPassphrase(passphrase, salt), salt, nil
	}

	key, err := ae.config.GetEncryptionKey()
	if err != nil {
		return nil, nil, NewEncryptionError("failed to get encryption key", err)
	}
	if len(key) != 32 {
		return nil, nil, NewEncryptionError("encryption key must be 32 bytes for AES-256", nil)
	}

	return key, nil, nil
}

// openKey resolves the decryption key and strips any salt prefix from data.
func (ae *ArchiveEncryption) openKey(data []byte) ([]byte, []byte, error) {
	if ae.config.KeySource == "passphrase" && ae.config.KeyRetriever == nil {
		passphrase, err := ae.config.Passphrase()
		if err != nil {
			return nil, nil, NewEncryptionError("failed to get passphrase", err)
		}
		if len(data) < encryptionSaltSize {
			return nil, nil, NewEncryptionError("encrypted data too short", nil)
		}

		salt, rest := data[:encryptionSaltSize], data[encryptionSaltSize:]
		return DeriveKeyFromPassphrase(passphrase, salt), rest, nil
	}

	key, err := ae.config.GetEncryptionKey()
	if err != nil {
		return nil, nil, NewEncryptionError("failed to get encryption key", err)
	}
	if len(key) != 32 {
		return nil, nil, NewEncryptionError("encryption key must be 32 bytes for AES-256", nil)
	}

	return key, data, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to create GCM cipher", err)
	}

	return gcm, nil
}

// DeriveKeyFromPassphrase derives a 256-bit key from a passphrase using
// PBKDF2 with SHA-256.
func DeriveKeyFromPassphrase(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, 32, sha256.New)
}

// KeyManager handles encryption key generation and storage
type KeyManager struct {
	config *EncryptionConfig
}

// NewKeyManager creates a new key manager
func NewKeyManager(config *EncryptionConfig) *KeyManager {
	return &KeyManager{
		config: config,
	}
}

// GenerateKey generates a new 256-bit encryption key
func (km *KeyManager) GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, NewEncryptionError("failed to generate encryption key", err)
	}
	return key, nil
}

// SaveKeyToFile saves an encryption key to a file with restricted permissions
func (km *KeyManager) SaveKeyToFile(key []byte, path string) error {
	if len(key) != 32 {
		return NewEncryptionError("key must be 32 bytes for AES-256", nil)
	}

	if err := os.WriteFile(path, key, 0o600); err != nil {
		return NewEncryptionError("failed to save key to file", err)
	}

	return nil
}

// LoadKeyFromFile loads an encryption key from a file
func (km *KeyManager) LoadKeyFromFile(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEncryptionError("failed to read key from file", err)
	}

	if len(key) != 32 {
		return nil, NewEncryptionError("key file must contain 32 bytes for AES-256", nil)
	}

	return key, nil
}

// ValidateKey validates that a key is suitable for AES-256
func (km *KeyManager) ValidateKey(key []byte) error {
	if len(key) != 32 {
		return NewEncryptionError("key must be 32 bytes for AES-256", nil)
	}

	allZeros := true
	allOnes := true
	for _, b := range key {
		if b != 0 {
			allZeros = false
		}
		if b != 0xFF {
			allOnes = false
		}
	}

	if allZeros {
		return NewEncryptionError("key cannot be all zeros", nil)
	}
	if allOnes {
		return NewEncryptionError("key cannot be all ones", nil)
	}

	return nil
}
