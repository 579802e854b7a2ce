// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security protects the stored API key at rest.
//
// Values are sealed with AES-256-GCM. The key comes either from a random
// master key file or from a password run through PBKDF2-SHA-256.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/neuron/internal/util"
)

// ZeroBytes zeroes key material once it is no longer needed.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks a value as encrypted (format: ENC:base64(nonce|ciphertext|tag))
const EncryptedPrefix = "ENC:"

// NonceSize is the size of the nonce for AES-GCM (12 bytes / 96 bits)
const NonceSize = 12

// KeySize is the size of the AES-256 key (32 bytes / 256 bits)
const KeySize = 32

// SaltSize is the size of the salt for key derivation (32 bytes)
const SaltSize = 32

// PBKDF2Iterations is the number of iterations for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotInitialized indicates no key is loaded
	ErrNotInitialized = errors.New("encryption not initialized: run 'neuron setup --encrypt'")
	// ErrInvalidCiphertext indicates the ciphertext format is invalid
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates decryption failed (wrong key or tampered data)
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
	// ErrNoKey indicates the key or salt file does not exist
	ErrNoKey = errors.New("no encryption key found")
)

// =============================================================================
// VAULT
// =============================================================================

// Vault seals and opens short secrets such as the API key.
type Vault struct {
	mu      sync.RWMutex
	keyPath string
	cipher  cipher.AEAD
}

// NewVault creates a vault whose key lives at keyPath. Call Unlock,
// UnlockWithPassword, or one of the Initialize methods before use.
func NewVault(keyPath string) *Vault {
	return &Vault{keyPath: keyPath}
}

// DefaultKeyPath returns the default path for the master key (~/.neuron/master.key).
func DefaultKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".neuron", "master.key"), nil
}

// KeyPath returns the master key file path.
func (v *Vault) KeyPath() string {
	return v.keyPath
}

func (v *Vault) saltPath() string {
	return v.keyPath + ".salt"
}

// HasKey reports whether a master key file exists.
func (v *Vault) HasKey() bool {
	_, err := os.Stat(v.keyPath)
	return err == nil
}

// HasSalt reports whether the vault was initialized with a password.
func (v *Vault) HasSalt() bool {
	_, err := os.Stat(v.saltPath())
	return err == nil
}

// =============================================================================
// KEY DERIVATION
// =============================================================================

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateMasterKey generates a cryptographically secure random master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// DeriveKey derives an encryption key from a password and salt using PBKDF2-SHA-256.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// Initialize generates a new random master key and stores it with 0600
// permissions. An existing key is replaced.
func (v *Vault) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := GenerateMasterKey()
	if err != nil {
		return err
	}
	defer ZeroBytes(key)

	if err := util.AtomicWriteFile(v.keyPath, key, 0600); err != nil {
		return fmt.Errorf("failed to store master key: %w", err)
	}
	if err := v.initCipher(key); err != nil {
		_ = os.Remove(v.keyPath)
		return err
	}
	return nil
}

// InitializeWithPassword derives the key from password. Only the salt is
// stored; the password is needed again to unlock.
func (v *Vault) InitializeWithPassword(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	key := DeriveKey(password, salt)
	defer ZeroBytes(key)

	if err := util.AtomicWriteFile(v.saltPath(), salt, 0600); err != nil {
		return fmt.Errorf("failed to save salt: %w", err)
	}
	if err := v.initCipher(key); err != nil {
		_ = os.Remove(v.saltPath())
		return err
	}
	return nil
}

// Unlock loads the master key file.
func (v *Vault) Unlock() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := os.ReadFile(v.keyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoKey
		}
		return fmt.Errorf("failed to read master key: %w", err)
	}
	defer ZeroBytes(key)

	if len(key) != KeySize {
		return fmt.Errorf("master key has wrong size %d", len(key))
	}
	return v.initCipher(key)
}

// UnlockWithPassword derives the key from password and the stored salt.
// A wrong password is only detected when a value fails to decrypt.
func (v *Vault) UnlockWithPassword(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	salt, err := os.ReadFile(v.saltPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoKey
		}
		return fmt.Errorf("failed to read salt: %w", err)
	}

	key := DeriveKey(password, salt)
	defer ZeroBytes(key)
	return v.initCipher(key)
}

// LoadOrInitialize unlocks an existing key file or creates one.
func (v *Vault) LoadOrInitialize() error {
	err := v.Unlock()
	if errors.Is(err, ErrNoKey) {
		return v.Initialize()
	}
	return err
}

// initCipher initializes the AES-GCM cipher with the given key.
func (v *Vault) initCipher(key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	v.cipher = gcm
	return nil
}

// IsInitialized returns true once a key has been loaded.
func (v *Vault) IsInitialized() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cipher != nil
}

// =============================================================================
// ENCRYPTION OPERATIONS
// =============================================================================

// Encrypt seals plaintext. Returns: nonce || ciphertext || tag
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.cipher == nil {
		return nil, ErrNotInitialized
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return v.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (v *Vault) Decrypt(ciphertext []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.cipher == nil {
		return nil, ErrNotInitialized
	}
	if len(ciphertext) < NonceSize+v.cipher.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:NonceSize]
	plaintext, err := v.cipher.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString encrypts a string and returns base64-encoded ciphertext with ENC: prefix.
func (v *Vault) EncryptString(plaintext string) (string, error) {
	ciphertext, err := v.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString decrypts a value with the ENC: prefix. Values without the
// prefix are returned unchanged.
func (v *Vault) DecryptString(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	plaintext, err := v.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsEncrypted checks if a string value is encrypted (has ENC: prefix).
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// =============================================================================
// CONFIG FIELDS
// =============================================================================

// EncryptField encrypts a config value. Empty and already encrypted values
// pass through.
func (v *Vault) EncryptField(value string) (string, error) {
	if value == "" || IsEncrypted(value) {
		return value, nil
	}
	return v.EncryptString(value)
}

// DecryptField returns the plaintext of a config value, or the value itself
// when it is not encrypted.
func (v *Vault) DecryptField(value string) (string, error) {
	if value == "" || !IsEncrypted(value) {
		return value, nil
	}
	return v.DecryptString(value)
}
