// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v := NewVault(filepath.Join(t.TempDir(), "master.key"))
	require.NoError(t, v.Initialize())
	return v
}

// =============================================================================
// KEY DERIVATION TESTS
// =============================================================================

func TestVault_KeyDerivation(t *testing.T) {
	salt := []byte("test_salt_value!")

	key1 := DeriveKey("testpassword123", salt)
	key2 := DeriveKey("testpassword123", salt)
	require.True(t, bytes.Equal(key1, key2), "same password/salt should derive same key")
	require.Len(t, key1, KeySize)

	key3 := DeriveKey("testpassword123", []byte("different_salt!!"))
	require.False(t, bytes.Equal(key1, key3))

	key4 := DeriveKey("differentpassword", salt)
	require.False(t, bytes.Equal(key1, key4))
}

// =============================================================================
// ROUND TRIP TESTS
// =============================================================================

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	enc, err := v.EncryptString("sk-test-1234567890")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(enc, EncryptedPrefix))
	require.NotContains(t, enc, "sk-test")

	dec, err := v.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "sk-test-1234567890", dec)
}

func TestVault_NonceUniqueness(t *testing.T) {
	v := newTestVault(t)

	a, err := v.EncryptString("same")
	require.NoError(t, err)
	b, err := v.EncryptString("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVault_KeyFilePermissions(t *testing.T) {
	v := newTestVault(t)

	info, err := os.Stat(v.KeyPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	require.EqualValues(t, KeySize, info.Size())
}

func TestVault_UnlockReloadsKey(t *testing.T) {
	v := newTestVault(t)
	enc, err := v.EncryptField("sk-persisted")
	require.NoError(t, err)

	reopened := NewVault(v.KeyPath())
	require.False(t, reopened.IsInitialized())
	require.NoError(t, reopened.Unlock())

	dec, err := reopened.DecryptField(enc)
	require.NoError(t, err)
	require.Equal(t, "sk-persisted", dec)
}

func TestVault_Password(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	v := NewVault(path)
	require.NoError(t, v.InitializeWithPassword("hunter2"))
	require.True(t, v.HasSalt())
	require.False(t, v.HasKey())

	enc, err := v.EncryptString("sk-secret")
	require.NoError(t, err)

	right := NewVault(path)
	require.NoError(t, right.UnlockWithPassword("hunter2"))
	dec, err := right.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "sk-secret", dec)

	wrong := NewVault(path)
	require.NoError(t, wrong.UnlockWithPassword("nope"))
	_, err = wrong.DecryptString(enc)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

// =============================================================================
// ERROR CASES
// =============================================================================

func TestVault_NotInitialized(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "master.key"))

	_, err := v.EncryptString("x")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, v.Unlock(), ErrNoKey)
	require.ErrorIs(t, v.UnlockWithPassword("pw"), ErrNoKey)
}

func TestVault_LoadOrInitialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")

	first := NewVault(path)
	require.NoError(t, first.LoadOrInitialize())
	enc, err := first.EncryptString("value")
	require.NoError(t, err)

	second := NewVault(path)
	require.NoError(t, second.LoadOrInitialize())
	dec, err := second.DecryptString(enc)
	require.NoError(t, err)
	require.Equal(t, "value", dec)
}

func TestVault_TamperedCiphertext(t *testing.T) {
	v := newTestVault(t)

	data, err := v.Encrypt([]byte("payload"))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF

	_, err = v.Decrypt(data)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = v.Decrypt([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = v.DecryptString(EncryptedPrefix + "!!!not-base64")
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestVault_FieldPassthrough(t *testing.T) {
	v := newTestVault(t)

	out, err := v.EncryptField("")
	require.NoError(t, err)
	require.Empty(t, out)

	plain, err := v.DecryptField("sk-plain")
	require.NoError(t, err)
	require.Equal(t, "sk-plain", plain)

	enc, err := v.EncryptField("sk-plain")
	require.NoError(t, err)
	again, err := v.EncryptField(enc)
	require.NoError(t, err)
	require.Equal(t, enc, again)
}
