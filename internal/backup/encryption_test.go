package backup

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEncryptionKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, encryptionKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func newTestEncryptionManager(t *testing.T, key []byte) *EncryptionManager {
	t.Helper()
	return NewEncryptionManager(&EncryptionConfig{
		Enabled:      true,
		KeyRetriever: func() ([]byte, error) { return key, nil },
	})
}

func TestEncryptionRoundTrip(t *testing.T) {
	manager := newTestEncryptionManager(t, testEncryptionKey(t))
	payload := []byte("offsite archive payload")

	encrypted, stats, err := manager.Encrypt(payload)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "AES-256-GCM", stats.Algorithm)
	assert.NotEqual(t, payload, encrypted)

	decrypted, err := manager.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, decrypted)
}

func TestEncryptionDisabledPassesThrough(t *testing.T) {
	manager := NewEncryptionManager(nil)
	payload := []byte("plain payload")

	encrypted, stats, err := manager.Encrypt(payload)
	require.NoError(t, err)
	assert.Nil(t, stats)
	assert.Equal(t, payload, encrypted)

	decrypted, err := manager.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, decrypted)
	assert.False(t, manager.Enabled())
}

// Each encryption uses a fresh nonce, so identical plaintexts never produce
// identical ciphertexts.
func TestEncryptionUsesFreshNonces(t *testing.T) {
	manager := newTestEncryptionManager(t, testEncryptionKey(t))
	payload := []byte("repeated payload")

	first, _, err := manager.Encrypt(payload)
	require.NoError(t, err)
	second, _, err := manager.Encrypt(payload)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptionRejectsWrongKey(t *testing.T) {
	payload := []byte("secret payload")

	encrypted, _, err := newTestEncryptionManager(t, testEncryptionKey(t)).Encrypt(payload)
	require.NoError(t, err)

	_, err = newTestEncryptionManager(t, testEncryptionKey(t)).Decrypt(encrypted)
	assert.True(t, IsErrorType(err, BackupErrorTypeEncryption))
}

func TestEncryptionRejectsTamperedPayload(t *testing.T) {
	manager := newTestEncryptionManager(t, testEncryptionKey(t))

	encrypted, _, err := manager.Encrypt([]byte("secret payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), encrypted...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = manager.Decrypt(tampered)
	assert.True(t, IsErrorType(err, BackupErrorTypeEncryption))

	_, err = manager.Decrypt([]byte("short"))
	assert.True(t, IsErrorType(err, BackupErrorTypeEncryption))
}

func TestGetEncryptionKeySources(t *testing.T) {
	key := testEncryptionKey(t)

	t.Run("environment", func(t *testing.T) {
		t.Setenv("MEMSTORE_TEST_KEY", hex.EncodeToString(key))

		config := &EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "MEMSTORE_TEST_KEY"}
		loaded, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, key, loaded)
	})

	t.Run("environment missing", func(t *testing.T) {
		config := &EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "MEMSTORE_TEST_KEY_UNSET"}
		_, err := config.GetEncryptionKey()
		assert.True(t, IsErrorType(err, BackupErrorTypeEncryption))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "backup.key")
		require.NoError(t, os.WriteFile(path, key, 0600))

		config := &EncryptionConfig{Enabled: true, KeySource: "file", KeyPath: path}
		loaded, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, key, loaded)
	})

	t.Run("file wrong size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "backup.key")
		require.NoError(t, os.WriteFile(path, []byte("short"), 0600))

		config := &EncryptionConfig{Enabled: true, KeySource: "file", KeyPath: path}
		_, err := config.GetEncryptionKey()
		assert.True(t, IsErrorType(err, BackupErrorTypeEncryption))
	})

	t.Run("passphrase", func(t *testing.T) {
		t.Setenv("MEMSTORE_TEST_PASSPHRASE", "correct horse battery staple")

		config := &EncryptionConfig{
			Enabled:          true,
			KeySource:        "passphrase",
			PassphraseEnvVar: "MEMSTORE_TEST_PASSPHRASE",
			Salt:             hex.EncodeToString([]byte("memstore-backup-salt")),
		}
		first, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.Len(t, first, encryptionKeySize)

		// Same passphrase and salt derive the same key.
		second, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// A different salt derives a different key.
		config.Salt = hex.EncodeToString([]byte("another-salt-value"))
		third, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.NotEqual(t, first, third)
	})

	t.Run("retriever takes precedence", func(t *testing.T) {
		config := &EncryptionConfig{
			Enabled:      true,
			KeySource:    "env",
			KeyRetriever: func() ([]byte, error) { return key, nil },
		}
		loaded, err := config.GetEncryptionKey()
		require.NoError(t, err)
		assert.Equal(t, key, loaded)
	})
}
