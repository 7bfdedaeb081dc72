package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	password := []byte("password")
	input := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello world"), 0644))

	fileHash, err := HashFile(input)
	require.NoError(t, err)

	encrypted, err := EncryptFile(password, input, "")
	require.NoError(t, err)
	assert.Equal(t, input+".enc", encrypted)

	require.NoError(t, os.Remove(input))

	decrypted, err := DecryptFile(password, encrypted, "")
	require.NoError(t, err)
	assert.Equal(t, input, decrypted)

	decryptedHash, err := HashFile(decrypted)
	require.NoError(t, err)
	assert.Equal(t, fileHash, decryptedHash)
}

func TestEncryptFile_OutputFolder(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	input := filepath.Join(src, "data.tar")
	require.NoError(t, os.WriteFile(input, []byte("payload"), 0644))

	encrypted, err := EncryptFile([]byte("pw"), input, out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "data.tar.enc"), encrypted)

	info, err := os.Stat(encrypted)
	require.NoError(t, err)
	assert.EqualValues(t, HeaderSize+16, info.Size())
}

func TestEncryptFile_MissingInput(t *testing.T) {
	_, err := EncryptFile([]byte("pw"), filepath.Join(t.TempDir(), "nope"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecryptFile_ExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(input, []byte{0, 1, 2, 3}, 0644))

	encrypted, err := EncryptFile([]byte("pw"), input, "")
	require.NoError(t, err)

	target := filepath.Join(dir, "restored.bin")
	got, err := DecryptFile([]byte("pw"), encrypted, target)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)
}

func TestDecryptFile_RefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "noext")
	require.NoError(t, os.WriteFile(input, make([]byte, 64), 0644))

	_, err := DecryptFile([]byte("pw"), input, "")
	assert.ErrorIs(t, err, ErrOutputIsInput)
}

func TestDecryptFile_TruncatedEnvelope(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "short.tar.enc")
	require.NoError(t, os.WriteFile(input, make([]byte, 20), 0644))

	_, err := DecryptFile([]byte("pw"), input, "")
	require.ErrorIs(t, err, ErrInvalidEnvelope)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, input, cerr.Path)

	_, statErr := os.Stat(filepath.Join(dir, "short.tar"))
	assert.True(t, os.IsNotExist(statErr), "no output on failure")
}

func TestHash(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Hash([]byte("hello")))
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Hash(nil))
}

func TestHashFile_MatchesHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	data := make([]byte, 3*hashChunkSize+7)
	for i := range data {
		data[i] = byte(i * 31)
	}
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, Hash(data), got)
}
