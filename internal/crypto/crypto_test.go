package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	password := []byte("password")
	data := []byte("hello world")

	envelope, err := Encrypt(password, data)
	require.NoError(t, err)

	decrypted, err := Decrypt(password, envelope)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}

func TestEncrypt_EnvelopeLength(t *testing.T) {
	password := []byte("pw")

	for _, size := range []int{0, 1, 15, 16, 17, 100} {
		envelope, err := Encrypt(password, make([]byte, size))
		require.NoError(t, err)

		want := HeaderSize + ((size/16)+1)*16
		assert.Len(t, envelope, want, "plaintext length %d", size)
	}
}

func TestEncrypt_FreshSaltAndIV(t *testing.T) {
	password := []byte("pw")
	data := []byte("same plaintext")

	a, err := Encrypt(password, data)
	require.NoError(t, err)
	b, err := Encrypt(password, data)
	require.NoError(t, err)

	assert.NotEqual(t, a[:SaltSize], b[:SaltSize], "salt must differ per encryption")
	assert.NotEqual(t, a[SaltSize:HeaderSize], b[SaltSize:HeaderSize], "iv must differ per encryption")
}

func TestEnvelope_ManualDecrypt(t *testing.T) {
	password := []byte("pw1234")
	data := []byte("the quick brown fox jumps over the lazy dog")

	envelope, err := Encrypt(password, data)
	require.NoError(t, err)

	salt := envelope[:16]
	iv := envelope[16:32]
	key := pbkdf2.Key(password, salt, 1000000, 32, sha256.New)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	plaintext := make([]byte, len(envelope)-32)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, envelope[32:])

	padLen := int(plaintext[len(plaintext)-1])
	assert.Equal(t, data, plaintext[:len(plaintext)-padLen])
}

func TestDecrypt_WrongPassword(t *testing.T) {
	envelope, err := Encrypt([]byte("pw1234"), []byte("secret"))
	require.NoError(t, err)

	// A wrong key passes the padding check with probability ~1/256, so
	// accept either an auth failure or garbage output.
	plaintext, err := Decrypt([]byte("wrong"), envelope)
	if err == nil {
		assert.NotEqual(t, []byte("secret"), plaintext)
		return
	}
	assert.True(t, errors.Is(err, ErrAuthFailed), "got %v", err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "decrypt", cerr.Op)
}

func TestDecrypt_InvalidEnvelope(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", make([]byte, HeaderSize)},
		{"misaligned ciphertext", make([]byte, HeaderSize+17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt([]byte("pw"), tt.data)
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
			assert.NotErrorIs(t, err, ErrAuthFailed)
		})
	}
}

func TestPadUnpad(t *testing.T) {
	for size := 0; size <= 33; size++ {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		padded := pad(data, 16)
		require.Zero(t, len(padded)%16)
		require.Greater(t, len(padded), size)

		got, err := unpad(padded, 16)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestUnpad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"not block aligned", make([]byte, 15)},
		{"zero pad byte", make([]byte, 16)},
		{"pad larger than block", append(make([]byte, 15), 17)},
		{"inconsistent pad bytes", append(make([]byte, 14), 1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unpad(tt.data, 16)
			assert.ErrorIs(t, err, ErrAuthFailed)
		})
	}
}

func TestClearBytes(t *testing.T) {
	b := []byte("sensitive")
	ClearBytes(b)
	assert.Equal(t, make([]byte, len("sensitive")), b)
}

func TestConstantTimeCompare(t *testing.T) {
	assert.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("ab")))
}
