package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 16      // Salt size in bytes
	IVSize       = 16      // CBC IV size
	KeySize      = 32      // AES-256 key size
	HeaderSize   = SaltSize + IVSize
	DefaultIters = 1000000 // PBKDF2 iterations
)

var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrOutputIsInput   = errors.New("output path equals input path")
)

// Error describes a failed envelope operation.
type Error struct {
	Op   string // "encrypt" or "decrypt"
	Path string // File path, if applicable
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KDF handles key derivation from passwords
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// DeriveKey derives an encryption key from a password
func (k *KDF) DeriveKey(password []byte) []byte {
	return pbkdf2.Key(password, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Encryptor performs AES-256-CBC with PKCS#7 padding under a single key.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new encryptor with the given key
func NewEncryptor(key []byte) *Encryptor {
	return &Encryptor{
		key: key,
	}
}

// Encrypt pads and encrypts plaintext under a fresh random IV.
// The result is iv || ciphertext.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv, err := GenerateRandom(IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	defer ClearBytes(padded)

	result := make([]byte, IVSize+len(padded))
	copy(result, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(result[IVSize:], padded)

	return result, nil
}

// Decrypt reverses Encrypt. A bad padding block yields ErrAuthFailed.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if len(data) < IVSize+aes.BlockSize || (len(data)-IVSize)%aes.BlockSize != 0 {
		return nil, ErrInvalidEnvelope
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := data[:IVSize]
	ciphertext := data[IVSize:]

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpad(plaintext, aes.BlockSize)
	if err != nil {
		ClearBytes(plaintext)
		return nil, err
	}

	return unpadded, nil
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// Encrypt derives a key from password under a fresh salt and returns the
// envelope salt || iv || ciphertext.
func Encrypt(password, plaintext []byte) ([]byte, error) {
	kdf, err := NewKDF()
	if err != nil {
		return nil, &Error{Op: "encrypt", Err: err}
	}

	enc := NewEncryptor(kdf.DeriveKey(password))
	defer enc.Destroy()

	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		return nil, &Error{Op: "encrypt", Err: err}
	}

	envelope := make([]byte, SaltSize+len(sealed))
	copy(envelope, kdf.Salt)
	copy(envelope[SaltSize:], sealed)

	return envelope, nil
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(password, envelope []byte) ([]byte, error) {
	if len(envelope) < HeaderSize+aes.BlockSize {
		return nil, &Error{Op: "decrypt", Err: ErrInvalidEnvelope}
	}

	kdf := &KDF{
		Salt:       envelope[:SaltSize],
		Iterations: DefaultIters,
	}

	enc := NewEncryptor(kdf.DeriveKey(password))
	defer enc.Destroy()

	plaintext, err := enc.Decrypt(envelope[SaltSize:])
	if err != nil {
		return nil, &Error{Op: "decrypt", Err: err}
	}

	return plaintext, nil
}

// pad appends PKCS#7 padding. A full block is added when len(data) is
// already a multiple of blockSize.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	copy(padded[len(data):], bytes.Repeat([]byte{byte(n)}, n))
	return padded
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrAuthFailed
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrAuthFailed
	}

	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(data[len(data)-n:], want) != 1 {
		return nil, ErrAuthFailed
	}

	return data[:len(data)-n], nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
