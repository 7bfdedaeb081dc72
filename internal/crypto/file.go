package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	EncryptedExt   = ".enc"
	FilePermSecure = 0600
	hashChunkSize  = 8192
)

// EncryptFile encrypts inputPath into outputFolder/<base>.enc and returns
// the written path. An empty outputFolder means the input's own folder.
func EncryptFile(password []byte, inputPath, outputFolder string) (string, error) {
	if outputFolder == "" {
		outputFolder = filepath.Dir(inputPath)
	}
	outputPath := filepath.Join(outputFolder, filepath.Base(inputPath)+EncryptedExt)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	defer ClearBytes(data)

	envelope, err := Encrypt(password, data)
	if err != nil {
		return "", withPath(err, inputPath)
	}

	if err := os.WriteFile(outputPath, envelope, FilePermSecure); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	return outputPath, nil
}

// DecryptFile decrypts inputPath into outputPath. An empty outputPath strips
// one trailing extension from inputPath.
func DecryptFile(password []byte, inputPath, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	}
	if filepath.Clean(outputPath) == filepath.Clean(inputPath) {
		return "", &Error{Op: "decrypt", Path: inputPath, Err: ErrOutputIsInput}
	}

	envelope, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}

	plaintext, err := Decrypt(password, envelope)
	if err != nil {
		return "", withPath(err, inputPath)
	}
	defer ClearBytes(plaintext)

	if err := os.WriteFile(outputPath, plaintext, FilePermSecure); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	return outputPath, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 of a file's contents, read in chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func withPath(err error, path string) error {
	if e, ok := err.(*Error); ok && e.Path == "" {
		e.Path = path
	}
	return err
}
