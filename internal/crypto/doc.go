// Package crypto provides the password envelope used by locker.
//
// Encryption uses AES-256-CBC with:
//   - 32-byte key derived from password via PBKDF2
//   - 16-byte random IV per encryption operation
//   - PKCS#7 padding to the AES block size
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt per encryption operation
//   - 1,000,000 iterations
//
// Envelope layout: [salt:16][iv:16][ciphertext]. There is no header, no
// length field and no authentication tag, so a padding check failure is the
// only signal of a wrong password or a damaged envelope (ErrAuthFailed).
//
// Memory safety:
//   - Derived keys never outlive a single Encrypt or Decrypt call
//   - Use ClearBytes() to zero passwords and plaintext after use
package crypto
