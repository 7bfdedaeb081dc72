// Package core provides the locker operations.
//
// Core operations include:
//   - Lock: archive a folder, encrypt the archive, delete the plaintext archive
//   - Unlock: decrypt an envelope, extract it, delete the decrypted archive
//   - Verify: compare an envelope's contents with a folder on disk
//
// The plaintext archive exists only between the two steps of Lock or Unlock
// and is removed on success and on failure. A wrong password fails before
// anything is extracted.
package core
