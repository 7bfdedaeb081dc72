// Package storage provides the BBolt lock journal.
//
// The database has two buckets:
//   - config: schema version and created/modified timestamps
//   - envelopes: one JSON Record per envelope, keyed by its absolute path
//
// The journal never holds passwords, keys, or plaintext. It remembers which
// archive format produced an envelope and the envelope's SHA-256 so unlock
// can pick the right archiver and history can show what was locked.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
