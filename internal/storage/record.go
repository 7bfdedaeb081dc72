package storage

import (
	"time"

	"github.com/google/uuid"
)

// Record describes one envelope written by a successful lock.
type Record struct {
	ID       string    `json:"id"`
	Envelope string    `json:"envelope"` // absolute path, also the bucket key
	Source   string    `json:"source"`   // absolute path of the locked folder
	Format   string    `json:"format"`   // archiver format id
	Size     int64     `json:"size"`
	SHA256   string    `json:"sha256"` // hex digest of the envelope file
	Created  time.Time `json:"created"`
}

// NewRecord creates a record with a fresh ID and the current time.
func NewRecord(envelope, source, format string, size int64, sha256 string) *Record {
	if size < 0 {
		size = 0
	}
	return &Record{
		ID:       uuid.NewString(),
		Envelope: envelope,
		Source:   source,
		Format:   format,
		Size:     size,
		SHA256:   sha256,
		Created:  time.Now().UTC(),
	}
}
