// Package archiver serializes a directory tree to a single file and back.
//
// Formats are selected by identifier through New:
//   - tarfile: tar with a single root entry named after the source folder
//   - shutil:  tar with entries relative to the source folder
//   - zipfile: zip (store method) with entries relative to the source folder
//   - pickle:  gob-encoded map of directory -> file name -> bytes
//   - json:    the same map as JSON, file bytes base64-encoded
//
// Unarchive validates the whole archive before writing, refuses to overwrite
// existing paths, and confines all writes to the destination with os.Root.
// The pickle and json formats hold the entire tree in memory.
package archiver
