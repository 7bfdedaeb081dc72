// Package security confines archive extraction to a destination directory.
package security
