// Package events provides the leveled, structured logger used by locker.
// Text output colours the level tag on terminals; json output writes one
// object per line.
package events
