// Package git checks whether a folder about to be locked lives in a git
// work tree.
//
// Checks performed:
//   - Whether files in the folder are tracked by git (plaintext remains in history)
//   - Whether the envelope lands inside the same work tree
//   - Whether the envelope path is covered by .gitignore
package git
