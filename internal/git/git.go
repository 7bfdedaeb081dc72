package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// FolderStatus reports how a folder about to be locked relates to git.
type FolderStatus struct {
	IsRepo          bool
	TrackedFiles    []string // files under the folder that git tracks (bad: plaintext stays in history)
	EnvelopeInRepo  bool     // the envelope will be written inside the same work tree
	EnvelopeIgnored bool     // the envelope path matches .gitignore
}

// IsGitRepo checks if the directory is inside a git work tree
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// TrackedFiles lists the files under workDir that git tracks, relative to
// workDir.
func TrackedFiles(workDir string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "-z", "--", ".")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var files []string
	for _, f := range strings.Split(string(output), "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// IsIgnored checks if a path is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if the path is ignored
	return err == nil
}

func repoRoot(workDir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(string(output))), nil
}

// CheckFolder inspects folder before it is locked into envelope. A missing
// git binary or a folder outside any repository yields IsRepo false.
func CheckFolder(folder, envelope string) (*FolderStatus, error) {
	status := &FolderStatus{}

	if !IsGitRepo(folder) {
		return status, nil
	}
	status.IsRepo = true

	files, err := TrackedFiles(folder)
	if err != nil {
		return nil, err
	}
	status.TrackedFiles = files

	if envelope == "" {
		return status, nil
	}
	envDir := filepath.Dir(envelope)
	root, err := repoRoot(folder)
	if err != nil || !IsGitRepo(envDir) {
		return status, nil
	}
	if envRoot, err := repoRoot(envDir); err == nil && envRoot == root {
		status.EnvelopeInRepo = true
		status.EnvelopeIgnored = IsIgnored(envDir, filepath.Base(envelope))
	}

	return status, nil
}

// FormatFolderStatus formats the warnings for display. It returns "" when
// there is nothing to report.
func FormatFolderStatus(status *FolderStatus) string {
	if status == nil || !status.IsRepo {
		return ""
	}

	var result strings.Builder
	if n := len(status.TrackedFiles); n > 0 {
		result.WriteString(fmt.Sprintf("warning: %d file(s) in this folder are tracked by git; their plaintext stays in git history:\n", n))
		for i, file := range status.TrackedFiles {
			if i == 5 {
				result.WriteString(fmt.Sprintf("   ... and %d more\n", n-i))
				break
			}
			result.WriteString(fmt.Sprintf("   - %s\n", file))
		}
	}
	if status.EnvelopeInRepo && !status.EnvelopeIgnored {
		result.WriteString("note: the encrypted file is inside the repository and not in .gitignore\n")
	}

	return result.String()
}
