package fsutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// ~/models/diffusion
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists reports whether path exists. Permission errors count as existing.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// ResolveExecutable returns an absolute path for a binary given either as a
// path (possibly starting with '~') or as a bare name looked up on PATH.
func ResolveExecutable(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("executable name is empty")
	}
	p, err := ExpandHome(name)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(p, os.PathSeparator) {
		st, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		if st.IsDir() || st.Mode()&0o111 == 0 {
			return "", fmt.Errorf("%s is not executable", p)
		}
		return filepath.Abs(p)
	}
	return exec.LookPath(p)
}
