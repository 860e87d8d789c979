package system

import (
	"os"
	"path/filepath"
	"strings"

	"stackpilot/internal/platform"
)

var windowsExts = []string{".exe", ".cmd", ".bat", ".ps1", ".com"}

// Exists reports whether command resolves to an executable. Names containing
// a path separator are checked directly; bare names are searched on the
// platform search path. Lookup failures are reported as false.
func Exists(info platform.Info, command string) bool {
	_, ok := LookPath(info, command)
	return ok
}

// LookPath resolves command to an absolute path.
func LookPath(info platform.Info, command string) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false
	}

	if strings.ContainsAny(command, `/\`) {
		if p, ok := executableCandidate(info, command); ok {
			return p, true
		}
		return "", false
	}

	for _, dir := range info.SearchPath() {
		if p, ok := executableCandidate(info, filepath.Join(dir, command)); ok {
			return p, true
		}
	}
	return "", false
}

func executableCandidate(info platform.Info, path string) (string, bool) {
	if info.Family == platform.Windows {
		if filepath.Ext(path) != "" && isFile(path) {
			return path, true
		}
		for _, ext := range windowsExts {
			if isFile(path + ext) {
				return path + ext, true
			}
		}
		return "", false
	}
	if isExecutable(path) {
		return path, true
	}
	return "", false
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func isExecutable(path string) bool {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	return st.Mode().Perm()&0o111 != 0
}

// PathExists reports whether a file or directory exists at path.
func PathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
