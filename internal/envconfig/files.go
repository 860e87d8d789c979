package envconfig

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"stackpilot/internal/executor"
	"stackpilot/internal/system"
)

// FileStore reads and writes the files configuration steps edit.
type FileStore interface {
	// Read returns the content and whether the file exists.
	Read(ctx context.Context, path string, privileged bool) ([]byte, bool, error)
	Write(ctx context.Context, path string, data []byte, privileged bool) error
}

// HostFiles edits files on the host. Privileged access goes through the
// runner (`cat` and `tee` under sudo) after credentials were obtained.
type HostFiles struct {
	exec *executor.Executor
}

// NewHostFiles creates a FileStore backed by ex.
func NewHostFiles(ex *executor.Executor) *HostFiles {
	return &HostFiles{exec: ex}
}

// Read implements FileStore.
func (h *HostFiles) Read(ctx context.Context, path string, privileged bool) ([]byte, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		if !privileged {
			return nil, false, err
		}
	}

	if !privileged {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, true, err
		}
		return data, true, nil
	}

	if err := h.exec.Elevate(ctx); err != nil {
		return nil, true, err
	}
	res, err := h.exec.Runner.Run(ctx, system.Command{Argv: []string{"cat", path}, Privileged: true})
	if err != nil {
		return nil, true, err
	}
	return res.Stdout, true, nil
}

// Write implements FileStore. Existing file modes are preserved.
func (h *HostFiles) Write(ctx context.Context, path string, data []byte, privileged bool) error {
	if privileged {
		if err := h.exec.Elevate(ctx); err != nil {
			return err
		}
		_, err := h.exec.Runner.Run(ctx, system.Command{
			Argv:       []string{"tee", path},
			Privileged: true,
			Stdin:      bytes.NewReader(data),
		})
		return err
	}

	mode := os.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, mode)
}
