package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/platform"
)

func testRenderer(t *testing.T, home string) *Renderer {
	t.Helper()
	info := platform.Resolve(platform.Overrides{
		GOOS:         "linux",
		HomeDir:      home,
		ResourcesDir: filepath.Join(home, "resources"),
		Getenv:       func(string) string { return "" },
	})
	return NewRenderer(NewTemplateData(info, DatabaseConfig{User: "root", Name: "marcin", Password: "pw"}))
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o755))
}

func TestRender(t *testing.T) {
	home := t.TempDir()
	r := testRenderer(t, home)

	out, err := r.Render("plain string")
	require.NoError(t, err)
	assert.Equal(t, "plain string", out)

	out, err = r.Render(`{{ .ResourcesDir }}/nodejs`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "resources")+"/nodejs", out)

	out, err = r.Render(`{{ .Database.User | upper }}@{{ .Family }}`)
	require.NoError(t, err)
	assert.Equal(t, "ROOT@linux", out)

	_, err = r.Render(`{{ .Nope }}`)
	assert.Error(t, err)

	_, err = r.Render(`{{ if }}`)
	assert.Error(t, err)
}

func TestRenderAll(t *testing.T) {
	r := testRenderer(t, t.TempDir())
	out, err := r.RenderAll([]string{"a", "{{ .Family }}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "linux"}, out)

	out, err = r.RenderAll(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestLatestGlob(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "postgresql", "9.6", "main", "pg_hba.conf"))
	touch(t, filepath.Join(root, "postgresql", "16", "main", "pg_hba.conf"))
	touch(t, filepath.Join(root, "postgresql", "14", "main", "pg_hba.conf"))

	got, err := latestGlob(filepath.Join(root, "postgresql", "*", "main", "pg_hba.conf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "postgresql", "16", "main", "pg_hba.conf"), got)

	got, err = latestGlob(filepath.Join(root, "nothing", "*"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultNodeBinaryResolvesNewestNVMVersion(t *testing.T) {
	home := t.TempDir()
	r := testRenderer(t, home)

	out, err := r.Render(nodeBin)
	require.NoError(t, err)
	assert.Equal(t, "node", out, "falls back to the bare name before nvm installed anything")

	nvm := filepath.Join(home, ".nvm", "versions", "node")
	touch(t, filepath.Join(nvm, "v16.20.2", "bin", "node"))
	touch(t, filepath.Join(nvm, "v18.9.0", "bin", "node"))
	touch(t, filepath.Join(nvm, "v18.20.4", "bin", "node"))

	out, err = r.Render(nodeBin)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nvm, "v18.20.4", "bin", "node"), out)
}

func TestDefaultDefinitionsRender(t *testing.T) {
	r := testRenderer(t, t.TempDir())
	cfg := GetDefaultConfig()

	for _, tool := range cfg.Tools {
		for _, actions := range tool.Install {
			for _, a := range actions {
				_, err := r.Render(a.Shell)
				assert.NoError(t, err, tool.Name)
				_, err = r.RenderAll(a.Run)
				assert.NoError(t, err, tool.Name)
				_, err = r.RenderAll(a.Env)
				assert.NoError(t, err, tool.Name)
			}
		}
	}
	for _, step := range cfg.Configure {
		for _, p := range step.Patches {
			_, err := r.Render(p.Append)
			assert.NoError(t, err, step.Name)
		}
		for _, c := range step.Commands {
			_, err := r.Render(c.Shell)
			assert.NoError(t, err, step.Name)
		}
	}
	for _, svc := range cfg.Services {
		_, err := r.RenderAll(svc.Command)
		assert.NoError(t, err, svc.Name)
	}
}

func TestMachineArch(t *testing.T) {
	assert.Equal(t, "x86_64", machineArch(platform.Linux, "amd64"))
	assert.Equal(t, "aarch64", machineArch(platform.Linux, "arm64"))
	assert.Equal(t, "arm64", machineArch(platform.MacOS, "arm64"))
}
