package config

import (
	"bytes"
	"fmt"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/hashicorp/go-version"

	"stackpilot/internal/platform"
)

// TemplateData is the context definition strings are rendered against.
type TemplateData struct {
	Home         string
	Family       string
	Arch         string
	MachineArch  string // x86_64, aarch64 or arm64 as used in installer file names
	ResourcesDir string
	InstallDirs  map[string]string
	ProfilePaths []string
	User         string
	Database     DatabaseConfig
}

// NewTemplateData builds the rendering context from the resolved platform.
func NewTemplateData(info platform.Info, db DatabaseConfig) TemplateData {
	return TemplateData{
		Home:         info.HomeDir,
		Family:       string(info.Family),
		Arch:         info.Arch,
		MachineArch:  machineArch(info.Family, info.Arch),
		ResourcesDir: info.ResourcesDir,
		InstallDirs:  info.InstallDirs(),
		ProfilePaths: info.ProfilePaths(),
		User:         currentUser(),
		Database:     db,
	}
}

func machineArch(f platform.Family, arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		if f == platform.MacOS {
			return "arm64"
		}
		return "aarch64"
	}
	return arch
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

// Renderer renders definition strings. Strings without template actions are
// returned unchanged; parsed templates are cached.
type Renderer struct {
	data  TemplateData
	funcs template.FuncMap

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewRenderer creates a renderer with the sprig function set plus latestGlob.
func NewRenderer(data TemplateData) *Renderer {
	funcs := sprig.TxtFuncMap()
	funcs["latestGlob"] = latestGlob
	return &Renderer{
		data:  data,
		funcs: funcs,
		cache: make(map[string]*template.Template),
	}
}

// Data returns the rendering context.
func (r *Renderer) Data() TemplateData {
	return r.data
}

// Render executes s as a template.
func (r *Renderer) Render(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	r.mu.Lock()
	tmpl, ok := r.cache[s]
	if !ok {
		var err error
		tmpl, err = template.New("definition").Funcs(r.funcs).Option("missingkey=error").Parse(s)
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("failed to parse template %q: %w", s, err)
		}
		r.cache[s] = tmpl
	}
	r.mu.Unlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", s, err)
	}
	return buf.String(), nil
}

// RenderAll renders every element of ss.
func (r *Renderer) RenderAll(ss []string) ([]string, error) {
	if ss == nil {
		return nil, nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := r.Render(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// latestGlob returns the match of pattern with the highest version number in
// its path, e.g. /etc/postgresql/16/main/pg_hba.conf over .../14/... Matches
// without a version component are compared lexically. No match renders as "".
func latestGlob(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}

	best, bestV := matches[0], pathVersion(matches[0])
	for _, m := range matches[1:] {
		v := pathVersion(m)
		switch {
		case v != nil && (bestV == nil || v.GreaterThan(bestV)):
			best, bestV = m, v
		case v == nil && bestV == nil && m > best:
			best = m
		}
	}
	return best, nil
}

// pathVersion returns the right-most path element that parses as a version.
func pathVersion(p string) *version.Version {
	parts := strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' })
	for i := len(parts) - 1; i >= 0; i-- {
		if v, err := version.NewVersion(parts[i]); err == nil {
			return v
		}
	}
	return nil
}
