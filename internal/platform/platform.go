// Package platform resolves the facts about the host that every other
// component needs: OS family, home directory, shell profile files and the
// well-known install locations of the managed tools.
//
// Resolution happens exactly once per run. The resulting Info is immutable and
// is passed explicitly to the components that need it, so nothing reads the
// process environment or mutates PATH in the middle of a bootstrap.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"stackpilot/pkg/logging"
)

// Family is the operating system family.
type Family string

const (
	Linux   Family = "linux"
	MacOS   Family = "macos"
	Windows Family = "windows"
)

// Well-known install directory keys.
const (
	DirNVM   = "nvm"
	DirConda = "conda"
)

// FamilyFromGOOS maps a GOOS value to a Family. Unknown unix-likes are treated
// as linux.
func FamilyFromGOOS(goos string) Family {
	switch goos {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	default:
		return Linux
	}
}

// Info describes the host. Treat it as read-only; use the accessor methods to
// obtain copies of the slice and map fields.
type Info struct {
	Family       Family
	Arch         string
	HomeDir      string
	ResourcesDir string

	profilePaths []string
	installDirs  map[string]string
	searchPath   []string
}

// Overrides lets configuration (or tests) replace detected values.
type Overrides struct {
	// GOOS replaces runtime.GOOS.
	GOOS string
	// HomeDir replaces the detected home directory.
	HomeDir string
	// ResourcesDir replaces <executable dir>/resources.
	ResourcesDir string
	// InstallDirs replaces individual default install directories.
	InstallDirs map[string]string
	// Getenv replaces os.Getenv.
	Getenv func(string) string
	// Executable replaces os.Executable.
	Executable func() (string, error)
}

// Resolve computes the platform Info. It never fails: every lookup has a
// fallback.
func Resolve(o Overrides) Info {
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	getenv := o.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	info := Info{
		Family: FamilyFromGOOS(goos),
		Arch:   runtime.GOARCH,
	}
	info.HomeDir = resolveHome(o.HomeDir, getenv)
	info.ResourcesDir = resolveResources(o.ResourcesDir, o.Executable, info.HomeDir)
	info.profilePaths = defaultProfiles(info.Family, info.HomeDir)

	info.installDirs = defaultInstallDirs(info.Family, info.HomeDir)
	for k, v := range o.InstallDirs {
		if v != "" {
			info.installDirs[k] = v
		}
	}

	info.searchPath = buildSearchPath(info, getenv("PATH"))

	logging.Debug("Platform", "Resolved platform: family=%s home=%s resources=%s", info.Family, info.HomeDir, info.ResourcesDir)
	return info
}

func resolveHome(override string, getenv func(string) string) string {
	if override != "" {
		return override
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	for _, key := range []string{"HOME", "USERPROFILE"} {
		if v := getenv(key); v != "" {
			return v
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func resolveResources(override string, executable func() (string, error), home string) string {
	if override != "" {
		return override
	}
	if executable == nil {
		executable = os.Executable
	}
	if exe, err := executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "resources")
	}
	return filepath.Join(home, ".local", "share", "stackpilot", "resources")
}

func defaultProfiles(f Family, home string) []string {
	switch f {
	case Linux:
		return []string{
			filepath.Join(home, ".bashrc"),
			filepath.Join(home, ".profile"),
			filepath.Join(home, ".zshrc"),
		}
	case MacOS:
		return []string{
			filepath.Join(home, ".zshrc"),
			filepath.Join(home, ".bash_profile"),
			filepath.Join(home, ".profile"),
		}
	default:
		return nil
	}
}

func defaultInstallDirs(f Family, home string) map[string]string {
	if f == Windows {
		return map[string]string{
			DirNVM:   filepath.Join(home, "AppData", "Roaming", "nvm"),
			DirConda: filepath.Join(home, "Anaconda3"),
		}
	}
	return map[string]string{
		DirNVM:   filepath.Join(home, ".nvm"),
		DirConda: filepath.Join(home, "miniconda3"),
	}
}

// buildSearchPath prepends the managed tools' bin directories to PATH so a
// freshly installed tool resolves without touching the process environment.
func buildSearchPath(info Info, envPath string) []string {
	var dirs []string
	conda := info.installDirs[DirConda]
	if info.Family == Windows {
		dirs = append(dirs, conda, filepath.Join(conda, "Scripts"), info.installDirs[DirNVM])
	} else {
		dirs = append(dirs, filepath.Join(conda, "bin"))
	}

	sep := string(os.PathListSeparator)
	if info.Family == Windows {
		sep = ";"
	}
	seen := make(map[string]bool)
	var res []string
	for _, d := range append(dirs, strings.Split(envPath, sep)...) {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		res = append(res, d)
	}
	return res
}

// ProfilePaths returns the shell profile files in the order they are patched.
func (i Info) ProfilePaths() []string {
	return append([]string(nil), i.profilePaths...)
}

// InstallDir returns the install directory registered under key, or "".
func (i Info) InstallDir(key string) string {
	return i.installDirs[key]
}

// InstallDirs returns a copy of all install directories.
func (i Info) InstallDirs() map[string]string {
	res := make(map[string]string, len(i.installDirs))
	for k, v := range i.installDirs {
		res[k] = v
	}
	return res
}

// SearchPath returns the directories used for executable lookup.
func (i Info) SearchPath() []string {
	return append([]string(nil), i.searchPath...)
}

// PathEnv renders SearchPath as a PATH value for child processes.
func (i Info) PathEnv() string {
	sep := ":"
	if i.Family == Windows {
		sep = ";"
	}
	return strings.Join(i.searchPath, sep)
}

// Is reports whether the host belongs to one of the given families. An empty
// list matches every family.
func (i Info) Is(families ...Family) bool {
	if len(families) == 0 {
		return true
	}
	for _, f := range families {
		if f == i.Family {
			return true
		}
	}
	return false
}

// Matches is like Is but takes family names as written in configuration.
func (i Info) Matches(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		switch n = strings.ToLower(n); {
		case Family(n) == i.Family:
			return true
		case n == "darwin" && i.Family == MacOS:
			return true
		case n == "unix" && i.Family != Windows:
			return true
		}
	}
	return false
}
