package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StackpilotConfig is the top-level configuration structure for stackpilot.
type StackpilotConfig struct {
	Platform  PlatformConfig        `yaml:"platform,omitempty"`
	Bootstrap BootstrapConfig       `yaml:"bootstrap,omitempty"`
	Tools     []ToolDefinition      `yaml:"tools,omitempty"`
	Configure []ConfigureDefinition `yaml:"configure,omitempty"`
	Services  []ServiceDefinition   `yaml:"services,omitempty"`
	Database  DatabaseConfig        `yaml:"database,omitempty"`
	UI        UIConfig              `yaml:"ui,omitempty"`
	Readiness ReadinessConfig       `yaml:"readiness,omitempty"`
}

// PlatformConfig overrides values the platform probe would otherwise detect.
type PlatformConfig struct {
	HomeDir      string            `yaml:"homeDir,omitempty"`
	ResourcesDir string            `yaml:"resourcesDir,omitempty"`
	InstallDirs  map[string]string `yaml:"installDirs,omitempty"` // keyed by "nvm", "conda"
}

// BootstrapConfig controls how bootstrap steps are executed.
type BootstrapConfig struct {
	StepTimeout Duration `yaml:"stepTimeout,omitempty"` // Upper bound for a single install or configure step (default: 20m)
	Strict      bool     `yaml:"strict,omitempty"`      // Exit non-zero when any step degraded
}

// Platform keys accepted by Platforms lists and per-platform action maps.
const (
	PlatformLinux   = "linux"
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"
	// PlatformUnix matches linux and macos.
	PlatformUnix = "unix"
	// PlatformDefault is used when no more specific key matches.
	PlatformDefault = "default"
)

// CheckDefinition describes a side-effect free probe. All populated fields
// must hold for the check to pass.
type CheckDefinition struct {
	// Command must resolve to an executable (bare name or path).
	Command string `yaml:"command,omitempty"`
	// Path must exist.
	Path string `yaml:"path,omitempty"`
	// Shell must exit zero.
	Shell string `yaml:"shell,omitempty"`
	// Match is a regular expression the Shell output must match.
	Match string `yaml:"match,omitempty"`
	// EmptyOutput requires the Shell output to be empty.
	EmptyOutput bool `yaml:"emptyOutput,omitempty"`
	// Version is a shell command printing a version; MinVersion is a
	// go-version constraint such as ">= 18".
	Version    string `yaml:"version,omitempty"`
	MinVersion string `yaml:"minVersion,omitempty"`
	// Process must match a running process command line.
	Process string `yaml:"process,omitempty"`
	// Unit must be an active systemd unit. When systemd is unavailable the
	// Process pattern is used instead.
	Unit string `yaml:"unit,omitempty"`
	// Env holds extra KEY=VALUE pairs for Shell and Version.
	Env []string `yaml:"env,omitempty"`
}

// IsZero reports whether no probe is configured.
func (c CheckDefinition) IsZero() bool {
	return c.Command == "" && c.Path == "" && c.Shell == "" && c.Version == "" &&
		c.Process == "" && c.Unit == ""
}

// ActionDefinition describes a side-effecting command.
type ActionDefinition struct {
	Shell      string   `yaml:"shell,omitempty"`
	Run        []string `yaml:"run,omitempty"`
	Privileged bool     `yaml:"privileged,omitempty"`
	Dir        string   `yaml:"dir,omitempty"`
	Env        []string `yaml:"env,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
}

// PlatformActions maps a platform key to the ordered actions run there.
type PlatformActions map[string][]ActionDefinition

// For returns the actions for family, preferring the exact family, then
// "unix" for linux and macos, then "default".
func (p PlatformActions) For(family string) []ActionDefinition {
	if a, ok := p[family]; ok {
		return a
	}
	if family == PlatformLinux || family == PlatformMacOS {
		if a, ok := p[PlatformUnix]; ok {
			return a
		}
	}
	return p[PlatformDefault]
}

// ToolDefinition defines one installable dependency.
type ToolDefinition struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Branch      string          `yaml:"branch,omitempty"`
	DependsOn   []string        `yaml:"dependsOn,omitempty"`
	Platforms   []string        `yaml:"platforms,omitempty"`
	When        CheckDefinition `yaml:"when,omitempty"`
	Check       CheckDefinition `yaml:"check"`
	Install     PlatformActions `yaml:"install"`
	// Verify defaults to Check when empty.
	Verify CheckDefinition `yaml:"verify,omitempty"`
}

// PatchDefinition describes an idempotent edit of a text file.
type PatchDefinition struct {
	File string `yaml:"file,omitempty"`
	// Profiles applies the patch to every shell profile of the platform.
	Profiles bool `yaml:"profiles,omitempty"`
	// Match is a regular expression; its first match is replaced by Replace.
	Match   string `yaml:"match,omitempty"`
	Replace string `yaml:"replace,omitempty"`
	// Append is added when Marker (default: its first non-empty line) is absent.
	Append string `yaml:"append,omitempty"`
	Marker string `yaml:"marker,omitempty"`
	// Optional patches are skipped when the target file does not exist.
	Optional   bool `yaml:"optional,omitempty"`
	Privileged bool `yaml:"privileged,omitempty"`
}

// GuardedAction is an action skipped when Unless passes.
type GuardedAction struct {
	ActionDefinition `yaml:",inline"`
	Name             string          `yaml:"name,omitempty"`
	Platforms        []string        `yaml:"platforms,omitempty"`
	Unless           CheckDefinition `yaml:"unless,omitempty"`
}

// ConfigureDefinition defines one environment configuration step.
type ConfigureDefinition struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Branch      string          `yaml:"branch,omitempty"`
	DependsOn   []string        `yaml:"dependsOn,omitempty"`
	Platforms   []string        `yaml:"platforms,omitempty"`
	When        CheckDefinition `yaml:"when,omitempty"`
	// Privileged asks for credentials before the step runs, for steps whose
	// scripts call sudo themselves.
	Privileged bool              `yaml:"privileged,omitempty"`
	Patches    []PatchDefinition `yaml:"patches,omitempty"`
	// OnChange runs after the patches, only when at least one changed a file.
	OnChange []ActionDefinition `yaml:"onChange,omitempty"`
	Commands []GuardedAction    `yaml:"commands,omitempty"`
}

// ServiceDefinition defines one long-running backend process.
type ServiceDefinition struct {
	Name string `yaml:"name"`
	// Match is the command line substring identifying a live instance.
	Match        string   `yaml:"match"`
	Command      []string `yaml:"command"`
	Dir          string   `yaml:"dir,omitempty"`
	Env          []string `yaml:"env,omitempty"`
	Port         int      `yaml:"port,omitempty"`
	ReadinessURL string   `yaml:"readinessURL,omitempty"`
	Platforms    []string `yaml:"platforms,omitempty"`
	Enabled      *bool    `yaml:"enabled,omitempty"` // default: true
}

// IsEnabled reports whether the service should be launched.
func (s ServiceDefinition) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DatabaseConfig holds the application database credentials.
type DatabaseConfig struct {
	User     string `yaml:"user,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// UIConfig describes the web UI the shell displays.
type UIConfig struct {
	URL         string `yaml:"url,omitempty"`
	OpenBrowser *bool  `yaml:"openBrowser,omitempty"` // default: true
}

// ShouldOpenBrowser reports whether run opens the UI in the system browser.
func (u UIConfig) ShouldOpenBrowser() bool {
	return u.OpenBrowser == nil || *u.OpenBrowser
}

// ReadinessConfig bounds the post-launch readiness poll.
type ReadinessConfig struct {
	Timeout  Duration `yaml:"timeout,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("20m").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
