// Package config loads the stackpilot configuration.
//
// Configuration is read from config.yaml in a single directory, by default
// ~/.config/stackpilot (override with --config-path). A missing file means the
// built-in defaults are used unchanged.
//
// # Layout
//
//	platform:    home, resources and install directory overrides
//	bootstrap:   stepTimeout, strict
//	tools:       installable dependencies (check, install per platform, verify)
//	configure:   idempotent patches and guarded commands
//	services:    long-running backends (match pattern, command, port)
//	database:    application role, database and superuser password
//	ui:          URL opened by run
//	readiness:   post-launch poll timeout and interval
//
// A list present in config.yaml replaces the corresponding default list.
//
// # Templates
//
// String fields of tools, configure steps and services are Go templates,
// rendered when the step runs so that paths created earlier in the same run
// resolve. The context exposes .Home, .Family, .Arch, .MachineArch,
// .ResourcesDir, .InstallDirs, .ProfilePaths, .User and .Database. The sprig
// function set is available, plus latestGlob which returns the glob match
// with the highest version number in its path:
//
//	file: '{{ latestGlob "/etc/postgresql/*/main/pg_hba.conf" }}'
//
// # Database password
//
// database.password defaults to a fixed value; STACKPILOT_DB_PASSWORD
// overrides it. A warning is logged on every run while the default is used.
package config
