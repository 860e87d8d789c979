package config

import "time"

const (
	// DefaultStepTimeout bounds a single install or configure step.
	DefaultStepTimeout = 20 * time.Minute

	// DefaultReadinessTimeout bounds the post-launch readiness poll.
	DefaultReadinessTimeout = 30 * time.Second

	// DefaultReadinessInterval is the initial readiness poll interval.
	DefaultReadinessInterval = 500 * time.Millisecond

	// DefaultUIURL is the page the shell displays.
	DefaultUIURL = "http://localhost:3000"

	// DefaultDatabasePassword is the shipped superuser password. The launcher
	// warns on every run while it is in use.
	DefaultDatabasePassword = "Admin@1234"

	// DatabasePasswordEnv overrides database.password.
	DatabasePasswordEnv = "STACKPILOT_DB_PASSWORD"

	// CondaEnvName is the environment the python backend runs in.
	CondaEnvName = "myenv"
)

// Template snippets shared by the default definitions. They are rendered
// when a step runs, so binaries installed earlier in the same run resolve.
const (
	nodeBin = `{{ if eq .Family "windows" }}{{ latestGlob (printf "%s/v*/node.exe" .InstallDirs.nvm) | default "node" }}` +
		`{{ else }}{{ latestGlob (printf "%s/versions/node/v*/bin/node" .InstallDirs.nvm) | default "node" }}{{ end }}`
	condaBin = `{{ if eq .Family "windows" }}{{ .InstallDirs.conda }}\Scripts\conda.exe{{ else }}{{ .InstallDirs.conda }}/bin/conda{{ end }}`

	nodeBackendDir   = `{{ .ResourcesDir }}/nodejs`
	pythonBackendDir = `{{ .ResourcesDir }}/fastapi`

	pgAsSuperuser = `PGPASSWORD="$STACKPILOT_DB_PASSWORD" psql -U postgres -h localhost`
	pgPasswordEnv = DatabasePasswordEnv + `={{ .Database.Password }}`

	nvmProfileBlock = `# >>> stackpilot nvm >>>
export NVM_DIR="{{ .InstallDirs.nvm }}"
[ -s "$NVM_DIR/nvm.sh" ] && . "$NVM_DIR/nvm.sh"
[ -s "$NVM_DIR/bash_completion" ] && . "$NVM_DIR/bash_completion"
# <<< stackpilot nvm <<<
`
)

// GetDefaultConfig returns the built-in configuration: the tool chain,
// configuration steps and backend services of the application stack.
func GetDefaultConfig() StackpilotConfig {
	return StackpilotConfig{
		Bootstrap: BootstrapConfig{
			StepTimeout: Duration(DefaultStepTimeout),
		},
		Tools:     defaultTools(),
		Configure: defaultConfigure(),
		Services:  defaultServices(),
		Database: DatabaseConfig{
			User:     "root",
			Name:     "marcin",
			Password: DefaultDatabasePassword,
		},
		UI: UIConfig{
			URL: DefaultUIURL,
		},
		Readiness: ReadinessConfig{
			Timeout:  Duration(DefaultReadinessTimeout),
			Interval: Duration(DefaultReadinessInterval),
		},
	}
}

func defaultTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "system-packages",
			Description: "Repair half-configured system packages",
			Branch:      "system",
			Platforms:   []string{PlatformLinux},
			When:        CheckDefinition{Command: "dpkg"},
			Check:       CheckDefinition{Shell: "dpkg --audit", EmptyOutput: true},
			Install: PlatformActions{
				PlatformLinux: {{Shell: "apt --fix-broken install -y", Privileged: true}},
			},
		},
		{
			Name:        "node",
			Description: "Node.js 18 via nvm",
			Branch:      "node",
			Check:       CheckDefinition{Command: nodeBin},
			Install: PlatformActions{
				PlatformUnix: {{
					Shell: `mkdir -p "$NVM_DIR"
[ -s "$NVM_DIR/nvm.sh" ] || curl -fsSL https://raw.githubusercontent.com/nvm-sh/nvm/v0.39.4/install.sh | PROFILE=/dev/null bash
. "$NVM_DIR/nvm.sh" && nvm install 18 && nvm alias default 18`,
					Env: []string{"NVM_DIR={{ .InstallDirs.nvm }}"},
				}},
				PlatformWindows: {{
					Shell: `winget install --id CoreyButler.NVMforWindows -e --silent --accept-source-agreements --accept-package-agreements
nvm install 18
nvm use 18`,
					Privileged: true,
				}},
			},
			Verify: CheckDefinition{Version: `"` + nodeBin + `" --version`, MinVersion: ">= 18"},
		},
		{
			Name:        "conda",
			Description: "Miniconda package and environment manager",
			Branch:      "python",
			Check:       CheckDefinition{Path: "{{ .InstallDirs.conda }}", Command: condaBin},
			Install: PlatformActions{
				PlatformUnix: {{
					Shell: `set -e
installer="$(mktemp -d)/miniconda.sh"
curl -fsSL -o "$installer" "https://repo.anaconda.com/miniconda/Miniconda3-latest-{{ if eq .Family "macos" }}MacOSX{{ else }}Linux{{ end }}-{{ .MachineArch }}.sh"
bash "$installer" -b -p "{{ .InstallDirs.conda }}"
rm -f "$installer"`,
				}},
				PlatformWindows: {{
					Shell: `$installer = Join-Path $env:TEMP 'miniconda.exe'
Invoke-WebRequest -Uri 'https://repo.anaconda.com/miniconda/Miniconda3-latest-Windows-x86_64.exe' -OutFile $installer
Start-Process -FilePath $installer -ArgumentList '/InstallationType=JustMe','/S','/D={{ .InstallDirs.conda }}' -Wait`,
				}},
			},
			Verify: CheckDefinition{Command: condaBin},
		},
		{
			Name:        "postgres",
			Description: "PostgreSQL database engine",
			Branch:      "database",
			Check:       CheckDefinition{Command: "psql"},
			Install: PlatformActions{
				PlatformLinux: {{Shell: "apt update && apt install -y postgresql postgresql-contrib", Privileged: true}},
				PlatformMacOS: {{Shell: "brew install postgresql@16 && brew link --force postgresql@16"}},
				PlatformWindows: {{Shell: "choco install postgresql -y", Privileged: true}},
			},
		},
		{
			Name:        "ollama",
			Description: "Ollama LLM inference daemon",
			Branch:      "inference",
			Check:       CheckDefinition{Command: "ollama"},
			Install: PlatformActions{
				PlatformLinux:   {{Shell: "curl -fsSL https://ollama.com/install.sh | sh"}},
				PlatformMacOS:   {{Shell: "brew install ollama"}},
				PlatformWindows: {{Shell: "winget install --id Ollama.Ollama -e --silent --accept-source-agreements --accept-package-agreements"}},
			},
		},
		{
			Name:        "node-deps",
			Description: "Node.js backend dependencies",
			Branch:      "node",
			DependsOn:   []string{"node"},
			When:        CheckDefinition{Path: nodeBackendDir + "/package.json"},
			Check:       CheckDefinition{Path: nodeBackendDir + "/node_modules"},
			Install: PlatformActions{
				PlatformUnix: {
					{Run: []string{"chown", "-R", "{{ .User }}", nodeBackendDir}, Privileged: true},
					{
						Shell: `export PATH="$(dirname "` + nodeBin + `"):$PATH"
npm install --production`,
						Dir: nodeBackendDir,
					},
				},
				PlatformWindows: {{Shell: "npm install --production", Dir: nodeBackendDir}},
			},
		},
		{
			Name:        "python-deps",
			Description: "Python backend dependencies",
			Branch:      "python",
			DependsOn:   []string{"conda-env"},
			When:        CheckDefinition{Path: pythonBackendDir + "/requirements.txt"},
			Check: CheckDefinition{
				Shell: `"` + condaBin + `" run -n ` + CondaEnvName + ` python -c "import fastapi, uvicorn, requests, torch, transformers"`,
			},
			Install: PlatformActions{
				PlatformDefault: {{
					Run: []string{condaBin, "run", "-n", CondaEnvName, "pip", "install", "-r", pythonBackendDir + "/requirements.txt"},
				}},
			},
		},
	}
}

func defaultConfigure() []ConfigureDefinition {
	return []ConfigureDefinition{
		{
			Name:        "shell-profile",
			Description: "Source nvm from the user's shell profiles",
			Branch:      "node",
			DependsOn:   []string{"node"},
			Platforms:   []string{PlatformLinux, PlatformMacOS},
			Patches: []PatchDefinition{
				{Profiles: true, Append: nvmProfileBlock},
			},
		},
		{
			Name:        "conda-env",
			Description: "Python 3.9 conda environment",
			Branch:      "python",
			DependsOn:   []string{"conda"},
			Commands: []GuardedAction{
				{
					Name:             "create " + CondaEnvName,
					ActionDefinition: ActionDefinition{Run: []string{condaBin, "create", "--yes", "--name", CondaEnvName, "python=3.9"}},
					Unless: CheckDefinition{
						Shell: `"` + condaBin + `" env list`,
						Match: `(?m)^` + CondaEnvName + `\s`,
					},
				},
			},
		},
		{
			Name:        "postgres-service",
			Description: "Keep the PostgreSQL server running",
			Branch:      "database",
			DependsOn:   []string{"postgres"},
			Commands: []GuardedAction{
				{
					Name:             "start postgresql",
					Platforms:        []string{PlatformLinux},
					ActionDefinition: ActionDefinition{Shell: "systemctl start postgresql", Privileged: true},
					Unless:           CheckDefinition{Unit: "postgresql", Process: "postgres"},
				},
				{
					Name:             "start postgresql",
					Platforms:        []string{PlatformMacOS},
					ActionDefinition: ActionDefinition{Shell: "brew services start postgresql@16"},
					Unless:           CheckDefinition{Process: "postgres"},
				},
				{
					Name:             "start postgresql",
					Platforms:        []string{PlatformWindows},
					ActionDefinition: ActionDefinition{Shell: "Start-Service -Name 'postgresql*'", Privileged: true},
					Unless:           CheckDefinition{Process: "postgres"},
				},
			},
		},
		{
			// The password is set while peer authentication still works; the
			// md5 switch below would otherwise lock the superuser out.
			Name:        "postgres-password",
			Description: "Set the PostgreSQL superuser password",
			Branch:      "database",
			DependsOn:   []string{"postgres-service"},
			Platforms:   []string{PlatformLinux},
			Privileged:  true,
			Commands: []GuardedAction{
				{
					Name: "alter postgres password",
					ActionDefinition: ActionDefinition{
						Shell: `sudo -u postgres psql -v ON_ERROR_STOP=1 -v pw="$STACKPILOT_DB_PASSWORD" <<'SQL'
ALTER USER postgres PASSWORD :'pw';
SQL`,
						Env: []string{pgPasswordEnv},
					},
					Unless: CheckDefinition{
						Shell: pgAsSuperuser + ` -tAc "SELECT 1"`,
						Env:   []string{pgPasswordEnv},
					},
				},
			},
		},
		{
			Name:        "postgres-auth",
			Description: "Switch local superuser authentication from peer to md5",
			Branch:      "database",
			DependsOn:   []string{"postgres-password"},
			Platforms:   []string{PlatformLinux},
			Patches: []PatchDefinition{
				{
					File:       `{{ latestGlob "/etc/postgresql/*/main/pg_hba.conf" }}`,
					Match:      `(?m)^local\s+all\s+postgres\s+peer\s*$`,
					Replace:    "local   all   postgres   md5",
					Privileged: true,
				},
			},
			OnChange: []ActionDefinition{
				{Shell: "systemctl restart postgresql", Privileged: true},
			},
		},
		{
			Name:        "postgres-provision",
			Description: "Create the application role and database",
			Branch:      "database",
			DependsOn:   []string{"postgres-auth"},
			Platforms:   []string{PlatformLinux},
			Commands: []GuardedAction{
				{
					Name: "create role",
					ActionDefinition: ActionDefinition{
						Shell: pgAsSuperuser + ` -v ON_ERROR_STOP=1 -v pw="$STACKPILOT_DB_PASSWORD" <<'SQL'
CREATE USER "{{ .Database.User }}" WITH PASSWORD :'pw';
SQL`,
						Env: []string{pgPasswordEnv},
					},
					Unless: CheckDefinition{
						Shell: pgAsSuperuser + ` -tAc "SELECT 1 FROM pg_roles WHERE rolname = '{{ .Database.User }}'"`,
						Match: `^1$`,
						Env:   []string{pgPasswordEnv},
					},
				},
				{
					Name: "create database",
					ActionDefinition: ActionDefinition{
						Shell: pgAsSuperuser + ` -v ON_ERROR_STOP=1 -c 'CREATE DATABASE "{{ .Database.Name }}" OWNER "{{ .Database.User }}"'`,
						Env:   []string{pgPasswordEnv},
					},
					Unless: CheckDefinition{
						Shell: pgAsSuperuser + ` -tAc "SELECT 1 FROM pg_database WHERE datname = '{{ .Database.Name }}'"`,
						Match: `^1$`,
						Env:   []string{pgPasswordEnv},
					},
				},
			},
		},
	}
}

func defaultServices() []ServiceDefinition {
	disabled := false
	return []ServiceDefinition{
		{
			Name:         "node-backend",
			Match:        "server.js",
			Command:      []string{nodeBin, nodeBackendDir + "/server.js"},
			Dir:          nodeBackendDir,
			Port:         3000,
			ReadinessURL: "http://localhost:3000",
		},
		{
			Name:         "python-backend",
			Match:        "app.py",
			Command:      []string{condaBin, "run", "-n", CondaEnvName, "python", pythonBackendDir + "/app.py"},
			Dir:          pythonBackendDir,
			Port:         8000,
			ReadinessURL: "http://localhost:8000",
		},
		{
			Name:         "ollama",
			Match:        "ollama serve",
			Command:      []string{"ollama", "serve"},
			Port:         11434,
			ReadinessURL: "http://localhost:11434",
			Enabled:      &disabled,
		},
	}
}
