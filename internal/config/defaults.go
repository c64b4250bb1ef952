package config

const (
	BackendModeWarm = "warm"
	BackendModeCold = "cold"
)

const (
	defaultConfigPath            = "~/.config/gmaild/config.toml"
	defaultRuntimeDir            = "~/.fgp/services/gmail"
	defaultLogDir                = "~/.fgp/services/gmail/logs"
	defaultBackendMode           = BackendModeWarm
	defaultPython                = "python3"
	defaultModulePath            = "~/.fgp/services/gmail/module/gmail.py"
	defaultModuleClass           = "GmailModule"
	defaultCLIScript             = "~/.fgp/services/gmail/scripts/gmail-cli.py"
	defaultStartupTimeoutSeconds = 120
	defaultJournalMaxEntries     = 5000
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30

	socketFileName   = "daemon.sock"
	lockFileName     = "gmaild.lock"
	pidFileName      = "gmaild.pid"
	journalFileName  = "journal.db"
	warmHostFileName = "warm_host.py"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir,
			LogDir:     defaultLogDir,
		},
		Backend: Backend{
			Mode:                  defaultBackendMode,
			Python:                defaultPython,
			ModulePath:            defaultModulePath,
			ModuleClass:           defaultModuleClass,
			CLIScript:             defaultCLIScript,
			StartupTimeoutSeconds: defaultStartupTimeoutSeconds,
			ExitOnSessionFault:    true,
		},
		Journal: Journal{
			Enabled:    true,
			MaxEntries: defaultJournalMaxEntries,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
