package messages

// Config file and environment messages.
const (
	ConfigMissingFileFmt      = "missing config file %s: %w"
	ConfigReadFileFmt         = "read config file %s: %w"
	ConfigInvalidConfigFmt    = "invalid config %s: %w"
	ConfigUnrecognizedKeysFmt = "config %s has unrecognized keys: %w"
	ConfigExpandPathFmt       = "expand %s %q: %w"
	ConfigInvalidEnvFmt       = "invalid %s=%q: %s"
	ConfigInvalidDurationFmt  = "invalid %s %q: %w"
)
