package messages

// CLI messages for user-facing commands.
const (
	// RootUse is the CLI command name.
	RootUse   = "nwbuild"
	RootShort = "Fetch, cache and package NW.js runtimes"
	RootLong  = "nwbuild resolves an NW.js runtime from the release manifest, keeps it in a local cache and either packages your app with it or runs your app in development."

	// VersionCommitFmt formats the commit hash for version display.
	VersionCommitFmt = "commit %s"
	VersionBuildFmt  = "built %s"
	VersionFullFmt   = "%s (%s)"
	VersionTemplate  = "{{.Version}}\n"

	BuildUse   = "build"
	BuildShort = "Package the app with a cached runtime"
	RunUse     = "run [-- runtime args...]"
	RunShort   = "Run the app with a cached runtime"

	VersionsUse       = "versions"
	VersionsShort     = "List runtime versions from the release manifest"
	VersionsFlagAll   = "Include every target for each version"
	VersionsFlagJSON  = "Print the versions as JSON"
	VersionsFlagLimit = "Show at most this many versions (0 for all)"
	VersionsRowFmt    = "%-12s %-10s %-7s %s\n"

	CacheUse        = "cache"
	CacheShort      = "Inspect and clean the runtime cache"
	CacheLsUse      = "ls"
	CacheLsShort    = "List cached runtimes"
	CacheLsEmptyFmt = "No cached runtimes in %s\n"
	CacheLsRowFmt   = "%-40s %-10s %8s  %s\n"
	CacheCleanUse   = "clean"
	CacheCleanShort = "Remove interrupted downloads and partial runtimes"
	CacheCleanAll   = "Remove every cached runtime, not only partial ones"
	CacheCleanedFmt = "Removed %s\n"
	CacheCleanNone  = "Nothing to clean"
	CacheSkipLocked = "Skipping %s: in use by another process\n"

	FlagConfig      = "Path to nwbuild.toml (default: ./nwbuild.toml when present)"
	FlagSrcDir      = "Application source directory containing package.json"
	FlagFiles       = "Glob patterns selecting app files, relative to the source directory"
	FlagNWVersion   = "Runtime version: a concrete version, latest or stable"
	FlagFlavor      = "Runtime flavor: normal or sdk"
	FlagPlatform    = "Target platform: linux, osx or win"
	FlagArch        = "Target architecture: ia32, x64 or arm64"
	FlagOutDir      = "Output directory for packaged bundles"
	FlagCacheDir    = "Runtime cache directory"
	FlagDownloadURL = "Base URL for runtime archives"
	FlagManifestURL = "URL of the release manifest"
	FlagNoCache     = "Discard any cached runtime and download it again"
	FlagZip         = "Also write a zip of each bundle"
	FlagOffline     = "Never touch the network; use cached manifests and runtimes only"
	FlagLogLevel    = "Log level: trace, debug, info, warn or error"
	FlagJSONLog     = "Write logs as JSON lines"

	ErrorPrefix       = "Error:"
	CLIInvalidFlagFmt = "invalid --%s %q: %s"
)
