package messages

// Dispatcher and collaborator messages.
const (
	DispatchUnknownModeFmt       = "unknown mode %q"
	DispatchNoPackager           = "no packager configured"
	DispatchNoLauncher           = "no launcher configured"
	DispatchRuntimeNotReadyFmt   = "runtime at %s is not a populated cache entry"
	DispatchPackageFailedFmt     = "package %s for %s-%s: %w"
	DispatchLaunchFailedFmt      = "launch %s: %w"
	BundleCopyRuntimeFmt         = "copy runtime into %s: %w"
	BundleCopyAppFileFmt         = "copy %s into %s: %w"
	BundleRemoveOutputFmt        = "clear previous output %s: %w"
	BundleCreateZipFmt           = "create %s: %w"
	BundleWriteZipEntryFmt       = "add %s to %s: %w"
	BundleWroteFmt               = "Wrote %s\n"
	LaunchExecutableMissingFmt   = "runtime executable %s not found: %w"
	LaunchUnsupportedPlatformFmt = "cannot launch %s runtime on this host"
)
