package messages

// Cache manager messages.
const (
	CacheCreateDirFmt        = "create directory %s: %w"
	CacheRemoveEntryFmt      = "remove %s: %w"
	CacheStatEntryFmt        = "check cache entry %s: %w"
	CacheReadDirFmt          = "read cache directory %s: %w"
	CacheCreateStagingFmt    = "create staging directory for %s: %w"
	CacheCreateTempFileFmt   = "create temp archive for %s: %w"
	CacheWriteMarkerFmt      = "write completion marker %s: %w"
	CacheMoveEntryFmt        = "move %s into place at %s: %w"
	CacheEntryExistsFmt      = "cache entry %s already exists"
	CacheOpenLockFmt         = "open lock %s: %w"
	CacheLockFmt             = "lock %s: %w"
	CacheLockTimeoutFmt      = "timed out waiting for lock %s after %s"
	CacheNotCachedOfflineFmt = "%s is not cached (expected at %s); network access disabled via %s"
	CacheRefreshOffline      = "cannot refresh the cached runtime while network access is disabled"
)
