package messages

// Release manifest messages.
const (
	ManifestCreateRequestFmt     = "create request for %s: %w"
	ManifestFetchFailedFmt       = "fetch manifest %s: %w"
	ManifestFetchTimeoutFmt      = "fetch manifest %s: request timed out"
	ManifestUnexpectedStatusFmt  = "fetch manifest %s: unexpected status %s"
	ManifestReadFailedFmt        = "read manifest %s: %w"
	ManifestDecodeFailedFmt      = "decode manifest %s: %w"
	ManifestNoVersions           = "manifest lists no versions"
	ManifestInvalidFilesFmt      = "manifest version %s: files must be a list or an object keyed by flavor"
	ManifestOfflineNoCacheFmt    = "no cached manifest at %s; network access disabled via %s"
	ManifestWriteCacheWarning    = "could not cache manifest"
	ManifestVersionNotFoundFmt   = "version %s not found in manifest %s"
	ManifestNoStableVersionFmt   = "manifest %s does not flag any version as stable"
	ManifestUnsupportedFmt       = "%s flavor is not available for %s-%s in version %s (available: %s)"
	ManifestRetryBudgetExhausted = "retry budget exhausted"
)
