package messages

// Acquisition pipeline messages.
const (
	AcquireCreateRequestFmt     = "create request for %s: %w"
	AcquireDownloadFailedFmt    = "download %s: %w"
	AcquireDownloadTimeoutFmt   = "download %s: request timed out"
	AcquireDownload404Fmt       = "download %s: not found (check the download URL and version)"
	AcquireUnexpectedStatusFmt  = "download %s: unexpected status %s"
	AcquireDownloadTooLargeFmt  = "download %s: archive exceeds the %s size limit"
	AcquireSyncTempFileFmt      = "sync temp archive: %w"
	AcquireCloseTempFileFmt     = "close temp archive: %w"
	AcquireUnsupportedFormatFmt = "unsupported archive format for %s"
	AcquireOpenArchiveFmt       = "open archive %s: %w"
	AcquireCorruptArchiveFmt    = "read archive %s: %w"
	AcquireUnsafeEntryFmt       = "archive entry %q escapes the extraction directory"
	AcquireUnsupportedEntryFmt  = "archive entry %q has unsupported type %s"
	AcquireWriteEntryFmt        = "extract %s: %w"
	AcquireEmptyArchiveFmt      = "archive %s contains no files"
	AcquireDownloadingFmt       = "Downloading %s\n"
	AcquireProgressFmt          = "\r%s: %s / %s"
	AcquireProgressUnknownFmt   = "\r%s: %s"
	AcquireDownloadedFmt        = "Downloaded %s (%s)\n"
	AcquireRemoveArchiveWarning = "could not remove downloaded archive"
	AcquireRequestIncompleteFmt = "acquire request is missing %s"
)
