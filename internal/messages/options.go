package messages

// Option resolution and project manifest messages.
const (
	OptionsReadProjectManifestFmt      = "read %s: %w"
	OptionsParseProjectManifestFmt     = "parse %s: %w"
	OptionsProjectManifestNotObjectFmt = "%s must contain a JSON object, found %s"
	OptionsMissingFieldFmt             = "package.json is missing required field %q"
	OptionsFieldTypeFmt                = "package.json field %q must be a %s, found %s"
	OptionsOverrideTypeFmt             = "package.json field %q must be an object, found %s"
	OptionsOverrideInvalidFmt          = "package.json field %q: %w"
	OptionsOverrideFieldTypeFmt        = "package.json field %q must be a %s, found %s"
	OptionsInvalidValueFmt             = "invalid %s %q; expected one of: %s"
	OptionsEmptyValueFmt               = "%s must not be empty"
	OptionsInvalidGlobFmt              = "invalid glob pattern %q"
	OptionsGlobFailedFmt               = "match %q in %s: %w"
	OptionsNoFilesMatchedFmt           = "no files in %s matched %s"
)
