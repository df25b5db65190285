// Package options merges user-supplied settings, the project's package.json override
// and documented defaults into a single validated Options value.
package options

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// Mode selects what happens once the runtime is cached.
type Mode string

// Dispatch modes.
const (
	ModeRun   Mode = "run"
	ModeBuild Mode = "build"
)

// Flavor is the runtime build variant.
type Flavor string

// Runtime flavors. The sdk flavor ships devtools.
const (
	FlavorNormal Flavor = "normal"
	FlavorSDK    Flavor = "sdk"
)

// Platform and architecture identifiers as used by the release manifest.
const (
	PlatformLinux = "linux"
	PlatformOSX   = "osx"
	PlatformWin   = "win"

	ArchIA32  = "ia32"
	ArchX64   = "x64"
	ArchARM64 = "arm64"
)

// Version aliases resolved against the release manifest.
const (
	VersionLatest = "latest"
	VersionStable = "stable"
)

// Default endpoints and locations.
const (
	DefaultDownloadURL = "https://dl.nwjs.io"
	DefaultManifestURL = "https://nwjs.io/versions.json"
	DefaultCacheDir    = "./cache"
	DefaultOutDir      = "./out"
	DefaultGlob        = "**/*"
)

var (
	modes     = []string{string(ModeRun), string(ModeBuild)}
	flavors   = []string{string(FlavorNormal), string(FlavorSDK)}
	platforms = []string{PlatformLinux, PlatformOSX, PlatformWin}
	arches    = []string{ArchIA32, ArchX64, ArchARM64}
)

// App is the application metadata taken from package.json.
type App struct {
	Name    string
	Version string
	Main    string
}

// Options is the resolved configuration for one invocation.
// It is produced by Resolve and treated as read-only afterwards.
type Options struct {
	SrcDir      string
	Files       []string
	Mode        Mode
	Version     string
	Flavor      Flavor
	Platform    string
	Arch        string
	OutDir      string
	CacheDir    string
	DownloadURL string
	ManifestURL string
	// Cache trusts an existing cache entry when true; false forces a refresh.
	Cache bool
	// Zip archives the build output.
	Zip  bool
	Argv []string
	App  App
}

// UserOptions holds caller-supplied values. Empty strings, nil slices and nil
// pointers mean "not supplied".
type UserOptions struct {
	SrcDir      string
	Files       []string
	Mode        string
	Version     string
	Flavor      string
	Platform    string
	Arch        string
	OutDir      string
	CacheDir    string
	DownloadURL string
	ManifestURL string
	Cache       *bool
	Zip         *bool
	Argv        []string
}

// Defaults returns the documented defaults for the host described by goos and goarch.
func Defaults(goos, goarch string) Options {
	return Options{
		SrcDir:      ".",
		Files:       []string{DefaultGlob},
		Mode:        ModeBuild,
		Version:     VersionLatest,
		Flavor:      FlavorNormal,
		Platform:    HostPlatform(goos),
		Arch:        HostArch(goarch),
		OutDir:      DefaultOutDir,
		CacheDir:    DefaultCacheDir,
		DownloadURL: DefaultDownloadURL,
		ManifestURL: DefaultManifestURL,
		Cache:       true,
	}
}

// HostDefaults returns Defaults for the running host.
func HostDefaults() Options {
	return Defaults(runtime.GOOS, runtime.GOARCH)
}

// HostPlatform maps a Go GOOS value to a manifest platform.
func HostPlatform(goos string) string {
	switch goos {
	case "darwin":
		return PlatformOSX
	case "windows":
		return PlatformWin
	default:
		return PlatformLinux
	}
}

// HostArch maps a Go GOARCH value to a manifest architecture.
func HostArch(goarch string) string {
	switch goarch {
	case "386":
		return ArchIA32
	case "arm64":
		return ArchARM64
	default:
		return ArchX64
	}
}

// Resolve merges user options, the project override and defaults.
// It performs no I/O: project must already be loaded. Required package.json fields
// are checked first so a broken project fails before any network access.
// Version aliases are passed through unresolved.
func Resolve(user UserOptions, project ProjectManifest, defaults Options) (Options, error) {
	if err := project.Validate(); err != nil {
		return Options{}, err
	}
	override, err := project.ParseOverride()
	if err != nil {
		return Options{}, err
	}

	merged := user
	override.apply(&merged)

	opts := Options{
		SrcDir:      firstNonEmpty(merged.SrcDir, defaults.SrcDir),
		Files:       firstNonEmptySlice(merged.Files, defaults.Files),
		Mode:        Mode(firstNonEmpty(merged.Mode, string(defaults.Mode))),
		Version:     normalizeVersionSpec(firstNonEmpty(merged.Version, defaults.Version)),
		Flavor:      Flavor(firstNonEmpty(merged.Flavor, string(defaults.Flavor))),
		Platform:    firstNonEmpty(merged.Platform, defaults.Platform),
		Arch:        firstNonEmpty(merged.Arch, defaults.Arch),
		OutDir:      firstNonEmpty(merged.OutDir, defaults.OutDir),
		CacheDir:    firstNonEmpty(merged.CacheDir, defaults.CacheDir),
		DownloadURL: strings.TrimRight(firstNonEmpty(merged.DownloadURL, defaults.DownloadURL), "/"),
		ManifestURL: firstNonEmpty(merged.ManifestURL, defaults.ManifestURL),
		Cache:       boolOr(merged.Cache, defaults.Cache),
		Zip:         boolOr(merged.Zip, defaults.Zip),
		Argv:        slices.Clone(firstNonEmptySlice(merged.Argv, defaults.Argv)),
		App: App{
			Name:    project.Name,
			Version: project.Version,
			Main:    project.Main,
		},
	}
	opts.Files = slices.Clone(opts.Files)

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks enumerated fields and required values.
func (o Options) Validate() error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{field: "mode", value: string(o.Mode), allowed: modes},
		{field: "flavor", value: string(o.Flavor), allowed: flavors},
		{field: "platform", value: o.Platform, allowed: platforms},
		{field: "arch", value: o.Arch, allowed: arches},
	}
	for _, c := range checks {
		if !slices.Contains(c.allowed, c.value) {
			return configError(c.field, fmt.Errorf(messages.OptionsInvalidValueFmt, c.field, c.value, strings.Join(c.allowed, ", ")))
		}
	}
	required := []struct {
		field string
		value string
	}{
		{field: "version", value: o.Version},
		{field: "outDir", value: o.OutDir},
		{field: "cacheDir", value: o.CacheDir},
		{field: "downloadUrl", value: o.DownloadURL},
		{field: "manifestUrl", value: o.ManifestURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return configError(r.field, fmt.Errorf(messages.OptionsEmptyValueFmt, r.field))
		}
	}
	if len(o.Files) == 0 {
		return configError("files", fmt.Errorf(messages.OptionsEmptyValueFmt, "files"))
	}
	return nil
}

// IsAlias reports whether v is a version alias rather than a concrete version.
func IsAlias(v string) bool {
	return v == VersionLatest || v == VersionStable
}

// normalizeVersionSpec strips a leading "v" from concrete versions and lowercases aliases.
func normalizeVersionSpec(raw string) string {
	v := strings.TrimSpace(raw)
	if lower := strings.ToLower(v); IsAlias(lower) {
		return lower
	}
	return strings.TrimPrefix(v, "v")
}

func configError(field string, err error) error {
	return &errs.Error{Kind: errs.Config, Op: "resolve options", Field: field, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNonEmptySlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
