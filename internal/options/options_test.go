package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/nwbuild/internal/errs"
)

func mustProject(t *testing.T, body string) ProjectManifest {
	t.Helper()
	pm, err := ParseProjectManifest([]byte(body), "package.json")
	require.NoError(t, err)
	return pm
}

func boolPtr(v bool) *bool { return &v }

func TestResolveAppliesDefaults(t *testing.T) {
	project := mustProject(t, `{"name":"demo","main":"index.html","version":"1.0.0"}`)

	opts, err := Resolve(UserOptions{}, project, Defaults("linux", "amd64"))
	require.NoError(t, err)

	assert.Equal(t, ModeBuild, opts.Mode)
	assert.Equal(t, VersionLatest, opts.Version)
	assert.Equal(t, FlavorNormal, opts.Flavor)
	assert.Equal(t, PlatformLinux, opts.Platform)
	assert.Equal(t, ArchX64, opts.Arch)
	assert.Equal(t, DefaultCacheDir, opts.CacheDir)
	assert.Equal(t, DefaultOutDir, opts.OutDir)
	assert.Equal(t, DefaultDownloadURL, opts.DownloadURL)
	assert.Equal(t, DefaultManifestURL, opts.ManifestURL)
	assert.Equal(t, []string{DefaultGlob}, opts.Files)
	assert.True(t, opts.Cache)
	assert.False(t, opts.Zip)
	assert.Equal(t, App{Name: "demo", Version: "1.0.0", Main: "index.html"}, opts.App)
}

func TestResolveUserOptionsBeatDefaults(t *testing.T) {
	project := mustProject(t, `{"name":"demo","main":"index.html"}`)
	user := UserOptions{
		Mode:     "run",
		Version:  "v0.82.0",
		Flavor:   "sdk",
		Platform: "win",
		Arch:     "ia32",
		CacheDir: "/tmp/nw",
		Cache:    boolPtr(false),
		Zip:      boolPtr(true),
		Files:    []string{"src/**/*"},
	}

	opts, err := Resolve(user, project, Defaults("linux", "amd64"))
	require.NoError(t, err)

	assert.Equal(t, ModeRun, opts.Mode)
	assert.Equal(t, "0.82.0", opts.Version, "leading v is stripped from concrete versions")
	assert.Equal(t, FlavorSDK, opts.Flavor)
	assert.Equal(t, PlatformWin, opts.Platform)
	assert.Equal(t, ArchIA32, opts.Arch)
	assert.Equal(t, "/tmp/nw", opts.CacheDir)
	assert.False(t, opts.Cache)
	assert.True(t, opts.Zip)
	assert.Equal(t, []string{"src/**/*"}, opts.Files)
}

func TestResolveOverrideBeatsUserOptions(t *testing.T) {
	project := mustProject(t, `{
		"name": "demo",
		"main": "index.html",
		"nwbuild": {"version": "0.80.0", "flavor": "sdk", "cache": false, "files": "app/**", "argv": ["--debug"]}
	}`)
	user := UserOptions{Version: "0.82.0", Flavor: "normal", Cache: boolPtr(true), Platform: "osx"}

	opts, err := Resolve(user, project, Defaults("linux", "amd64"))
	require.NoError(t, err)

	assert.Equal(t, "0.80.0", opts.Version)
	assert.Equal(t, FlavorSDK, opts.Flavor)
	assert.False(t, opts.Cache)
	assert.Equal(t, []string{"app/**"}, opts.Files)
	assert.Equal(t, []string{"--debug"}, opts.Argv)
	assert.Equal(t, PlatformOSX, opts.Platform, "fields the override omits keep the user value")
}

func TestResolveAliasesPassThrough(t *testing.T) {
	project := mustProject(t, `{"name":"demo","main":"index.html"}`)
	for _, spec := range []string{"latest", "stable", "STABLE"} {
		opts, err := Resolve(UserOptions{Version: spec}, project, Defaults("linux", "amd64"))
		require.NoError(t, err)
		assert.True(t, IsAlias(opts.Version), "alias %q should be preserved, got %q", spec, opts.Version)
	}
}

func TestResolveOverrideWrongType(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		found string
	}{
		{name: "string", body: `"sdk"`, field: "nwbuild", found: "string"},
		{name: "array", body: `["sdk"]`, field: "nwbuild", found: "array"},
		{name: "number", body: `42`, field: "nwbuild", found: "number"},
		{name: "null", body: `null`, field: "nwbuild", found: "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := mustProject(t, `{"name":"demo","main":"index.html","nwbuild":`+tt.body+`}`)
			_, err := Resolve(UserOptions{}, project, Defaults("linux", "amd64"))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Config))

			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.field, e.Field)
			assert.Contains(t, err.Error(), tt.found)
		})
	}
}

func TestResolveOverrideFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "wrong bool", body: `{"cache":"yes"}`, field: "nwbuild.cache"},
		{name: "wrong string", body: `{"version":82}`, field: "nwbuild.version"},
		{name: "unknown key", body: `{"colour":"blue"}`, field: "nwbuild.colour"},
		{name: "wrong files", body: `{"files":{"a":1}}`, field: "nwbuild.files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := mustProject(t, `{"name":"demo","main":"index.html","nwbuild":`+tt.body+`}`)
			_, err := Resolve(UserOptions{}, project, Defaults("linux", "amd64"))
			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errs.Config, e.Kind)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestResolveRequiresNameAndMain(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing name", body: `{"main":"index.html"}`, field: "name"},
		{name: "missing main", body: `{"name":"demo"}`, field: "main"},
		{name: "empty name", body: `{"name":"","main":"index.html"}`, field: "name"},
		{name: "name not string", body: `{"name":1,"main":"index.html"}`, field: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := mustProject(t, tt.body)
			_, err := Resolve(UserOptions{}, project, Defaults("linux", "amd64"))
			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errs.Config, e.Kind)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestResolveRejectsUnknownEnumValues(t *testing.T) {
	project := mustProject(t, `{"name":"demo","main":"index.html"}`)
	tests := []struct {
		user  UserOptions
		field string
	}{
		{user: UserOptions{Mode: "serve"}, field: "mode"},
		{user: UserOptions{Flavor: "debug"}, field: "flavor"},
		{user: UserOptions{Platform: "freebsd"}, field: "platform"},
		{user: UserOptions{Arch: "mips"}, field: "arch"},
	}
	for _, tt := range tests {
		_, err := Resolve(tt.user, project, Defaults("linux", "amd64"))
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, tt.field, e.Field)
	}
}

func TestHostMapping(t *testing.T) {
	assert.Equal(t, PlatformOSX, HostPlatform("darwin"))
	assert.Equal(t, PlatformWin, HostPlatform("windows"))
	assert.Equal(t, PlatformLinux, HostPlatform("linux"))
	assert.Equal(t, ArchIA32, HostArch("386"))
	assert.Equal(t, ArchX64, HostArch("amd64"))
	assert.Equal(t, ArchARM64, HostArch("arm64"))
}

func TestParseProjectManifestRejectsNonObject(t *testing.T) {
	_, err := ParseProjectManifest([]byte(`["not","an","object"]`), "package.json")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
}

func TestLoadProjectManifestMissingFile(t *testing.T) {
	_, err := LoadProjectManifest(t.TempDir())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
}
