package nwbuild

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/dispatch"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/options"
	"github.com/conn-castle/nwbuild/internal/testutil"
)

const manifestBody = `{
  "latest": "v0.82.0",
  "stable": "v0.81.0",
  "versions": [
    {"version": "v0.82.0", "files": {"normal": ["linux-x64", "win-x64"], "sdk": ["linux-x64"]}},
    {"version": "v0.81.0", "files": {"normal": ["linux-x64"]}}
  ]
}`

const packageJSON = `{"name": "demo", "version": "1.0.0", "main": "index.html"}`

type upstream struct {
	*httptest.Server
	manifestHits atomic.Int32
	archiveHits  atomic.Int32
}

func (u *upstream) total() int32 {
	return u.manifestHits.Load() + u.archiveHits.Load()
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	archives := map[string][]byte{}
	for name, version := range map[string]string{
		"nwjs-v0.82.0-linux-x64":     "v0.82.0",
		"nwjs-sdk-v0.82.0-linux-x64": "v0.82.0",
		"nwjs-v0.81.0-linux-x64":     "v0.81.0",
	} {
		archives["/"+version+"/"+name+".tar.gz"] = testutil.TarGzArchive(t, []testutil.Entry{
			{Name: name + "/"},
			{Name: name + "/nw", Body: "runtime " + name, Mode: 0o755},
			{Name: name + "/lib/libnode.so", Body: "lib"},
		})
	}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/versions.json" {
			u.manifestHits.Add(1)
			_, _ = w.Write([]byte(manifestBody))
			return
		}
		body, ok := archives[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		u.archiveHits.Add(1)
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.Close)
	return u
}

type project struct {
	dir   string
	cache string
	out   string
}

func newProject(t *testing.T, pkg string) project {
	t.Helper()
	root := t.TempDir()
	p := project{
		dir:   filepath.Join(root, "app"),
		cache: filepath.Join(root, "cache"),
		out:   filepath.Join(root, "out"),
	}
	require.NoError(t, os.MkdirAll(p.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "package.json"), []byte(pkg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "index.html"), []byte("<html></html>"), 0o644))
	return p
}

func (p project) user(mode options.Mode) options.UserOptions {
	return options.UserOptions{
		SrcDir:   p.dir,
		Mode:     string(mode),
		CacheDir: p.cache,
		OutDir:   p.out,
	}
}

type fakePackager struct {
	mu    sync.Mutex
	calls []dispatch.PackageRequest
}

func (f *fakePackager) Package(_ context.Context, req dispatch.PackageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return nil
}

type fakeLauncher struct {
	calls []dispatch.LaunchRequest
}

func (f *fakeLauncher) Launch(_ context.Context, req dispatch.LaunchRequest) error {
	f.calls = append(f.calls, req)
	return nil
}

func newRunner(u *upstream) (*Runner, *fakePackager, *fakeLauncher) {
	defaults := options.Defaults("linux", "amd64")
	defaults.DownloadURL = u.URL
	defaults.ManifestURL = u.URL + "/versions.json"
	pkg := &fakePackager{}
	launch := &fakeLauncher{}
	return &Runner{Packager: pkg, Launcher: launch, Defaults: &defaults}, pkg, launch
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || info.Name() == cache.MarkerName {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		data, err := os.ReadFile(path)
		out[rel] = string(data)
		return err
	}))
	return out
}

func TestRunBuildDispatchesPackager(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, pkg, launch := newRunner(u)

	prep, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	assert.Equal(t, "0.82.0", prep.Release.Version)
	assert.Equal(t, "nwjs-v0.82.0-linux-x64", prep.Key)
	assert.True(t, prep.Downloaded)

	require.Len(t, pkg.calls, 1)
	assert.Empty(t, launch.calls)
	got := pkg.calls[0]
	assert.Equal(t, []string{"index.html", "package.json"}, got.Files)
	assert.Equal(t, prep.RuntimeDir, got.RuntimeDir)
	assert.Equal(t, "demo", got.App.Name)
	assert.Equal(t, "0.82.0", got.Version)
	assert.FileExists(t, filepath.Join(got.RuntimeDir, "nw"))
	assert.DirExists(t, p.out)
}

func TestRunModeDispatchesLauncher(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, pkg, launch := newRunner(u)
	user := p.user(options.ModeRun)
	user.Argv = []string{"--debug"}

	_, err := r.Run(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, pkg.calls)
	require.Len(t, launch.calls, 1)
	assert.Equal(t, []string{"--debug"}, launch.calls[0].Argv)
	assert.Equal(t, p.dir, launch.calls[0].SrcDir)
}

func TestCacheIdempotence(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)

	first, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	assert.True(t, first.Downloaded)
	hits := u.total()
	assert.Equal(t, int32(1), u.archiveHits.Load())
	before := snapshot(t, first.RuntimeDir)

	second, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	assert.False(t, second.Downloaded)
	assert.Equal(t, hits, u.total(), "second run performs no network I/O")
	assert.Equal(t, first.RuntimeDir, second.RuntimeDir)
	assert.Equal(t, before, snapshot(t, second.RuntimeDir))
}

func TestCacheInvalidation(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)

	first, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	stale := filepath.Join(first.RuntimeDir, "stale-artifact")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	user := p.user(options.ModeBuild)
	user.Cache = testutil.BoolPtr(false)
	second, err := r.Run(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, second.Downloaded)
	assert.Equal(t, int32(2), u.archiveHits.Load())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(second.RuntimeDir, "nw"))
}

func TestCrashRecovery(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)
	key := "nwjs-v0.82.0-linux-x64"

	// An aborted extraction: some files renamed into place, no completion marker,
	// plus a dangling staging directory and archive.
	entry := filepath.Join(p.cache, key)
	require.NoError(t, os.MkdirAll(entry, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(entry, "nw"), []byte("trunc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(entry, "half-written.pak"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(p.cache, "."+key+".staging-123"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.cache, "."+key+".download-123"), []byte("partial"), 0o644))

	prep, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	assert.True(t, prep.Downloaded)
	assert.NoFileExists(t, filepath.Join(prep.RuntimeDir, "half-written.pak"))
	data, err := os.ReadFile(filepath.Join(prep.RuntimeDir, "nw"))
	require.NoError(t, err)
	assert.Equal(t, "runtime "+key, string(data))

	items, err := os.ReadDir(p.cache)
	require.NoError(t, err)
	var names []string
	for _, item := range items {
		names = append(names, item.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{".locks", "manifest.json", key}, names)
}

func TestMissingRequiredFieldsFailBeforeNetwork(t *testing.T) {
	cases := map[string]string{
		"missing name": `{"main": "index.html"}`,
		"missing main": `{"name": "demo"}`,
	}
	for name, pkg := range cases {
		t.Run(name, func(t *testing.T) {
			u := newUpstream(t)
			p := newProject(t, pkg)
			r, packager, _ := newRunner(u)

			_, err := r.Run(context.Background(), p.user(options.ModeBuild))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Config))
			assert.Equal(t, int32(0), u.total(), "no network access")
			assert.Empty(t, packager.calls)
			assert.NoDirExists(t, p.cache)
		})
	}
}

func TestOverrideMustBeObject(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, `{"name": "demo", "main": "index.html", "nwbuild": ["sdk"]}`)
	r, _, _ := newRunner(u)

	_, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
	assert.Contains(t, err.Error(), "array")
	assert.Equal(t, int32(0), u.total())
}

func TestOverrideSelectsFlavor(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, `{"name": "demo", "main": "index.html", "nwbuild": {"flavor": "sdk"}}`)
	r, _, _ := newRunner(u)

	user := p.user(options.ModeBuild)
	user.Flavor = "normal"
	prep, err := r.Run(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "nwjs-sdk-v0.82.0-linux-x64", prep.Key)
}

func TestUnsupportedTupleIsResolutionError(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)
	user := p.user(options.ModeBuild)
	user.Platform = "osx"

	_, err := r.Run(context.Background(), user)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Resolution))
	assert.Contains(t, err.Error(), "osx-x64")
	assert.Equal(t, int32(0), u.archiveHits.Load())
}

func TestStableAlias(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)
	user := p.user(options.ModeBuild)
	user.Version = "stable"

	prep, err := r.Run(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "0.81.0", prep.Release.Version)
	assert.Equal(t, "nwjs-v0.81.0-linux-x64", prep.Key)
}

func TestNoFilesMatched(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)
	user := p.user(options.ModeBuild)
	user.Files = []string{"**/*.vue"}

	_, err := r.Run(context.Background(), user)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
	assert.Equal(t, int32(0), u.total())
}

func TestOffline(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)
	r.Offline = true

	_, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Network))
	assert.Equal(t, int32(0), u.total())

	r.Offline = false
	_, err = r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	hits := u.total()

	r.Offline = true
	prep, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	assert.False(t, prep.Downloaded)
	assert.Equal(t, hits, u.total())

	refresh := p.user(options.ModeBuild)
	refresh.Cache = testutil.BoolPtr(false)
	_, err = r.Run(context.Background(), refresh)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
	assert.FileExists(t, filepath.Join(prep.RuntimeDir, cache.MarkerName), "cached runtime kept")
	assert.Equal(t, hits, u.total())

	user := p.user(options.ModeBuild)
	user.Flavor = "sdk"
	_, err = r.Run(context.Background(), user)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Network))
	assert.Contains(t, err.Error(), "not cached")
}

func TestConcurrentPrepareDownloadsOnce(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)

	opts, err := r.Resolve(p.user(options.ModeBuild))
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	dirs := make([]string, workers)
	errsOut := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prep, err := r.Prepare(context.Background(), opts)
			dirs[i], errsOut[i] = prep.RuntimeDir, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errsOut[i])
		assert.Equal(t, dirs[0], dirs[i])
	}
	assert.Equal(t, int32(1), u.archiveHits.Load())
}

func TestDifferentKeysDoNotShareEntries(t *testing.T) {
	u := newUpstream(t)
	p := newProject(t, packageJSON)
	r, _, _ := newRunner(u)

	normal, err := r.Run(context.Background(), p.user(options.ModeBuild))
	require.NoError(t, err)
	user := p.user(options.ModeBuild)
	user.Flavor = "sdk"
	sdk, err := r.Run(context.Background(), user)
	require.NoError(t, err)

	assert.NotEqual(t, normal.RuntimeDir, sdk.RuntimeDir)
	assert.Equal(t, int32(2), u.archiveHits.Load())
}
