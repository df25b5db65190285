// Package nwbuild wires option resolution, the release manifest, the runtime
// cache and the acquisition pipeline into one invocation, then dispatches the
// populated runtime. Run is the single boundary where errors are logged.
package nwbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/conn-castle/nwbuild/internal/acquire"
	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/config"
	"github.com/conn-castle/nwbuild/internal/dispatch"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/manifest"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// Runner carries the collaborators and process settings for invocations.
// The zero value resolves against the host and uses default clients.
type Runner struct {
	Client   *http.Client
	Logger   hclog.Logger
	Progress io.Writer
	Packager dispatch.Packager
	Launcher dispatch.Launcher

	// Offline forbids network access; only cached manifests and runtimes are used.
	Offline          bool
	ManifestTTL      time.Duration
	MaxDownloadBytes int64
	// Defaults replaces the host defaults when non-nil.
	Defaults *options.Options
}

// Prepared describes a populated runtime ready for dispatch.
type Prepared struct {
	Options    options.Options
	Release    manifest.Release
	Archive    manifest.Archive
	Key        string
	RuntimeDir string
	// Files are the matched source files in build mode.
	Files []string
	// Downloaded reports whether this invocation fetched the archive.
	Downloaded bool
}

// Run resolves user, prepares the runtime and dispatches it. Errors are logged
// here and returned; nothing past this point panics or exits.
func (r *Runner) Run(ctx context.Context, user options.UserOptions) (Prepared, error) {
	logger := r.logger()
	opts, err := r.Resolve(user)
	if err != nil {
		logFailure(logger, err)
		return Prepared{}, err
	}
	prep, err := r.Prepare(ctx, opts)
	if err != nil {
		logFailure(logger, err)
		return Prepared{}, err
	}
	d := dispatch.Dispatcher{Packager: r.Packager, Launcher: r.Launcher}
	if err := d.Dispatch(ctx, dispatch.Request{
		Options:    prep.Options,
		Release:    prep.Release,
		RuntimeDir: prep.RuntimeDir,
		Files:      prep.Files,
	}); err != nil {
		logFailure(logger, err)
		return prep, err
	}
	return prep, nil
}

// Resolve reads package.json from the source directory and merges it with user
// and the defaults. Directory options come back absolute. No network access.
func (r *Runner) Resolve(user options.UserOptions) (options.Options, error) {
	defaults := r.defaults()
	srcDir := user.SrcDir
	if srcDir == "" {
		srcDir = defaults.SrcDir
	}
	project, err := options.LoadProjectManifest(srcDir)
	if err != nil {
		return options.Options{}, err
	}
	opts, err := options.Resolve(user, project, defaults)
	if err != nil {
		return options.Options{}, err
	}
	for _, p := range []*string{&opts.SrcDir, &opts.OutDir, &opts.CacheDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return options.Options{}, &errs.Error{Kind: errs.Config, Op: "resolve options", Path: *p, Err: err}
		}
		*p = abs
	}
	return opts, nil
}

// Prepare makes sure a complete cache entry exists for opts and returns it.
// The per-key lock is held from the status check through acquisition.
func (r *Runner) Prepare(ctx context.Context, opts options.Options) (Prepared, error) {
	logger := r.logger()
	prep := Prepared{Options: opts}

	// A refresh removes the entry before downloading it again.
	if !opts.Cache && r.Offline {
		return prep, &errs.Error{Kind: errs.Config, Op: "prepare runtime", Field: "cache", Err: errors.New(messages.CacheRefreshOffline)}
	}

	if opts.Mode == options.ModeBuild {
		files, err := options.MatchFiles(opts.SrcDir, opts.Files, opts.OutDir, opts.CacheDir)
		if err != nil {
			return prep, err
		}
		prep.Files = files
	} else if err := options.ValidatePatterns(opts.Files); err != nil {
		return prep, err
	}

	release, err := r.resolver(opts).Resolve(ctx, opts.Version)
	if err != nil {
		return prep, err
	}
	prep.Release = release
	archive, err := release.Archive(opts.Flavor, opts.Platform, opts.Arch)
	if err != nil {
		return prep, err
	}
	prep.Archive = archive
	logger.Debug("resolved runtime", "requested", opts.Version, "version", release.Version, "archive", archive.Filename)

	if err := cache.EnsureDir(opts.CacheDir); err != nil {
		return prep, err
	}
	if opts.Mode == options.ModeBuild {
		if err := cache.EnsureDir(opts.OutDir); err != nil {
			return prep, err
		}
	}

	mgr := cache.New(opts.CacheDir, logger.Named("cache"))
	key := cache.Key(opts.Flavor, release.Version, opts.Platform, opts.Arch)
	prep.Key = key
	unlock, err := mgr.Lock(ctx, key)
	if err != nil {
		return prep, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Debug("release cache lock", "key", key, "error", err)
		}
	}()

	if !opts.Cache {
		logger.Info("refreshing cached runtime", "key", key)
		if err := mgr.Remove(key); err != nil {
			return prep, err
		}
	}

	state, err := mgr.Status(key)
	if err != nil {
		return prep, err
	}
	if state == cache.Populated {
		logger.Debug("using cached runtime", "key", key)
		prep.RuntimeDir = mgr.Path(key)
		return prep, nil
	}
	if r.Offline {
		return prep, &errs.Error{
			Kind:     errs.Network,
			Op:       "acquire runtime",
			Path:     mgr.Path(key),
			Version:  release.Version,
			Flavor:   string(opts.Flavor),
			Platform: opts.Platform,
			Arch:     opts.Arch,
			Err:      fmt.Errorf(messages.CacheNotCachedOfflineFmt, key, mgr.Path(key), config.EnvNoNetwork),
		}
	}

	pipeline := &acquire.Pipeline{
		Cache:    mgr,
		Client:   r.Client,
		Logger:   logger.Named("acquire"),
		Progress: r.Progress,
		MaxBytes: r.MaxDownloadBytes,
	}
	dir, err := pipeline.Acquire(ctx, acquire.Request{
		Key:      key,
		URL:      archive.URL(opts.DownloadURL),
		Filename: archive.Filename,
	})
	if err != nil {
		return prep, withTuple(err, release.Version, opts)
	}
	prep.RuntimeDir = dir
	prep.Downloaded = true
	return prep, nil
}

// Manifest loads the release manifest through the same cache Prepare uses.
func (r *Runner) Manifest(ctx context.Context, opts options.Options) (*manifest.Manifest, error) {
	return r.resolver(opts).Load(ctx)
}

func (r *Runner) resolver(opts options.Options) *manifest.Resolver {
	return &manifest.Resolver{
		URL:        opts.ManifestURL,
		CachePath:  filepath.Join(opts.CacheDir, manifest.CacheFileName),
		TTL:        r.ManifestTTL,
		Offline:    r.Offline,
		OfflineEnv: config.EnvNoNetwork,
		Client:     r.Client,
		Logger:     r.logger().Named("manifest"),
	}
}

func (r *Runner) defaults() options.Options {
	if r.Defaults != nil {
		return *r.Defaults
	}
	return options.HostDefaults()
}

func (r *Runner) logger() hclog.Logger {
	if r.Logger == nil {
		return hclog.NewNullLogger()
	}
	return r.Logger
}

// withTuple fills in the requested tuple on acquisition errors that lack it.
func withTuple(err error, version string, opts options.Options) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Version == "" {
		e.Version = version
	}
	if e.Flavor == "" {
		e.Flavor = string(opts.Flavor)
	}
	if e.Platform == "" {
		e.Platform = opts.Platform
	}
	if e.Arch == "" {
		e.Arch = opts.Arch
	}
	return err
}

func logFailure(logger hclog.Logger, err error) {
	args := []any{"kind", errs.KindOf(err).String()}
	var e *errs.Error
	if errors.As(err, &e) {
		for _, kv := range [][2]string{
			{"field", e.Field}, {"url", e.URL}, {"path", e.Path},
			{"version", e.Version}, {"flavor", e.Flavor}, {"platform", e.Platform}, {"arch", e.Arch},
		} {
			if kv[1] != "" {
				args = append(args, kv[0], kv[1])
			}
		}
	}
	args = append(args, "error", err)
	logger.Error("nwbuild failed", args...)
}
