// Package dispatch hands a populated runtime to the collaborator that matches
// the requested mode. It performs no work of its own beyond routing.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/manifest"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// PackageRequest is everything a Packager needs to produce a bundle.
type PackageRequest struct {
	// Files are the matched source files, relative to SrcDir.
	Files      []string
	SrcDir     string
	RuntimeDir string
	OutDir     string
	Zip        bool
	Release    manifest.Release
	// Version is the concrete runtime version.
	Version  string
	Flavor   options.Flavor
	Platform string
	Arch     string
	App      options.App
}

// LaunchRequest is everything a Launcher needs to run the app in development.
type LaunchRequest struct {
	SrcDir     string
	Glob       []string
	RuntimeDir string
	Platform   string
	Argv       []string
}

// Packager builds a distributable application bundle.
type Packager interface {
	Package(ctx context.Context, req PackageRequest) error
}

// Launcher runs the runtime against the application source.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) error
}

// Request carries the resolved state of one invocation into Dispatch.
type Request struct {
	Options    options.Options
	Release    manifest.Release
	RuntimeDir string
	// Files are the matched source files; only used in build mode.
	Files []string
}

// Dispatcher routes a populated runtime to exactly one collaborator.
type Dispatcher struct {
	Packager Packager
	Launcher Launcher
}

var statFn = os.Stat

// Dispatch invokes the Packager in build mode or the Launcher in run mode.
// It refuses a runtime directory that is not a completed cache entry.
func (d Dispatcher) Dispatch(ctx context.Context, req Request) error {
	opts := req.Options
	if err := ensurePopulated(req.RuntimeDir); err != nil {
		return err
	}

	switch opts.Mode {
	case options.ModeBuild:
		if d.Packager == nil {
			return dispatchError(req, errors.New(messages.DispatchNoPackager))
		}
		err := d.Packager.Package(ctx, PackageRequest{
			Files:      req.Files,
			SrcDir:     opts.SrcDir,
			RuntimeDir: req.RuntimeDir,
			OutDir:     opts.OutDir,
			Zip:        opts.Zip,
			Release:    req.Release,
			Version:    req.Release.Version,
			Flavor:     opts.Flavor,
			Platform:   opts.Platform,
			Arch:       opts.Arch,
			App:        opts.App,
		})
		if err != nil {
			return dispatchError(req, fmt.Errorf(messages.DispatchPackageFailedFmt, opts.App.Name, opts.Platform, opts.Arch, err))
		}
		return nil
	case options.ModeRun:
		if d.Launcher == nil {
			return dispatchError(req, errors.New(messages.DispatchNoLauncher))
		}
		err := d.Launcher.Launch(ctx, LaunchRequest{
			SrcDir:     opts.SrcDir,
			Glob:       opts.Files,
			RuntimeDir: req.RuntimeDir,
			Platform:   opts.Platform,
			Argv:       opts.Argv,
		})
		if err != nil {
			return dispatchError(req, fmt.Errorf(messages.DispatchLaunchFailedFmt, opts.App.Name, err))
		}
		return nil
	default:
		return dispatchError(req, fmt.Errorf(messages.DispatchUnknownModeFmt, opts.Mode))
	}
}

func ensurePopulated(dir string) error {
	if dir != "" {
		if _, err := statFn(filepath.Join(dir, cache.MarkerName)); err == nil {
			return nil
		}
	}
	return &errs.Error{Kind: errs.Dispatch, Op: "dispatch", Path: dir, Err: fmt.Errorf(messages.DispatchRuntimeNotReadyFmt, dir)}
}

func dispatchError(req Request, err error) error {
	return &errs.Error{
		Kind:     errs.Dispatch,
		Op:       "dispatch " + string(req.Options.Mode),
		Path:     req.RuntimeDir,
		Version:  req.Release.Version,
		Flavor:   string(req.Options.Flavor),
		Platform: req.Options.Platform,
		Arch:     req.Options.Arch,
		Err:      err,
	}
}
