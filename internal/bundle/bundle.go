// Package bundle is the default Packager: it lays the cached runtime and the
// application files out under the output directory and optionally zips them.
package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/zip"

	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/dispatch"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/fsutil"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// Packager copies runtime and app files into <OutDir>/<platform>-<arch>.
type Packager struct {
	Logger hclog.Logger
	// Out receives one line per written artifact; nil discards.
	Out io.Writer
}

var _ dispatch.Packager = (*Packager)(nil)

// TargetDir returns the bundle directory for platform and arch under outDir.
func TargetDir(outDir, platform, arch string) string {
	return filepath.Join(outDir, platform+"-"+arch)
}

// AppDir returns where application files go inside a bundle directory.
func AppDir(bundleDir, platform string) string {
	if platform == options.PlatformOSX {
		return filepath.Join(bundleDir, "nwjs.app", "Contents", "Resources", "app.nw")
	}
	return filepath.Join(bundleDir, "package.nw")
}

// ZipName returns the archive name for a bundle.
func ZipName(app options.App, platform, arch string) string {
	parts := []string{app.Name}
	if app.Version != "" {
		parts = append(parts, app.Version)
	}
	parts = append(parts, platform, arch)
	return strings.Join(parts, "-") + ".zip"
}

// Package replaces any previous bundle for the target and writes a fresh one.
func (p *Packager) Package(ctx context.Context, req dispatch.PackageRequest) error {
	logger := p.logger()
	target := TargetDir(req.OutDir, req.Platform, req.Arch)

	if err := os.RemoveAll(target); err != nil {
		return ioError(target, fmt.Errorf(messages.BundleRemoveOutputFmt, target, err))
	}
	if err := cache.EnsureDir(req.OutDir); err != nil {
		return err
	}
	logger.Debug("copying runtime", "from", req.RuntimeDir, "to", target)
	if err := fsutil.CopyTree(req.RuntimeDir, target); err != nil {
		return ioError(target, fmt.Errorf(messages.BundleCopyRuntimeFmt, target, err))
	}
	_ = os.Remove(filepath.Join(target, cache.MarkerName))

	appDir := AppDir(target, req.Platform)
	for _, rel := range req.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(appDir, filepath.FromSlash(rel))
		if err := fsutil.CopyFile(filepath.Join(req.SrcDir, filepath.FromSlash(rel)), dst); err != nil {
			return ioError(dst, fmt.Errorf(messages.BundleCopyAppFileFmt, rel, appDir, err))
		}
	}
	logger.Info("bundle written", "path", target, "files", len(req.Files), "runtime", req.Version)
	p.printf(messages.BundleWroteFmt, target)

	if !req.Zip {
		return nil
	}
	zipPath := filepath.Join(req.OutDir, ZipName(req.App, req.Platform, req.Arch))
	if err := writeZip(ctx, target, zipPath); err != nil {
		return err
	}
	p.printf(messages.BundleWroteFmt, zipPath)
	return nil
}

// writeZip archives dir into zipPath with dir's base name as the top-level folder.
// Symlinks are stored as links, as macOS frameworks rely on them.
func writeZip(ctx context.Context, dir, zipPath string) (err error) {
	tmp := zipPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return ioError(zipPath, fmt.Errorf(messages.BundleCreateZipFmt, zipPath, err))
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(file)
	base := filepath.Base(dir)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(base, rel))
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		switch {
		case d.IsDir():
			header.Name += "/"
			_, err := zw.CreateHeader(header)
			return err
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			w, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, link)
			return err
		case d.Type().IsRegular():
			header.Method = zip.Deflate
			w, err := zw.CreateHeader(header)
			if err != nil {
				return err
			}
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			_, copyErr := io.Copy(w, src)
			_ = src.Close()
			return copyErr
		default:
			return nil
		}
	})
	if walkErr != nil {
		return ioError(zipPath, fmt.Errorf(messages.BundleWriteZipEntryFmt, dir, zipPath, walkErr))
	}
	if err := zw.Close(); err != nil {
		return ioError(zipPath, fmt.Errorf(messages.BundleWriteZipEntryFmt, dir, zipPath, err))
	}
	if err := file.Close(); err != nil {
		return ioError(zipPath, fmt.Errorf(messages.BundleCreateZipFmt, zipPath, err))
	}
	if err := os.Rename(tmp, zipPath); err != nil {
		return ioError(zipPath, fmt.Errorf(messages.BundleCreateZipFmt, zipPath, err))
	}
	return nil
}

func (p *Packager) printf(format string, args ...any) {
	if p.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(p.Out, format, args...)
}

func (p *Packager) logger() hclog.Logger {
	if p.Logger == nil {
		return hclog.NewNullLogger()
	}
	return p.Logger
}

func ioError(path string, err error) error {
	return &errs.Error{Kind: errs.IO, Op: "package app", Path: path, Err: err}
}
