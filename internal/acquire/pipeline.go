// Package acquire populates a cache entry: download the runtime archive,
// extract it into a staging directory, commit the entry, then drop the archive.
//
// Callers hold the cache lock for the key while Acquire runs.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/conn-castle/nwbuild/internal/cache"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

var (
	removeFile = os.Remove
	removeAll  = os.RemoveAll
	extract    = Extract
)

// Request names the cache entry to populate and where its archive lives.
type Request struct {
	Key string
	URL string
	// Filename is the archive name; its extension selects the format.
	Filename string
}

// Pipeline downloads and extracts runtime archives into a cache.
type Pipeline struct {
	Cache  *cache.Manager
	Client *http.Client
	Logger hclog.Logger
	// Progress receives human-readable download progress; nil discards it.
	Progress io.Writer
	// MaxBytes caps the archive size; zero means DefaultMaxBytes.
	MaxBytes int64
}

// Acquire populates the entry for req.Key and returns its path. Any partial
// state from an earlier run is discarded first. On failure nothing that looks
// like a populated entry is left behind.
func (p *Pipeline) Acquire(ctx context.Context, req Request) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	logger := p.logger().With("key", req.Key)
	format, err := FormatOf(req.Filename)
	if err != nil {
		return "", err
	}
	if err := p.Cache.Discard(req.Key); err != nil {
		return "", err
	}

	archive, err := p.Cache.TempArchive(req.Key)
	if err != nil {
		return "", err
	}
	archivePath := archive.Name()
	defer func() {
		if err := removeFile(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn(messages.AcquireRemoveArchiveWarning, "path", archivePath, "error", err)
		}
	}()

	logger.Debug("downloading runtime", "url", req.URL)
	dlErr := p.download(ctx, req.URL, req.Filename, archive)
	if err := archive.Close(); err != nil && dlErr == nil {
		dlErr = &errs.Error{Kind: errs.IO, Op: "download runtime", Path: archivePath, Err: fmt.Errorf(messages.AcquireCloseTempFileFmt, err)}
	}
	if dlErr != nil {
		return "", dlErr
	}
	if err := ctx.Err(); err != nil {
		return "", cancelled(archivePath, err)
	}

	staging, err := p.Cache.StagingDir(req.Key)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = removeAll(staging)
		}
	}()

	logger.Debug("extracting runtime", "archive", archivePath, "format", format.String())
	if err := extract(format, archivePath, staging); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", cancelled(staging, err)
	}

	root, err := contentRoot(staging)
	if err != nil {
		return "", err
	}
	if err := p.Cache.Commit(req.Key, root); err != nil {
		return "", err
	}
	committed = true
	if root != staging {
		// Only the emptied wrapper remains.
		_ = removeAll(staging)
	}
	logger.Info("runtime cached", "path", p.Cache.Path(req.Key))
	return p.Cache.Path(req.Key), nil
}

// contentRoot returns the directory to commit: the archive's single top-level
// directory when it has one, else dir itself.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &errs.Error{Kind: errs.IO, Op: "extract runtime", Path: dir, Err: err}
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func validateRequest(req Request) error {
	missing := ""
	switch {
	case req.Key == "":
		missing = "key"
	case req.URL == "":
		missing = "url"
	case req.Filename == "":
		missing = "filename"
	}
	if missing == "" {
		return nil
	}
	return &errs.Error{Kind: errs.Other, Op: "acquire runtime", Err: fmt.Errorf(messages.AcquireRequestIncompleteFmt, missing)}
}

func (p *Pipeline) logger() hclog.Logger {
	if p.Logger == nil {
		return hclog.NewNullLogger()
	}
	return p.Logger
}

func cancelled(path string, err error) error {
	return &errs.Error{Kind: errs.IO, Op: "acquire runtime", Path: path, Err: err}
}
