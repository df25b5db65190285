package acquire

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// Format is an archive container and compression pair.
type Format int

// Supported archive formats. Upstream ships zip for osx and win and tar.gz for linux.
const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
	FormatTarBz2
	FormatTar
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarBz2:
		return "tar.bz2"
	case FormatTar:
		return "tar"
	default:
		return "unknown"
	}
}

// FormatOf picks the archive format from filename's extension.
func FormatOf(filename string) (Format, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return FormatTarBz2, nil
	case strings.HasSuffix(name, ".tar"):
		return FormatTar, nil
	}
	return FormatUnknown, &errs.Error{Kind: errs.IO, Op: "extract runtime", Path: filename, Err: fmt.Errorf(messages.AcquireUnsupportedFormatFmt, filename)}
}

// Extract unpacks the archive at src into dest, which must already exist.
// Every write goes through an os.Root on dest, so neither entry names nor
// links created by earlier entries can place files outside it.
func Extract(format Format, src, dest string) error {
	root, err := os.OpenRoot(dest)
	if err != nil {
		return &errs.Error{Kind: errs.IO, Op: "extract runtime", Path: dest, Err: err}
	}
	defer func() { _ = root.Close() }()

	x := &extractor{root: root}
	switch format {
	case FormatZip:
		err = x.zip(src)
	case FormatTarGz, FormatTarBz2, FormatTar:
		err = x.tarFile(format, src)
	default:
		err = fmt.Errorf(messages.AcquireUnsupportedFormatFmt, src)
	}
	if err == nil {
		err = x.checkLinks()
	}
	if err != nil {
		return &errs.Error{Kind: errs.IO, Op: "extract runtime", Path: src, Err: err}
	}
	return nil
}

// extractor writes archive entries beneath root and remembers the links it made.
type extractor struct {
	root  *os.Root
	links []string
}

func (x *extractor) zip(src string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf(messages.AcquireOpenArchiveFmt, src, err)
	}
	defer func() { _ = r.Close() }()

	if len(r.File) == 0 {
		return fmt.Errorf(messages.AcquireEmptyArchiveFmt, src)
	}
	for _, f := range r.File {
		if err := x.zipEntry(f); err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) zipEntry(f *zip.File) error {
	name, err := entryPath(f.Name)
	if err != nil {
		return err
	}
	mode := f.Mode()
	switch {
	case mode.IsDir():
		return x.mkdir(name)
	case mode&fs.ModeSymlink != 0:
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf(messages.AcquireWriteEntryFmt, f.Name, err)
		}
		link, err := io.ReadAll(io.LimitReader(rc, 4096))
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf(messages.AcquireWriteEntryFmt, f.Name, err)
		}
		return x.symlink(name, f.Name, string(link))
	case mode.IsRegular():
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf(messages.AcquireWriteEntryFmt, f.Name, err)
		}
		defer func() { _ = rc.Close() }()
		return x.file(name, f.Name, rc, mode.Perm())
	default:
		return fmt.Errorf(messages.AcquireUnsupportedEntryFmt, f.Name, mode.Type())
	}
}

func (x *extractor) tarFile(format Format, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf(messages.AcquireOpenArchiveFmt, src, err)
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf(messages.AcquireCorruptArchiveFmt, src, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarBz2:
		bz, err := bzip2.NewReader(file, &bzip2.ReaderConfig{})
		if err != nil {
			return fmt.Errorf(messages.AcquireCorruptArchiveFmt, src, err)
		}
		defer func() { _ = bz.Close() }()
		r = bz
	}
	return x.tar(src, tar.NewReader(r))
}

func (x *extractor) tar(src string, tr *tar.Reader) error {
	entries := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf(messages.AcquireCorruptArchiveFmt, src, err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		entries++
		name, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = x.mkdir(name)
		case tar.TypeReg:
			err = x.file(name, hdr.Name, tr, fs.FileMode(hdr.Mode).Perm())
		case tar.TypeSymlink:
			err = x.symlink(name, hdr.Name, hdr.Linkname)
		case tar.TypeLink:
			err = x.hardlink(name, hdr.Name, hdr.Linkname)
		default:
			err = fmt.Errorf(messages.AcquireUnsupportedEntryFmt, hdr.Name, string(hdr.Typeflag))
		}
		if err != nil {
			return err
		}
	}
	if entries == 0 {
		return fmt.Errorf(messages.AcquireEmptyArchiveFmt, src)
	}
	return nil
}

// entryPath cleans an archive entry name into a path relative to the
// extraction root, rejecting absolute paths and parent escapes.
func entryPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf(messages.AcquireUnsafeEntryFmt, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf(messages.AcquireUnsafeEntryFmt, name)
	}
	return clean, nil
}

func (x *extractor) mkdir(name string) error {
	if name == "." {
		return nil
	}
	if err := x.root.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, name, err)
	}
	return nil
}

func (x *extractor) parent(name, entry string) error {
	if err := x.mkdir(filepath.Dir(name)); err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	return nil
}

func (x *extractor) file(name, entry string, r io.Reader, perm fs.FileMode) error {
	if err := x.parent(name, entry); err != nil {
		return err
	}
	out, err := x.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	return nil
}

// symlink creates a link whose target must lexically stay inside the root.
// Targets that only escape through other links are caught by checkLinks.
func (x *extractor) symlink(name, entry, link string) error {
	if link == "" || filepath.IsAbs(link) || strings.HasPrefix(link, "/") {
		return fmt.Errorf(messages.AcquireUnsafeEntryFmt, entry)
	}
	if !filepath.IsLocal(filepath.Join(filepath.Dir(name), filepath.FromSlash(link))) {
		return fmt.Errorf(messages.AcquireUnsafeEntryFmt, entry)
	}
	if err := x.parent(name, entry); err != nil {
		return err
	}
	if err := x.root.Symlink(link, name); err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	x.links = append(x.links, name)
	return nil
}

func (x *extractor) hardlink(name, entry, linkname string) error {
	linked, err := entryPath(linkname)
	if err != nil {
		return err
	}
	if err := x.parent(name, entry); err != nil {
		return err
	}
	if err := x.root.Link(linked, name); err != nil {
		return fmt.Errorf(messages.AcquireWriteEntryFmt, entry, err)
	}
	return nil
}

// checkLinks resolves every extracted link through the root. A link that
// dangles is kept; one that resolves outside the root fails the extraction.
func (x *extractor) checkLinks() error {
	for _, name := range x.links {
		if _, err := x.root.Stat(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf(messages.AcquireUnsafeEntryFmt, filepath.ToSlash(name))
		}
	}
	return nil
}
