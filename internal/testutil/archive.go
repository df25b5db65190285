package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Entry is one member of an in-memory test archive. Names ending in "/" are
// directories; a non-empty Link makes the entry a symlink. HardLink is
// honored by tar archives only.
type Entry struct {
	Name     string
	Body     string
	Link     string
	HardLink string
	Mode     int64
}

// Files turns a name→body map into entries in a stable order.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name]})
	}
	return entries
}

// ZipArchive builds a zip archive from entries.
func ZipArchive(t *testing.T, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		switch {
		case e.Link != "":
			hdr.SetMode(0o777 | fs.ModeSymlink)
		case strings.HasSuffix(e.Name, "/"):
			hdr.SetMode(0o755 | fs.ModeDir)
		default:
			hdr.SetMode(fileMode(e.Mode))
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		body := e.Body
		if e.Link != "" {
			body = e.Link
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TarGzArchive builds a gzip-compressed tar archive from entries.
func TarGzArchive(t *testing.T, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, entries)
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// TarBz2Archive builds a bzip2-compressed tar archive from entries.
func TarBz2Archive(t *testing.T, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	bz, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{})
	if err != nil {
		t.Fatalf("bzip2 writer: %v", err)
	}
	writeTar(t, bz, entries)
	if err := bz.Close(); err != nil {
		t.Fatalf("bzip2 close: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, w io.Writer, entries []Entry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.HardLink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.HardLink
			hdr.Mode = 0o644
		case e.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Link
			hdr.Mode = 0o777
		case strings.HasSuffix(e.Name, "/"):
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, e.Body); err != nil {
				t.Fatalf("tar write %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
}

func fileMode(mode int64) fs.FileMode {
	if mode == 0 {
		return 0o644
	}
	return fs.FileMode(mode).Perm()
}
