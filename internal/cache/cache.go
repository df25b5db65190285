// Package cache manages runtime cache entries on disk.
//
// An entry is a directory named by Key under the cache root. It is only
// considered present when it contains the completion marker, which is written
// into a staging directory before the staging directory is renamed into place.
// Transient state (downloaded archives, staging directories) always lives under
// names that can never be mistaken for an entry.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// MarkerName is the completion marker written inside a populated entry.
const MarkerName = ".nwbuild-complete"

const (
	stagingInfix  = ".staging-"
	downloadInfix = ".download-"
	locksDir      = ".locks"
)

// State is the observable state of a cache entry.
type State int

// Entry states. Only Populated may be used by callers.
const (
	Absent State = iota
	// Populating means only transient files exist for the key.
	Populating
	// Incomplete means the final directory exists without a completion marker.
	Incomplete
	Populated
)

func (s State) String() string {
	switch s {
	case Populating:
		return "populating"
	case Incomplete:
		return "incomplete"
	case Populated:
		return "populated"
	default:
		return "absent"
	}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Key returns the deterministic entry name for a runtime tuple, matching the
// upstream archive naming: nwjs-v0.82.0-linux-x64 or nwjs-sdk-v0.82.0-linux-x64.
func Key(flavor options.Flavor, version, platform, arch string) string {
	prefix := "nwjs-"
	if flavor == options.FlavorSDK {
		prefix = "nwjs-sdk-"
	}
	key := prefix + "v" + strings.TrimPrefix(version, "v") + "-" + platform + "-" + arch
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

// Manager owns the cache root directory.
type Manager struct {
	Root   string
	Logger hclog.Logger
	// LockTimeout bounds how long Lock waits; zero means DefaultLockTimeout.
	LockTimeout time.Duration
}

// New returns a Manager rooted at root.
func New(root string, logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{Root: root, Logger: logger}
}

// Path returns the final entry directory for key.
func (m *Manager) Path(key string) string {
	return filepath.Join(m.Root, key)
}

// MarkerPath returns the completion marker path for key.
func (m *Manager) MarkerPath(key string) string {
	return filepath.Join(m.Path(key), MarkerName)
}

// Status reports the state of key. Only Populated means the entry is complete.
func (m *Manager) Status(key string) (State, error) {
	path := m.Path(key)
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		if _, err := os.Stat(m.MarkerPath(key)); err == nil {
			return Populated, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return Absent, ioError("check cache entry", path, fmt.Errorf(messages.CacheStatEntryFmt, path, err))
		}
		return Incomplete, nil
	case err == nil:
		// A plain file squatting on the entry name is as good as incomplete.
		return Incomplete, nil
	case !errors.Is(err, os.ErrNotExist):
		return Absent, ioError("check cache entry", path, fmt.Errorf(messages.CacheStatEntryFmt, path, err))
	}

	transient, err := m.transient(key)
	if err != nil {
		return Absent, err
	}
	if len(transient) > 0 {
		return Populating, nil
	}
	return Absent, nil
}

// StagingDir creates a fresh staging directory for key.
func (m *Manager) StagingDir(key string) (string, error) {
	if err := EnsureDir(m.Root); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(m.Root, "."+key+stagingInfix+"*")
	if err != nil {
		return "", ioError("create staging directory", m.Root, fmt.Errorf(messages.CacheCreateStagingFmt, key, err))
	}
	return dir, nil
}

// TempArchive creates the transient archive file for key.
func (m *Manager) TempArchive(key string) (*os.File, error) {
	if err := EnsureDir(m.Root); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(m.Root, "."+key+downloadInfix+"*")
	if err != nil {
		return nil, ioError("create temp archive", m.Root, fmt.Errorf(messages.CacheCreateTempFileFmt, key, err))
	}
	return f, nil
}

// Commit marks dir complete and renames it to the entry path for key.
// dir must live on the same filesystem as the cache root.
func (m *Manager) Commit(key string, dir string) error {
	final := m.Path(key)
	marker := filepath.Join(dir, MarkerName)
	content := fmt.Sprintf("%s\n%s\n", key, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(marker, []byte(content), 0o644); err != nil {
		return ioError("finalize cache entry", marker, fmt.Errorf(messages.CacheWriteMarkerFmt, marker, err))
	}
	if _, err := os.Lstat(final); err == nil {
		return ioError("finalize cache entry", final, fmt.Errorf(messages.CacheEntryExistsFmt, final))
	}
	if err := os.Rename(dir, final); err != nil {
		return ioError("finalize cache entry", final, fmt.Errorf(messages.CacheMoveEntryFmt, dir, final, err))
	}
	return nil
}

// Remove deletes the entry for key along with any transient state.
func (m *Manager) Remove(key string) error {
	if err := removeAll(m.Path(key)); err != nil {
		return err
	}
	return m.removeTransient(key)
}

// Discard removes partial state for key: transient files and an entry directory
// without a completion marker. A populated entry is left alone.
func (m *Manager) Discard(key string) error {
	state, err := m.Status(key)
	if err != nil {
		return err
	}
	if state == Incomplete {
		m.Logger.Debug("discarding incomplete cache entry", "key", key)
		if err := removeAll(m.Path(key)); err != nil {
			return err
		}
	}
	return m.removeTransient(key)
}

// Entry is one directory in the cache root.
type Entry struct {
	Key   string
	Path  string
	State State
}

// List returns every entry directory in the cache root, sorted by key.
// Transient files are not listed.
func (m *Manager) List() ([]Entry, error) {
	items, err := os.ReadDir(m.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ioError("list cache", m.Root, fmt.Errorf(messages.CacheReadDirFmt, m.Root, err))
	}
	var out []Entry
	for _, item := range items {
		name := item.Name()
		if !item.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		state, err := m.Status(name)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: name, Path: m.Path(name), State: state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Sweep discards partial state for every key whose lock is free, returning the
// keys it cleaned. Keys being acquired by another process are skipped.
func (m *Manager) Sweep() ([]string, error) {
	keys, err := m.partialKeys()
	if err != nil {
		return nil, err
	}
	var cleaned []string
	for _, key := range keys {
		unlock, ok, err := m.TryLock(key)
		if err != nil {
			return cleaned, err
		}
		if !ok {
			m.Logger.Debug("skipping locked cache entry", "key", key)
			continue
		}
		discardErr := m.Discard(key)
		_ = unlock()
		if discardErr != nil {
			return cleaned, discardErr
		}
		cleaned = append(cleaned, key)
	}
	return cleaned, nil
}

// partialKeys lists keys with transient files or a marker-less entry directory.
func (m *Manager) partialKeys() ([]string, error) {
	items, err := os.ReadDir(m.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ioError("list cache", m.Root, fmt.Errorf(messages.CacheReadDirFmt, m.Root, err))
	}
	seen := map[string]struct{}{}
	for _, item := range items {
		name := item.Name()
		if key, ok := transientKey(name); ok {
			seen[key] = struct{}{}
			continue
		}
		if strings.HasPrefix(name, ".") || !item.IsDir() {
			continue
		}
		if _, err := os.Stat(m.MarkerPath(name)); errors.Is(err, os.ErrNotExist) {
			seen[name] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// transient returns the transient paths that belong to key.
func (m *Manager) transient(key string) ([]string, error) {
	items, err := os.ReadDir(m.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ioError("list cache", m.Root, fmt.Errorf(messages.CacheReadDirFmt, m.Root, err))
	}
	var out []string
	for _, item := range items {
		if k, ok := transientKey(item.Name()); ok && k == key {
			out = append(out, filepath.Join(m.Root, item.Name()))
		}
	}
	return out, nil
}

func (m *Manager) removeTransient(key string) error {
	paths, err := m.transient(key)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := removeAll(p); err != nil {
			return err
		}
	}
	return nil
}

// transientKey extracts the key from ".<key>.staging-*" and ".<key>.download-*" names.
func transientKey(name string) (string, bool) {
	if !strings.HasPrefix(name, ".") {
		return "", false
	}
	rest := name[1:]
	for _, infix := range []string{stagingInfix, downloadInfix} {
		if i := strings.LastIndex(rest, infix); i > 0 {
			return rest[:i], true
		}
	}
	return "", false
}

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return ioError("create directory", path, fmt.Errorf(messages.CacheCreateDirFmt, path, err))
	}
	return nil
}

func removeAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return ioError("remove cache entry", path, fmt.Errorf(messages.CacheRemoveEntryFmt, path, err))
	}
	return nil
}

func ioError(op, path string, err error) error {
	return &errs.Error{Kind: errs.IO, Op: op, Path: path, Err: err}
}
