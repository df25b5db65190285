// Package config loads nwbuild.toml and NWBUILD_* environment settings and
// layers them into options.UserOptions ahead of command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// FileName is the optional project config file.
const FileName = "nwbuild.toml"

// Environment keys read by nwbuild.
const (
	EnvCacheDir         = "NWBUILD_CACHE_DIR"
	EnvNoNetwork        = "NWBUILD_NO_NETWORK"
	EnvLogLevel         = "NWBUILD_LOG_LEVEL"
	EnvJSONLog          = "NWBUILD_JSON_LOG"
	EnvMaxDownloadBytes = "NWBUILD_MAX_DOWNLOAD_BYTES"
	EnvManifestTTL      = "NWBUILD_MANIFEST_TTL"
)

// File mirrors nwbuild.toml. Every key is optional.
type File struct {
	SrcDir      string   `toml:"src_dir"`
	Files       []string `toml:"files"`
	Mode        string   `toml:"mode"`
	Version     string   `toml:"version"`
	Flavor      string   `toml:"flavor"`
	Platform    string   `toml:"platform"`
	Arch        string   `toml:"arch"`
	OutDir      string   `toml:"out_dir"`
	CacheDir    string   `toml:"cache_dir"`
	DownloadURL string   `toml:"download_url"`
	ManifestURL string   `toml:"manifest_url"`
	Cache       *bool    `toml:"cache"`
	Zip         *bool    `toml:"zip"`
	Argv        []string `toml:"argv"`
}

// Settings are process-level knobs that never come from package.json.
type Settings struct {
	Offline          bool
	LogLevel         hclog.Level
	JSONLog          bool
	MaxDownloadBytes int64
	ManifestTTL      time.Duration
}

// Load reads the config file at path. When required is false a missing file
// yields an empty File.
func Load(sys System, path string, required bool) (*File, error) {
	data, err := sys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return &File{}, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, configError(path, fmt.Errorf(messages.ConfigMissingFileFmt, path, err))
		}
		return nil, configError(path, fmt.Errorf(messages.ConfigReadFileFmt, path, err))
	}
	return Parse(data, path)
}

// Parse decodes config TOML, rejecting unknown keys. source is used in errors.
func Parse(data []byte, source string) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, configError(source, fmt.Errorf(messages.ConfigInvalidConfigFmt, source, err))
	}
	if err := decodeStrict(data); err != nil {
		return nil, configError(source, fmt.Errorf(messages.ConfigUnrecognizedKeysFmt, source, err))
	}
	return &f, nil
}

// decodeStrict re-decodes with unknown-field rejection so typos surface instead
// of being silently ignored.
func decodeStrict(data []byte) error {
	var f File
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&f)
}

// UserOptions converts the file into user options. Relative and ~ paths are
// resolved against baseDir, the directory holding the file.
func (f *File) UserOptions(baseDir string) (options.UserOptions, error) {
	u := options.UserOptions{
		Files:       f.Files,
		Mode:        f.Mode,
		Version:     f.Version,
		Flavor:      f.Flavor,
		Platform:    f.Platform,
		Arch:        f.Arch,
		DownloadURL: f.DownloadURL,
		ManifestURL: f.ManifestURL,
		Cache:       f.Cache,
		Zip:         f.Zip,
		Argv:        f.Argv,
	}
	var err error
	if u.SrcDir, err = resolvePath("src_dir", f.SrcDir, baseDir); err != nil {
		return options.UserOptions{}, err
	}
	if u.OutDir, err = resolvePath("out_dir", f.OutDir, baseDir); err != nil {
		return options.UserOptions{}, err
	}
	if u.CacheDir, err = resolvePath("cache_dir", f.CacheDir, baseDir); err != nil {
		return options.UserOptions{}, err
	}
	return u, nil
}

// EnvOptions returns user options taken from the environment.
func EnvOptions(sys System) (options.UserOptions, error) {
	var u options.UserOptions
	if raw := strings.TrimSpace(sys.Getenv(EnvCacheDir)); raw != "" {
		dir, err := homedir.Expand(raw)
		if err != nil {
			return u, &errs.Error{Kind: errs.Config, Op: "load config", Field: EnvCacheDir, Err: fmt.Errorf(messages.ConfigExpandPathFmt, EnvCacheDir, raw, err)}
		}
		u.CacheDir = dir
	}
	return u, nil
}

// LoadSettings reads process settings from the environment. Invalid numeric
// values are configuration errors rather than silently falling back.
func LoadSettings(sys System) (Settings, error) {
	s := Settings{
		Offline:  truthy(sys.Getenv(EnvNoNetwork)),
		LogLevel: hclog.Warn,
		JSONLog:  truthy(sys.Getenv(EnvJSONLog)),
	}
	if raw := strings.TrimSpace(sys.Getenv(EnvLogLevel)); raw != "" {
		level := hclog.LevelFromString(raw)
		if level == hclog.NoLevel {
			return s, envError(EnvLogLevel, raw, "expected trace, debug, info, warn, error or off")
		}
		s.LogLevel = level
	}
	if raw := strings.TrimSpace(sys.Getenv(EnvMaxDownloadBytes)); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return s, envError(EnvMaxDownloadBytes, raw, "expected a positive byte count")
		}
		s.MaxDownloadBytes = v
	}
	if raw := strings.TrimSpace(sys.Getenv(EnvManifestTTL)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return s, &errs.Error{Kind: errs.Config, Op: "load config", Field: EnvManifestTTL, Err: fmt.Errorf(messages.ConfigInvalidDurationFmt, EnvManifestTTL, raw, err)}
		}
		if d <= 0 {
			return s, envError(EnvManifestTTL, raw, "expected a positive duration")
		}
		s.ManifestTTL = d
	}
	return s, nil
}

// Merge layers over on top of base: every value over supplies wins.
func Merge(base, over options.UserOptions) options.UserOptions {
	out := base
	pickString(&out.SrcDir, over.SrcDir)
	pickString(&out.Mode, over.Mode)
	pickString(&out.Version, over.Version)
	pickString(&out.Flavor, over.Flavor)
	pickString(&out.Platform, over.Platform)
	pickString(&out.Arch, over.Arch)
	pickString(&out.OutDir, over.OutDir)
	pickString(&out.CacheDir, over.CacheDir)
	pickString(&out.DownloadURL, over.DownloadURL)
	pickString(&out.ManifestURL, over.ManifestURL)
	if over.Files != nil {
		out.Files = over.Files
	}
	if over.Argv != nil {
		out.Argv = over.Argv
	}
	if over.Cache != nil {
		out.Cache = over.Cache
	}
	if over.Zip != nil {
		out.Zip = over.Zip
	}
	return out
}

func pickString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func resolvePath(field, raw, baseDir string) (string, error) {
	if raw == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(raw)
	if err != nil {
		return "", &errs.Error{Kind: errs.Config, Op: "load config", Field: field, Err: fmt.Errorf(messages.ConfigExpandPathFmt, field, raw, err)}
	}
	if filepath.IsAbs(expanded) || baseDir == "" {
		return expanded, nil
	}
	return filepath.Join(baseDir, expanded), nil
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func envError(key, raw, want string) error {
	return &errs.Error{Kind: errs.Config, Op: "load config", Field: key, Err: fmt.Errorf(messages.ConfigInvalidEnvFmt, key, raw, want)}
}

func configError(path string, err error) error {
	return &errs.Error{Kind: errs.Config, Op: "load config", Path: path, Err: err}
}
