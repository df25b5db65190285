package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/conn-castle/nwbuild/internal/bundle"
	"github.com/conn-castle/nwbuild/internal/config"
	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/launch"
	"github.com/conn-castle/nwbuild/internal/logging"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/nwbuild"
	"github.com/conn-castle/nwbuild/internal/options"
)

var (
	getwd     = os.Getwd
	newSystem = func() config.System { return config.RealSystem{} }
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath  string
	srcDir      string
	files       []string
	version     string
	flavor      string
	platform    string
	arch        string
	outDir      string
	cacheDir    string
	downloadURL string
	manifestURL string
	noCache     bool
	zip         bool
	offline     bool
	logLevel    string
	jsonLog     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvocation(cmd, flags, "", nil)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", messages.FlagConfig)
	pf.StringVar(&flags.srcDir, "src-dir", "", messages.FlagSrcDir)
	pf.StringSliceVar(&flags.files, "files", nil, messages.FlagFiles)
	pf.StringVar(&flags.version, "nw-version", "", messages.FlagNWVersion)
	pf.StringVar(&flags.flavor, "flavor", "", messages.FlagFlavor)
	pf.StringVar(&flags.platform, "platform", "", messages.FlagPlatform)
	pf.StringVar(&flags.arch, "arch", "", messages.FlagArch)
	pf.StringVar(&flags.outDir, "out-dir", "", messages.FlagOutDir)
	pf.StringVar(&flags.cacheDir, "cache-dir", "", messages.FlagCacheDir)
	pf.StringVar(&flags.downloadURL, "download-url", "", messages.FlagDownloadURL)
	pf.StringVar(&flags.manifestURL, "manifest-url", "", messages.FlagManifestURL)
	pf.BoolVar(&flags.noCache, "no-cache", false, messages.FlagNoCache)
	pf.BoolVar(&flags.zip, "zip", false, messages.FlagZip)
	pf.BoolVar(&flags.offline, "offline", false, messages.FlagOffline)
	pf.StringVar(&flags.logLevel, "log-level", "", messages.FlagLogLevel)
	pf.BoolVar(&flags.jsonLog, "json-log", false, messages.FlagJSONLog)

	cmd.AddCommand(
		newBuildCmd(flags),
		newRunCmd(flags),
		newVersionsCmd(flags),
		newCacheCmd(flags),
	)
	return cmd
}

// invocation is the merged configuration for one command.
type invocation struct {
	user     options.UserOptions
	settings config.Settings
	logger   hclog.Logger
}

// load layers nwbuild.toml, NWBUILD_* variables and flags, in that order of
// increasing precedence, and builds the logger.
func (f *rootFlags) load(cmd *cobra.Command) (*invocation, error) {
	sys := newSystem()
	settings, err := config.LoadSettings(sys)
	if err != nil {
		return nil, err
	}
	if err := f.applySettings(cmd, &settings); err != nil {
		return nil, err
	}
	logger := logging.New(messages.RootUse, logging.Options{
		Level:  settings.LogLevel,
		JSON:   settings.JSONLog,
		Output: cmd.ErrOrStderr(),
	})

	fileOpts, err := f.loadFile(sys)
	if err != nil {
		return nil, err
	}
	envOpts, err := config.EnvOptions(sys)
	if err != nil {
		return nil, err
	}
	user := config.Merge(config.Merge(fileOpts, envOpts), f.userOptions(cmd))
	return &invocation{user: user, settings: settings, logger: logger}, nil
}

func (f *rootFlags) applySettings(cmd *cobra.Command, s *config.Settings) error {
	pf := cmd.Flags()
	if pf.Changed("offline") {
		s.Offline = f.offline
	}
	if pf.Changed("json-log") {
		s.JSONLog = f.jsonLog
	}
	if pf.Changed("log-level") {
		level := hclog.LevelFromString(f.logLevel)
		if level == hclog.NoLevel {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "parse flags",
				Field: "log-level",
				Err:   fmt.Errorf(messages.CLIInvalidFlagFmt, "log-level", f.logLevel, "expected trace, debug, info, warn, error or off"),
			}
		}
		s.LogLevel = level
	}
	return nil
}

// loadFile reads --config when given, else an optional nwbuild.toml in the
// working directory.
func (f *rootFlags) loadFile(sys config.System) (options.UserOptions, error) {
	path := f.configPath
	required := path != ""
	if !required {
		cwd, err := getwd()
		if err != nil {
			return options.UserOptions{}, &errs.Error{Kind: errs.IO, Op: "load config", Err: err}
		}
		path = filepath.Join(cwd, config.FileName)
	}
	file, err := config.Load(sys, path, required)
	if err != nil {
		return options.UserOptions{}, err
	}
	return file.UserOptions(filepath.Dir(path))
}

func (f *rootFlags) userOptions(cmd *cobra.Command) options.UserOptions {
	u := options.UserOptions{
		SrcDir:      f.srcDir,
		Files:       f.files,
		Version:     f.version,
		Flavor:      f.flavor,
		Platform:    f.platform,
		Arch:        f.arch,
		OutDir:      f.outDir,
		CacheDir:    f.cacheDir,
		DownloadURL: f.downloadURL,
		ManifestURL: f.manifestURL,
	}
	pf := cmd.Flags()
	if pf.Changed("no-cache") {
		useCache := !f.noCache
		u.Cache = &useCache
	}
	if pf.Changed("zip") {
		zip := f.zip
		u.Zip = &zip
	}
	return u
}

// runner builds the orchestrator with the default packager and launcher wired
// to the command's streams.
func (inv *invocation) runner(cmd *cobra.Command) *nwbuild.Runner {
	return &nwbuild.Runner{
		Logger:   inv.logger,
		Progress: cmd.ErrOrStderr(),
		Packager: &bundle.Packager{
			Logger: inv.logger.Named("bundle"),
			Out:    cmd.OutOrStdout(),
		},
		Launcher: &launch.Launcher{
			Stdin:  cmd.InOrStdin(),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
			Logger: inv.logger.Named("launch"),
		},
		Offline:          inv.settings.Offline,
		ManifestTTL:      inv.settings.ManifestTTL,
		MaxDownloadBytes: inv.settings.MaxDownloadBytes,
	}
}

var runInvocation = func(cmd *cobra.Command, flags *rootFlags, mode options.Mode, argv []string) error {
	inv, err := flags.load(cmd)
	if err != nil {
		return err
	}
	if mode != "" {
		inv.user.Mode = string(mode)
	}
	if argv != nil {
		inv.user.Argv = argv
	}
	_, err = inv.runner(cmd).Run(cmd.Context(), inv.user)
	return err
}

// resolveOptions merges defaults into the invocation for commands that do not
// need package.json.
func (inv *invocation) resolveOptions() (options.Options, error) {
	opts := options.HostDefaults()
	if inv.user.CacheDir != "" {
		opts.CacheDir = inv.user.CacheDir
	}
	if inv.user.ManifestURL != "" {
		opts.ManifestURL = inv.user.ManifestURL
	}
	abs, err := filepath.Abs(opts.CacheDir)
	if err != nil {
		return options.Options{}, &errs.Error{Kind: errs.Config, Op: "resolve options", Field: "cacheDir", Path: opts.CacheDir, Err: err}
	}
	opts.CacheDir = abs
	return opts, nil
}
