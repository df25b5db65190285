// Package launch is the default Launcher: it runs the cached runtime against
// the application source directory for development.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"

	"github.com/conn-castle/nwbuild/internal/dispatch"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

var (
	execCommandContext = exec.CommandContext
	hostPlatform       = func() string { return options.HostPlatform(runtime.GOOS) }
)

// Launcher runs the runtime executable with the source directory and passthrough args.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger hclog.Logger
}

var _ dispatch.Launcher = (*Launcher)(nil)

// Executable returns the runtime binary inside a cache entry for platform.
func Executable(runtimeDir, platform string) string {
	switch platform {
	case options.PlatformWin:
		return filepath.Join(runtimeDir, "nw.exe")
	case options.PlatformOSX:
		return filepath.Join(runtimeDir, "nwjs.app", "Contents", "MacOS", "nwjs")
	default:
		return filepath.Join(runtimeDir, "nw")
	}
}

// Launch blocks until the runtime exits. A non-zero exit surfaces as *exec.ExitError.
// The runtime loads the whole source directory; the glob is informational only.
func (l *Launcher) Launch(ctx context.Context, req dispatch.LaunchRequest) error {
	if req.Platform != hostPlatform() {
		return fmt.Errorf(messages.LaunchUnsupportedPlatformFmt, req.Platform)
	}
	bin := Executable(req.RuntimeDir, req.Platform)
	if _, err := os.Stat(bin); err != nil {
		return fmt.Errorf(messages.LaunchExecutableMissingFmt, bin, err)
	}

	args := append([]string{req.SrcDir}, req.Argv...)
	l.logger().Debug("launching runtime", "bin", bin, "args", args, "glob", req.Glob)
	cmd := execCommandContext(ctx, bin, args...)
	cmd.Dir = req.SrcDir
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	return cmd.Run()
}

func (l *Launcher) logger() hclog.Logger {
	if l.Logger == nil {
		return hclog.NewNullLogger()
	}
	return l.Logger
}
