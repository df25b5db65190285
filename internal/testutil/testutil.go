package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// RuntimeBinary returns the executable path inside runtimeDir for platform,
// mirroring the layout of upstream archives.
func RuntimeBinary(runtimeDir, platform string) string {
	switch platform {
	case "win":
		return filepath.Join(runtimeDir, "nw.exe")
	case "osx":
		return filepath.Join(runtimeDir, "nwjs.app", "Contents", "MacOS", "nwjs")
	default:
		return filepath.Join(runtimeDir, "nw")
	}
}

// WriteRuntimeStub writes script as the runtime executable for platform and
// returns its path. The script body runs under /bin/sh.
func WriteRuntimeStub(t *testing.T, runtimeDir, platform, script string) string {
	t.Helper()
	path := RuntimeBinary(runtimeDir, platform)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create stub dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

// ExitScript exits with code.
func ExitScript(code int) string {
	return fmt.Sprintf("exit %d\n", code)
}

// RecordArgsScript writes the working directory and then each argument, one
// per line, to file.
func RecordArgsScript(file string) string {
	return fmt.Sprintf("pwd > %q\nfor arg in \"$@\"; do\n  printf '%%s\\n' \"$arg\" >> %q\ndone\n", file, file)
}

// ReadRecordedArgs reads a file written by RecordArgsScript and returns the
// working directory and arguments.
func ReadRecordedArgs(t *testing.T, file string) (string, []string) {
	t.Helper()
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return lines[0], lines[1:]
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
