package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/conn-castle/nwbuild/internal/errs"
)

func stubExecute(t *testing.T, err error) {
	t.Helper()
	orig := executeFunc
	executeFunc = func([]string, io.Writer, io.Writer) error { return err }
	t.Cleanup(func() { executeFunc = orig })
}

func TestMainVersion(t *testing.T) {
	var out bytes.Buffer
	if err := execute([]string{"nwbuild", "--version"}, &out, &out); err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !strings.Contains(out.String(), Version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestVersionStringIncludesMetadata(t *testing.T) {
	origCommit, origDate := Commit, BuildDate
	t.Cleanup(func() { Commit, BuildDate = origCommit, origDate })

	Commit, BuildDate = "abc123", "2026-01-02"
	got := versionString()
	if got != Version+" (commit abc123, built 2026-01-02)" {
		t.Fatalf("unexpected version string %q", got)
	}
}

func TestRunMainSuccess(t *testing.T) {
	var out bytes.Buffer
	called := false
	runMain([]string{"nwbuild", "--version"}, &out, &out, func(code int) {
		called = true
	})
	if called {
		t.Fatalf("unexpected exit")
	}
}

func TestRunMainUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	code := 0
	runMain([]string{"nwbuild", "unknown"}, &out, &out, func(exitCode int) {
		code = exitCode
	})
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("expected error output, got %q", out.String())
	}
}

func TestRunMainExitCodeByKind(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.Config, 2},
		{errs.Resolution, 3},
		{errs.Network, 4},
		{errs.IO, 5},
		{errs.Dispatch, 6},
		{errs.Other, 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			stubExecute(t, fmt.Errorf("wrapped: %w", &errs.Error{Kind: tt.kind, Op: "test", Err: errors.New("boom")}))
			var out bytes.Buffer
			code := -1
			runMain([]string{"nwbuild"}, &out, &out, func(c int) { code = c })
			if code != tt.want {
				t.Fatalf("exit code = %d, want %d", code, tt.want)
			}
			if !strings.Contains(out.String(), "boom") {
				t.Fatalf("expected error output, got %q", out.String())
			}
		})
	}
}

func TestRunMainPassesThroughRuntimeExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	exitErr := exec.Command("sh", "-c", "exit 7").Run()
	var ee *exec.ExitError
	if !errors.As(exitErr, &ee) {
		t.Fatalf("expected exit error, got %v", exitErr)
	}
	stubExecute(t, &errs.Error{Kind: errs.Dispatch, Op: "dispatch run", Err: fmt.Errorf("launch demo: %w", exitErr)})

	var out bytes.Buffer
	code := 0
	runMain([]string{"nwbuild", "run"}, &out, &out, func(c int) { code = c })
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for runtime exit, got %q", out.String())
	}
}

func TestMainCallsExecute(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	os.Args = []string{"nwbuild", "--version"}
	main()
}
