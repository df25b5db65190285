package acquire

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestProgressRedrawsOnTerminal(t *testing.T) {
	origTerm, origNow := isTerminal, now
	t.Cleanup(func() { isTerminal, now = origTerm, origNow })
	isTerminal = func(io.Writer) bool { return true }
	clock := time.Unix(0, 0)
	now = func() time.Time { return clock }

	var out bytes.Buffer
	p := newProgress(&out, "nw.tar.gz", 2000)
	clock = clock.Add(time.Second)
	p.add(1000)
	p.add(500) // within the redraw interval
	clock = clock.Add(time.Second)
	p.add(500)
	p.finish()

	got := out.String()
	if !strings.HasPrefix(got, "Downloading nw.tar.gz\n") {
		t.Fatalf("unexpected start line: %q", got)
	}
	if strings.Count(got, "\r") != 3 {
		t.Fatalf("expected two throttled redraws plus the final one, got %q", got)
	}
	if !strings.Contains(got, "\rnw.tar.gz: 1.0 kB / 2.0 kB") {
		t.Fatalf("missing humanized progress: %q", got)
	}
	if !strings.HasSuffix(got, "Downloaded nw.tar.gz (2.0 kB)\n") {
		t.Fatalf("unexpected finish line: %q", got)
	}
}

func TestProgressQuietOffTerminal(t *testing.T) {
	origTerm := isTerminal
	t.Cleanup(func() { isTerminal = origTerm })
	isTerminal = func(io.Writer) bool { return false }

	var out bytes.Buffer
	p := newProgress(&out, "nw.zip", -1)
	p.add(10)
	p.finish()
	if got := out.String(); got != "Downloading nw.zip\nDownloaded nw.zip (10 B)\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
