package acquire

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/terminal"
)

var (
	progressEvery = 200 * time.Millisecond
	isTerminal    = terminal.IsTerminalWriter
)

// progress reports download progress on out. On a terminal the byte count is
// redrawn in place; elsewhere only the start and finish lines are written.
type progress struct {
	out     io.Writer
	name    string
	total   int64
	done    int64
	inPlace bool
	last    time.Time
}

func newProgress(out io.Writer, name string, total int64) *progress {
	if out == nil {
		out = io.Discard
	}
	p := &progress{out: out, name: name, total: total, inPlace: isTerminal(out)}
	_, _ = fmt.Fprintf(out, messages.AcquireDownloadingFmt, name)
	return p
}

func (p *progress) add(n int) {
	p.done += int64(n)
	if !p.inPlace {
		return
	}
	t := now()
	if t.Sub(p.last) < progressEvery {
		return
	}
	p.last = t
	p.draw()
}

func (p *progress) draw() {
	if p.total > 0 {
		_, _ = fmt.Fprintf(p.out, messages.AcquireProgressFmt, p.name, humanize.Bytes(uint64(p.done)), humanize.Bytes(uint64(p.total)))
		return
	}
	_, _ = fmt.Fprintf(p.out, messages.AcquireProgressUnknownFmt, p.name, humanize.Bytes(uint64(p.done)))
}

func (p *progress) finish() {
	if p.inPlace {
		p.draw()
		_, _ = fmt.Fprintln(p.out)
	}
	_, _ = fmt.Fprintf(p.out, messages.AcquireDownloadedFmt, p.name, humanize.Bytes(uint64(p.done)))
}

// countingWriter forwards writes to w, reports them to p and remembers the
// first write error so callers can tell disk failures from network failures.
type countingWriter struct {
	w   io.Writer
	p   *progress
	err error
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.p.add(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
