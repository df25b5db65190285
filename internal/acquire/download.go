package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// DefaultMaxBytes caps a single archive download.
const DefaultMaxBytes = int64(2 << 30)

var (
	httpClient = &http.Client{Timeout: 30 * time.Minute}
	now        = time.Now
)

// download fetches url into dest. It is attempted exactly once: callers that
// want retries re-run the whole acquisition.
func (p *Pipeline) download(ctx context.Context, url, name string, dest *os.File) error {
	client := p.Client
	if client == nil {
		client = httpClient
	}
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return networkError(url, fmt.Errorf(messages.AcquireCreateRequestFmt, url, err))
	}
	req.Header.Set("User-Agent", "nwbuild")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return networkError(url, fmt.Errorf(messages.AcquireDownloadTimeoutFmt, url))
		}
		return networkError(url, fmt.Errorf(messages.AcquireDownloadFailedFmt, url, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return networkError(url, fmt.Errorf(messages.AcquireDownload404Fmt, url))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return networkError(url, fmt.Errorf(messages.AcquireUnexpectedStatusFmt, url, resp.Status))
	}
	if resp.ContentLength > maxBytes {
		return networkError(url, fmt.Errorf(messages.AcquireDownloadTooLargeFmt, url, humanize.Bytes(uint64(maxBytes))))
	}

	prog := newProgress(p.Progress, name, resp.ContentLength)
	w := &countingWriter{w: dest, p: prog}
	n, err := io.Copy(w, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if w.err != nil {
			return &errs.Error{Kind: errs.IO, Op: "download runtime", URL: url, Path: dest.Name(), Err: fmt.Errorf(messages.AcquireDownloadFailedFmt, url, w.err)}
		}
		if isTimeoutError(err) {
			return networkError(url, fmt.Errorf(messages.AcquireDownloadTimeoutFmt, url))
		}
		return networkError(url, fmt.Errorf(messages.AcquireDownloadFailedFmt, url, err))
	}
	if n > maxBytes {
		return networkError(url, fmt.Errorf(messages.AcquireDownloadTooLargeFmt, url, humanize.Bytes(uint64(maxBytes))))
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return networkError(url, fmt.Errorf(messages.AcquireDownloadFailedFmt, url, io.ErrUnexpectedEOF))
	}
	prog.finish()

	if err := dest.Sync(); err != nil {
		return &errs.Error{Kind: errs.IO, Op: "download runtime", Path: dest.Name(), Err: fmt.Errorf(messages.AcquireSyncTempFileFmt, err)}
	}
	return nil
}

func networkError(url string, err error) error {
	return &errs.Error{Kind: errs.Network, Op: "download runtime", URL: url, Err: err}
}

// isTimeoutError reports whether err is a network timeout.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
