package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/fsutil"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// DefaultTTL is how long a cached manifest is trusted without re-fetching.
const DefaultTTL = time.Hour

// CacheFileName is the manifest copy kept in the cache directory.
const CacheFileName = "manifest.json"

const (
	fetchRetryCount  = 1
	maxManifestBytes = int64(16 * 1024 * 1024)
)

var (
	httpClient = &http.Client{Timeout: 30 * time.Second}
	retryDelay = 250 * time.Millisecond
	sleep      = time.Sleep
	now        = time.Now
)

// Resolver loads the manifest from URL, keeping a copy at CachePath.
type Resolver struct {
	URL string
	// CachePath is the on-disk copy; empty disables caching.
	CachePath string
	// TTL bounds the age of a cached copy; zero means DefaultTTL.
	TTL time.Duration
	// Offline uses any cached copy regardless of age and never touches the network.
	Offline bool
	// OfflineEnv names the setting that enabled offline mode, for error messages.
	OfflineEnv string
	Client     *http.Client
	Logger     hclog.Logger
}

// Resolve loads the manifest and resolves spec to a concrete release.
func (r *Resolver) Resolve(ctx context.Context, spec string) (Release, error) {
	m, err := r.Load(ctx)
	if err != nil {
		return Release{}, err
	}
	return m.Resolve(spec)
}

// Load returns the manifest, preferring a fresh cached copy over the network.
func (r *Resolver) Load(ctx context.Context) (*Manifest, error) {
	logger := r.logger()
	if m, ok := r.loadCached(logger); ok {
		return m, nil
	}
	if r.Offline {
		return nil, &errs.Error{
			Kind: errs.Network,
			Op:   "load manifest",
			URL:  r.URL,
			Path: r.CachePath,
			Err:  fmt.Errorf(messages.ManifestOfflineNoCacheFmt, r.CachePath, r.OfflineEnv),
		}
	}

	data, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, r.URL)
	if err != nil {
		return nil, err
	}
	if r.CachePath != "" {
		// A failed cache write only costs a re-fetch next time.
		if err := fsutil.WriteFileAtomic(r.CachePath, data, 0o644); err != nil {
			logger.Warn(messages.ManifestWriteCacheWarning, "path", r.CachePath, "error", err)
		}
	}
	return m, nil
}

// loadCached returns the cached manifest when it is usable.
func (r *Resolver) loadCached(logger hclog.Logger) (*Manifest, bool) {
	if r.CachePath == "" {
		return nil, false
	}
	info, err := os.Stat(r.CachePath)
	if err != nil {
		return nil, false
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if !r.Offline && now().Sub(info.ModTime()) >= ttl {
		logger.Debug("cached manifest is stale", "path", r.CachePath, "age", now().Sub(info.ModTime()))
		return nil, false
	}
	data, err := os.ReadFile(r.CachePath)
	if err != nil {
		logger.Debug("could not read cached manifest", "path", r.CachePath, "error", err)
		return nil, false
	}
	m, err := Parse(data, r.CachePath)
	if err != nil {
		logger.Warn("ignoring unreadable cached manifest", "path", r.CachePath, "error", err)
		return nil, false
	}
	logger.Debug("using cached manifest", "path", r.CachePath)
	return m, true
}

// fetch downloads the manifest, retrying once on transport errors and 5xx responses.
func (r *Resolver) fetch(ctx context.Context) ([]byte, error) {
	client := r.Client
	if client == nil {
		client = httpClient
	}
	for attempt := 0; attempt <= fetchRetryCount; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
		if err != nil {
			return nil, r.networkError(fmt.Errorf(messages.ManifestCreateRequestFmt, r.URL, err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "nwbuild")

		resp, err := client.Do(req)
		if err != nil {
			if shouldRetry(err, 0, attempt) {
				sleep(retryDelay)
				continue
			}
			if isTimeoutError(err) {
				return nil, r.networkError(fmt.Errorf(messages.ManifestFetchTimeoutFmt, r.URL))
			}
			return nil, r.networkError(fmt.Errorf(messages.ManifestFetchFailedFmt, r.URL, err))
		}
		if resp.StatusCode != http.StatusOK {
			status := resp.StatusCode
			statusText := resp.Status
			_ = resp.Body.Close()
			if shouldRetry(nil, status, attempt) {
				sleep(retryDelay)
				continue
			}
			return nil, r.networkError(fmt.Errorf(messages.ManifestUnexpectedStatusFmt, r.URL, statusText))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
		_ = resp.Body.Close()
		if err != nil {
			if shouldRetry(err, 0, attempt) {
				sleep(retryDelay)
				continue
			}
			return nil, r.networkError(fmt.Errorf(messages.ManifestReadFailedFmt, r.URL, err))
		}
		return data, nil
	}
	return nil, r.networkError(fmt.Errorf(messages.ManifestFetchFailedFmt, r.URL, errors.New(messages.ManifestRetryBudgetExhausted)))
}

func (r *Resolver) networkError(err error) error {
	return &errs.Error{Kind: errs.Network, Op: "fetch manifest", URL: r.URL, Err: err}
}

func (r *Resolver) logger() hclog.Logger {
	if r.Logger == nil {
		return hclog.NewNullLogger()
	}
	return r.Logger
}

func shouldRetry(err error, statusCode int, attempt int) bool {
	if attempt >= fetchRetryCount {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	return statusCode >= 500 && statusCode <= 599
}

// isTimeoutError reports whether err is a network timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
