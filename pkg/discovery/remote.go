package discovery

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const (
	defaultRemoteAttempts   = 3
	defaultRemoteTimeout    = 30 * time.Second
	defaultRemoteMaxBackoff = 4 * time.Second
	remoteBaseBackoff       = 500 * time.Millisecond
	maxRemoteResponseSize   = 64 << 20
)

// RemoteProvider asks an HTTP lister for root-relative sidecar paths. The
// lister answers GET <url>?root=<root>&depth=<n> with a JSON array of
// strings. Every attempt has its own timeout; when all attempts fail the
// Fallback provider is used instead.
type RemoteProvider struct {
	URL         string
	Client      *http.Client
	MaxAttempts int
	MaxBackoff  time.Duration
	Timeout     time.Duration
	MaxDepth    int
	Fallback    Provider
}

type RemoteOptions struct {
	URL         string
	MaxAttempts int
	MaxBackoff  time.Duration
	Timeout     time.Duration
	MaxDepth    int
}

// NewRemoteProvider builds a RemoteProvider that degrades to fallback.
func NewRemoteProvider(opts RemoteOptions, fallback Provider) *RemoteProvider {
	p := &RemoteProvider{
		URL:         opts.URL,
		Client:      &http.Client{},
		MaxAttempts: opts.MaxAttempts,
		MaxBackoff:  opts.MaxBackoff,
		Timeout:     opts.Timeout,
		MaxDepth:    opts.MaxDepth,
		Fallback:    fallback,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRemoteAttempts
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultRemoteMaxBackoff
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultRemoteTimeout
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = DefaultMaxDepth
	}
	return p
}

func (p *RemoteProvider) Discover(ctx context.Context, root string) ([]string, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		rel, err := p.fetch(ctx, root)
		if err == nil {
			paths := make([]string, 0, len(rel))
			for _, r := range rel {
				abs, ok := resolveRelative(root, r)
				if !ok {
					log.Warn("ignoring remote path outside root", logger.Data{"path": r})
					continue
				}
				paths = append(paths, abs)
			}
			log.Info("remote discovery finished", logger.Data{"root": root, "count": len(paths), "attempt": attempt})
			return paths, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}

		log.Warn("remote discovery attempt failed", logger.Data{
			"attempt":      attempt,
			"max_attempts": p.MaxAttempts,
			"error":        err.Error(),
		})

		if attempt < p.MaxAttempts {
			if err := sleepContext(ctx, p.backoff(attempt)); err != nil {
				return nil, errors.WithStack(err)
			}
		}
	}

	if p.Fallback == nil {
		return nil, errors.Wrap(lastErr, "remote discovery failed")
	}

	log.Warn("remote discovery exhausted, falling back", logger.Data{"error": lastErr.Error()})
	return p.Fallback.Discover(ctx, root)
}

func (p *RemoteProvider) fetch(ctx context.Context, root string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid remote discovery url")
	}
	q := u.Query()
	q.Set("root", root)
	q.Set("depth", strconv.Itoa(p.MaxDepth))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create remote discovery request")
	}
	req.Header.Set("Accept", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "remote discovery request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("remote discovery returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read remote discovery response")
	}

	var rel []string
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, errors.Wrap(err, "failed to decode remote discovery response")
	}
	return rel, nil
}

// backoff doubles from remoteBaseBackoff per attempt, capped at MaxBackoff,
// with up to 25% jitter.
func (p *RemoteProvider) backoff(attempt int) time.Duration {
	d := p.MaxBackoff
	if attempt <= 16 {
		if b := remoteBaseBackoff << (attempt - 1); b < d {
			d = b
		}
	}
	if jitter := int64(d / 4); jitter > 0 {
		d += time.Duration(rand.Int64N(jitter))
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
