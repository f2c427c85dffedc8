package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const defaultMaxBodyBytes = 4 << 20

// baseSource provides the HTTP plumbing shared by the concrete adapters.
type baseSource struct {
	name       string
	config     Config
	httpClient *http.Client
	keys       *keyRing
	logger     *logger.Logger
}

func newBaseSource(defaultName string, cfg Config, client *http.Client, log *logger.Logger) *baseSource {
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	return &baseSource{
		name:       orDefault(cfg.Name, defaultName),
		config:     cfg,
		httpClient: client,
		keys:       newKeyRing(cfg.APIKey),
		logger:     logger.OrGlobal(log),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (b *baseSource) Name() string { return b.name }

// do executes a single request and reads at most maxBody bytes of the body.
// Transport failures come back as transient SourceErrors.
func (b *baseSource) do(ctx context.Context, req *http.Request, maxBody int64) (*http.Response, []byte, error) {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	resp, err := b.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, b.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp, nil, b.transportError(ctx, err)
	}
	return resp, body, nil
}

func (b *baseSource) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrRedirectRefused) {
		return types.NewSourceError(types.KindPermanent, b.name, "redirect refused", err)
	}
	msg := "request failed"
	if isTimeout(err) {
		msg = "request timed out"
	}
	return types.NewSourceError(types.KindTransient, b.name, msg, err)
}

// keyRing hands out API keys round robin. The configured value may list
// several keys separated by commas.
type keyRing struct {
	mu    sync.Mutex
	keys  []string
	index int
}

func newKeyRing(raw string) *keyRing {
	r := &keyRing{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			r.keys = append(r.keys, k)
		}
	}
	return r
}

// Next returns the current key and advances the ring.
func (r *keyRing) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return ""
	}
	key := r.keys[r.index]
	r.index = (r.index + 1) % len(r.keys)
	return key
}

func (r *keyRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// classifyStatus maps an HTTP status to an error kind. It returns nil for 2xx.
func classifyStatus(source string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var kind types.ErrorKind
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		kind = types.KindTransient
	default:
		kind = types.KindPermanent
	}
	se := types.NewSourceError(kind, source, fmt.Sprintf("unexpected status: %s", snippet(body, 200)), nil)
	se.StatusCode = status
	return se
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func snippet(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		s = s[:n] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return s
}
