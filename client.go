package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Per-operation timeout defaults. Syncthing may hold /rest/db/scan open
// until the scan completes, so the trigger timeout is deliberately short.
const (
	defaultScanTimeout   = 5 * time.Second
	defaultStatusTimeout = 10 * time.Second
	defaultConfigTimeout = 15 * time.Second
)

// Client issues REST requests against the Syncthing API
type Client struct {
	baseURL     *url.URL
	apiKey      string
	hc          *http.Client
	rateLimiter *RateLimiter
	cfg         *Config
}

// FolderStatus is the subset of /rest/db/status we report on
type FolderStatus struct {
	State       string `json:"state"`
	NeedBytes   int64  `json:"needBytes"`
	InSyncBytes int64  `json:"inSyncBytes"`
}

// systemConfig is the subset of /rest/system/config we care about
type systemConfig struct {
	Folders []struct {
		ID string `json:"id"`
	} `json:"folders"`
}

// apiError is a non-2xx response from the Syncthing API
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// newClient creates a Syncthing API client. TLS certificate verification
// is skipped only when explicitly disabled and the endpoint is https.
func newClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api_url: %w", err)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if u.Scheme == "https" && !cfg.VerifyTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:     u,
		apiKey:      cfg.APIKey,
		hc:          &http.Client{Transport: tr},
		rateLimiter: newRateLimiter(cfg.RateLimit, logger),
		cfg:         cfg,
	}, nil
}

// ScanURL returns the URL a scan trigger for the given folder would use.
// The folder query parameter is omitted for the wildcard, which Syncthing
// interprets as "rescan all folders".
func (c *Client) ScanURL(folder string) string {
	u := c.endpoint("rest/db/scan")
	if folder != "" && folder != wildcardFolder {
		q := url.Values{}
		q.Set("folder", folder)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// PostScan triggers a rescan of the given folder ("*" or empty = all
// folders). Returns the HTTP status code on 2xx; an *apiError on >= 400;
// transport errors (including timeouts) as-is.
func (c *Client) PostScan(ctx context.Context, folder string) (int, error) {
	q := url.Values{}
	if strings.TrimSpace(folder) != "" && folder != wildcardFolder {
		q.Set("folder", folder)
	}
	var ignore any
	return c.doJSON(ctx, http.MethodPost, "rest/db/scan", q, c.cfg.timeoutFor(defaultScanTimeout), &ignore)
}

// GetFolderStatus fetches the sync status of one folder. Rate limited.
func (c *Client) GetFolderStatus(ctx context.Context, folder string) (FolderStatus, error) {
	var st FolderStatus
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return st, err
	}
	q := url.Values{}
	q.Set("folder", folder)
	_, err := c.doJSON(ctx, http.MethodGet, "rest/db/status", q, c.cfg.timeoutFor(defaultStatusTimeout), &st)
	return st, err
}

// GetFolderIDs fetches the IDs of all folders known to Syncthing from the
// system configuration. Rate limited. A response without folders yields
// an empty list, not an error.
func (c *Client) GetFolderIDs(ctx context.Context) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	var sysCfg systemConfig
	if _, err := c.doJSON(ctx, http.MethodGet, "rest/system/config", nil, c.cfg.timeoutFor(defaultConfigTimeout), &sysCfg); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sysCfg.Folders))
	for _, f := range sysCfg.Folders {
		if strings.TrimSpace(f.ID) != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids, nil
}

func (c *Client) endpoint(p string) *url.URL {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return &u
}

// doJSON performs one request with its own deadline. The body is decoded
// as JSON regardless of the response content type, since Syncthing
// endpoints may answer with a wrong or missing content-type header.
func (c *Client) doJSON(ctx context.Context, method, p string, q url.Values, timeout time.Duration, out any) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	u := c.endpoint(p)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil || len(body) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("malformed response from %s: %w", p, err)
	}
	return resp.StatusCode, nil
}

// isTimeout reports whether err is a request deadline or network timeout.
// Trigger timeouts are treated as probable success: Syncthing holds the
// scan request open while scanning, so hitting the deadline usually means
// the request was accepted.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
