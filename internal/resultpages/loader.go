// Package resultpages downloads and parses the per-municipality HTML result
// pages of the public election results website.
package resultpages

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"kiesraad/internal/metrics"
)

// DefaultBaseURL is the landing page prefix; the election id is appended.
const DefaultBaseURL = "https://www.verkiezingsuitslagen.nl/verkiezingen/detail/"

// ErrIncompletePage is returned by Store when the downloaded page does not
// show the requested municipality yet. The page is still written.
var ErrIncompletePage = errors.New("resultpages: page does not show municipality")

// Logger is the minimal logging interface used by this package.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

func logfOf(l Logger) func(format string, v ...any) {
	if l == nil {
		return log.New(discard{}, "", 0).Printf
	}
	return l.Printf
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// LoaderOptions configures NewLoader. Zero values pick the defaults.
type LoaderOptions struct {
	Timeout    time.Duration // default 30s
	Retries    int           // retries on transport errors and 5xx
	RetryWait  time.Duration // default 1s
	UserAgent  string        // default "kiesraad/1.0"
	// RequestsPerSecond caps the request rate when > 0; retries count too.
	RequestsPerSecond float64
	Logger     Logger
	HTTPClient *resty.Client // overrides everything above except Logger
}

// Loader fetches result pages over HTTP.
type Loader struct {
	client *resty.Client
	logf   func(format string, v ...any)
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) *Loader {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		wait := opts.RetryWait
		if wait <= 0 {
			wait = time.Second
		}
		ua := opts.UserAgent
		if ua == "" {
			ua = "kiesraad/1.0"
		}
		client = resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", ua).
			SetRetryCount(opts.Retries).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || (r != nil && r.StatusCode() >= 500)
			})
		if opts.RequestsPerSecond > 0 {
			limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
			client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
				return limiter.Wait(req.Context())
			})
		}
	}
	return &Loader{client: client, logf: logfOf(opts.Logger)}
}

// Fetch returns the body of url.
//
// On non-2xx responses the error includes the status code and up to 4KB of
// the body.
func (l *Loader) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	resp, err := l.client.R().SetContext(ctx).Get(url)

	status := 0
	var size int64
	if resp != nil && resp.RawResponse != nil {
		status = resp.StatusCode()
		size = int64(len(resp.Body()))
	}
	metrics.RecordHTTP(status, err, time.Since(start), size)

	if err != nil {
		l.logf("stage=fetch url=%s status=error err=%v", url, err)
		return "", fmt.Errorf("http get: %w", err)
	}
	if resp.IsError() || status < 200 || status >= 300 {
		body := resp.Body()
		if len(body) > 4096 {
			body = body[:4096]
		}
		l.logf("stage=fetch url=%s status=%d", url, status)
		return "", fmt.Errorf("http status %d: %s", status, strings.TrimSpace(string(body)))
	}
	l.logf("stage=fetch url=%s status=%d bytes=%d", url, status, size)
	return resp.String(), nil
}

// Store fetches url and writes it to dir as FileName(municipality).
// It returns the written path.
func (l *Loader) Store(ctx context.Context, url, dir, municipality string) (string, error) {
	html, err := l.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(municipality))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if !strings.Contains(html, "<h3>"+municipality+"</h3>") {
		l.logf("stage=store municipality=%q status=incomplete path=%s", municipality, path)
		return path, fmt.Errorf("%w: %s", ErrIncompletePage, municipality)
	}
	return path, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z\s]`)

// FileName turns a municipality name into the page file name: every
// character other than ASCII letters and whitespace is dropped.
func FileName(municipality string) string {
	return unsafeName.ReplaceAllString(municipality, "") + ".html"
}

// ElectionURL returns the landing page of election.
func ElectionURL(election string) string {
	return DefaultBaseURL + election
}
