// Package httpclient provides the outbound HTTP client used for remote
// dataset fetches: bounded timeout, capped redirects, http/https only.
package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/aphelion-labs/meteorid/errors"
)

const maxRedirects = 5

// New creates an HTTP client with the given overall timeout. The timeout
// covers the whole request including body read; callers additionally pass a
// context for per-call deadlines.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			if err := ValidateURL(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			return nil
		},
	}
}

// ValidateURL rejects anything that is not an absolute http/https URL.
func ValidateURL(u *url.URL) error {
	if u == nil {
		return errors.New("nil URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
