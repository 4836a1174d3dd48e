// Package source fetches raw meteorite records from the remote dataset
// service (a Socrata-style JSON endpoint). Read-only; every call is bounded
// by the caller's context and the configured timeout, and failures surface
// ErrSourceUnavailable rather than partial data.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/errors"
	"github.com/aphelion-labs/meteorid/internal/httpclient"
)

// Config configures the remote source client.
type Config struct {
	// BaseURL is the dataset resource endpoint, e.g.
	// https://data.nasa.gov/resource/gh4g-9sfh.json
	BaseURL string
	// PageSize is the $limit used when paging (default 1000)
	PageSize int
	// MaxPages caps a single fetch as a runaway guard (default 200)
	MaxPages int
	// Timeout bounds each HTTP request (default 30s)
	Timeout time.Duration
	// RequestsPerSecond throttles paging against the upstream service
	// (default 5)
	RequestsPerSecond float64
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 200
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
}

// Client is the remote source adapter.
type Client struct {
	cfg     Config
	httpc   *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewClient validates the endpoint URL and builds the adapter.
func NewClient(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	cfg.applyDefaults()

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse source URL")
	}
	if err := httpclient.ValidateURL(u); err != nil {
		return nil, errors.Wrapf(err, "invalid source URL %q", cfg.BaseURL)
	}

	return &Client{
		cfg:     cfg,
		httpc:   httpclient.New(cfg.Timeout),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log,
	}, nil
}

// Fetch retrieves the full raw dataset, paging until a short page. On any
// page failure the whole fetch fails; partial data is never returned.
func (c *Client) Fetch(ctx context.Context) ([]dataset.RawRecord, error) {
	var all []dataset.RawRecord

	for page := 0; page < c.cfg.MaxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
		}

		pageURL := fmt.Sprintf("%s?$limit=%d&$offset=%d&$order=:id",
			c.cfg.BaseURL, c.cfg.PageSize, page*c.cfg.PageSize)

		var rows []dataset.RawRecord
		if err := c.getJSON(ctx, pageURL, &rows); err != nil {
			return nil, err
		}

		all = append(all, rows...)
		c.log.Debugw("Fetched source page",
			"page", page,
			"rows", len(rows),
			"total", len(all),
		)

		if len(rows) < c.cfg.PageSize {
			return all, nil
		}
	}

	c.log.Warnw("Fetch stopped at page cap; dataset may be truncated upstream",
		"max_pages", c.cfg.MaxPages,
		"rows", len(all),
	)
	return all, nil
}

// Count asks the upstream service for its current row count via the count
// query variant. Best-effort: callers must not fail a refresh on error here.
func (c *Client) Count(ctx context.Context) (int, error) {
	countURL := c.cfg.BaseURL + "?$select=count(name)"

	var rows []map[string]dataset.RawValue
	if err := c.getJSON(ctx, countURL, &rows); err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, errors.Wrapf(errors.ErrSourceUnavailable,
			"count query returned %d rows", len(rows))
	}

	// The count field name varies ("count_name", "count"); take the single value
	for _, v := range rows[0] {
		n, err := strconv.Atoi(strings.TrimSpace(string(v)))
		if err != nil {
			return 0, errors.Wrapf(errors.ErrSourceUnavailable,
				"unparseable count %q", v)
		}
		return n, nil
	}
	return 0, errors.Wrap(errors.ErrSourceUnavailable, "count query returned no fields")
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(errors.ErrSourceUnavailable,
			"unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrSourceUnavailable, err.Error())
	}
	return nil
}
