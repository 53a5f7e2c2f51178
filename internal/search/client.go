// Package search implements the product-search endpoint client using
// the Colly collector.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"dealwatch/internal/metrics"
	"dealwatch/internal/monitor"
)

// Config controls the search client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration // per-call budget, default 8s
	PageSize  int           // items per page, default 100
}

const (
	defaultTimeout  = 8 * time.Second
	defaultPageSize = 100
)

// Client implements monitor.Searcher against the deal-search API.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client. The base collector is cloned per call; revisits
// are allowed since the same query runs every cycle.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Synchronous is colly's default; the Async option in colly v2.1.0
	// ignores its argument and would force async mode.
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())

	return &Client{cfg: cfg, baseCollector: c, logger: logger}
}

// apiResponse is the upstream body shape. Rows nest under data.
type apiResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
	Data      struct {
		Rows []apiRow `json:"rows"`
	} `json:"data"`
}

type apiRow struct {
	ArticleID      json.Number `json:"article_id"`
	ArticleTitle   string      `json:"article_title"`
	ArticlePrice   string      `json:"article_price"`
	ArticleComment string      `json:"article_comment"`
	ArticleWorthy  string      `json:"article_worthy"`
	PublishDateLT  string      `json:"publish_date_lt"`
	ArticleURL     string      `json:"article_url"`
}

// Search fetches one page of results for a literal keyword at the given
// item offset. Any transport, timeout or body-shape problem is returned
// as an error; callers treat it as an empty page.
func (c *Client) Search(ctx context.Context, keyword string, offset int) ([]monitor.Item, error) {
	collector := c.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	start := time.Now()
	if err := c.visit(ctx, collector, c.buildURL(keyword, offset)); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("search response: %w", fetchErr)
	}
	metrics.ObserveSearchDuration(time.Since(start))

	if status != http.StatusOK {
		return nil, fmt.Errorf("search status %d", status)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search body: %w", err)
	}
	if resp.ErrorCode != 0 {
		return nil, fmt.Errorf("search error %d: %s", resp.ErrorCode, resp.ErrorMsg)
	}

	items := make([]monitor.Item, 0, len(resp.Data.Rows))
	for _, row := range resp.Data.Rows {
		items = append(items, rowToItem(row))
	}
	return items, nil
}

func (c *Client) buildURL(keyword string, offset int) string {
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("order", "time")
	q.Set("type", "good_price")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	return c.cfg.BaseURL + "?" + q.Encode()
}

// visit runs the collector in a goroutine so the context deadline can
// still cut the call short; colly itself has no context plumbing.
func (c *Client) visit(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("search canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("search visit: %w", err)
		}
		return nil
	}
}

func rowToItem(row apiRow) monitor.Item {
	published, err := strconv.ParseInt(row.PublishDateLT, 10, 64)
	if err != nil {
		published = 0
	}
	return monitor.Item{
		ID:          row.ArticleID.String(),
		Title:       row.ArticleTitle,
		PriceText:   row.ArticlePrice,
		WorthyText:  row.ArticleWorthy,
		CommentText: row.ArticleComment,
		PublishedAt: published,
		URL:         row.ArticleURL,
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
