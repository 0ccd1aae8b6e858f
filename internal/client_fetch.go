package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultSourceTimeout = 10 * time.Second
	maxFeedSize          = 64 << 20
)

// HTTPStatusError is returned when the remote server responds with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	Status     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status response from %s: %s", e.URL, e.Status)
}

// FeedClient retrieves the raw body of a retailer's price feed.
type FeedClient interface {
	Fetch(ctx context.Context, retailer *models.Retailer) ([]byte, error)
}

type feedClient struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

type FeedClientOption func(*feedClient)

func WithHTTPClient(client *http.Client) FeedClientOption {
	return func(fc *feedClient) { fc.client = client }
}

func WithUserAgent(userAgent string) FeedClientOption {
	return func(fc *feedClient) { fc.userAgent = userAgent }
}

func WithSourceTimeout(timeout time.Duration) FeedClientOption {
	return func(fc *feedClient) {
		if timeout > 0 {
			fc.timeout = timeout
		}
	}
}

func NewFeedClient(opts ...FeedClientOption) FeedClient {
	fc := &feedClient{
		client:    &http.Client{},
		userAgent: "fuel-prices-aggregator/1.0",
		timeout:   DefaultSourceTimeout,
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Fetch GETs the retailer's feed, bounded by the per-source timeout. Some
// retailers publish an HTML page linking to the JSON file rather than the file
// itself, in which case the first JSON link on the page is followed once.
func (fc *feedClient) Fetch(ctx context.Context, retailer *models.Retailer) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	body, err := fc.get(ctx, retailer.Url)
	if err != nil {
		return nil, err
	}

	if !looksLikeHTML(body) {
		return body, nil
	}

	link, err := findJSONLink(retailer.Url, body)
	if err != nil {
		return nil, err
	}
	fc.logger.Debug("following feed link from index page",
		zap.String("retailer", retailer.Name),
		zap.String("url", link))

	body, err = fc.get(ctx, link)
	if err != nil {
		return nil, err
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("expected JSON from %s but received HTML", link)
	}
	return body, nil
}

func (fc *feedClient) get(ctx context.Context, url string) ([]byte, error) {

	fc.logger.Debug("GET", zap.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.5")
	req.Header.Set("User-Agent", fc.userAgent)

	resp, err := fc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fc.logger.Warn("failed to close body", zap.Error(err))
		}
	}()

	if resp.StatusCode > 299 {
		return nil, &HTTPStatusError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return bodyBytes, nil
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\ufeff")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

func findJSONLink(pageUrl string, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse index page %s: %w", pageUrl, err)
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(value), ".json") {
			href = value
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("no JSON feed link found on %s", pageUrl)
	}

	base, err := neturl.Parse(pageUrl)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", pageUrl, err)
	}
	ref, err := neturl.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid feed link %s: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
