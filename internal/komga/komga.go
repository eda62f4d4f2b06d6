// Package komga implements the media-server notifier for Komga. After an
// archive pass publishes new CBZ files, the configured library is told to
// rescan so the new books show up without waiting for Komga's own poller.
package komga

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"h2hcat/internal/catalog"
)

const requestTimeout = 30 * time.Second

// Client triggers library scans on a Komga server over its REST API using
// basic auth.
type Client struct {
	baseURL   string
	libraryID string
	username  string
	password  string
	http      *http.Client
	logger    catalog.Logger
}

var _ catalog.Notifier = (*Client)(nil)

// NewClient creates a Komga notifier. baseURL is the server root, e.g.
// "http://localhost:25600".
func NewClient(baseURL, libraryID, username, password string, logger catalog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid komga base url: %w", err)
	}
	if libraryID == "" {
		return nil, fmt.Errorf("komga notifier requires a library id")
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		libraryID: libraryID,
		username:  username,
		password:  password,
		http:      &http.Client{Timeout: requestTimeout},
		logger:    logger,
	}, nil
}

// RefreshLibrary asks the server to rescan the configured library.
func (c *Client) RefreshLibrary(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/v1/libraries/%s/scan", c.baseURL, url.PathEscape(c.libraryID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building scan request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting library scan: %w", err)
	}
	defer resp.Body.Close()

	// Komga answers 202 Accepted; drain the body so the connection is reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("library scan request failed: %s", resp.Status)
	}

	c.logger.Info("komga library scan requested", "library", c.libraryID)
	return nil
}
