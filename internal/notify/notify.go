// Package notify posts scrape notifications to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

const notificationTitle = "casewatch"

// Notifier sends one notification per successful scrape. A Notifier with an
// empty endpoint does nothing.
type Notifier struct {
	client   *http.Client
	endpoint string
}

func NewNotifier(client *http.Client, endpoint string) *Notifier {
	return &Notifier{client: client, endpoint: strings.TrimSpace(endpoint)}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.endpoint != ""
}

// Scraped announces a freshly cached record.
func (n *Notifier) Scraped(ctx context.Context, rec extract.Record) error {
	if !n.Enabled() {
		return nil
	}
	return Send(ctx, n.client, n.endpoint, ScrapedMessage(rec))
}

// ScrapedMessage renders the notification body: the page title followed by
// the contacts block.
func ScrapedMessage(rec extract.Record) string {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = rec.URL
	}
	lines := append([]string{"Scraped: " + title}, extract.DeriveContacts(rec).Lines()...)
	return strings.Join(lines, "\n")
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", notificationTitle)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
