// Package notify posts plain-text notifications to an ntfy-compatible
// endpoint. Notifications are optional; an empty endpoint disables them.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SendCaptured announces a successful code capture. The code itself is never
// included in the message.
func SendCaptured(ctx context.Context, client *http.Client, endpoint, target string) error {
	msg := "Mazda OAuth code captured, routed to " + target + "."
	return Send(ctx, client, endpoint, msg)
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
