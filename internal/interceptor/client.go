// Package interceptor attaches to a Chrome/Chromium instance over CDP and
// watches every tab for navigations to a Mazda OAuth redirect URI. Matching
// events are routed through the redirect core and the originating tab is sent
// to the chosen completion target.
//
// Two entry points feed the same dispatch logic: navigation attempts
// (Page.frameRequestedNavigation) and navigation errors
// (Network.loadingFailed). The second exists because a custom-scheme URI with
// no registered handler never commits; the browser reports it as a failed
// request instead.
package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/mazda_agent/internal/redirect"
)

const (
	tabSyncInterval = 2 * time.Second
	pendingTTL      = 30 * time.Second
	navigateTimeout = 10 * time.Second
)

// Client manages CDP connections to browser tabs and feeds redirect events to
// a Dispatcher.
type Client struct {
	cdpURL     string
	dispatcher *Dispatcher

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context

	tabs   map[target.ID]*tabContext
	tabsMu sync.RWMutex

	// pending correlates requestWillBeSent with loadingFailed for recognized
	// redirect URIs; loadingFailed itself carries no URL.
	pending   map[network.RequestID]pendingNav
	pendingMu sync.Mutex

	done chan struct{}
}

type tabContext struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
}

type pendingNav struct {
	url  string
	seen time.Time
}

// NewClient creates a CDP client for the given endpoint.
func NewClient(cdpURL string, dispatcher *Dispatcher) *Client {
	return &Client{
		cdpURL:     cdpURL,
		dispatcher: dispatcher,
		tabs:       make(map[target.ID]*tabContext),
		pending:    make(map[network.RequestID]pendingNav),
		done:       make(chan struct{}),
	}
}

// Connect attaches to the browser and to every open page tab, then keeps
// attaching to tabs opened later (the B2C login opens popups).
func (c *Client) Connect(ctx context.Context) error {
	slog.Info("connecting to browser", "cdp_url", c.cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.cdpURL)

	browserCtx, _ := chromedp.NewContext(c.allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		c.allocCancel()
		return fmt.Errorf("connect to browser: %w", err)
	}
	c.browserCtx = browserCtx

	if err := c.syncTabs(); err != nil {
		c.allocCancel()
		return err
	}

	go c.syncLoop()
	go c.pendingCleanupLoop()

	slog.Info("interceptor attached", "tabs", c.TabCount())
	return nil
}

// Close detaches from all tabs and releases the CDP connection.
func (c *Client) Close() error {
	close(c.done)

	c.tabsMu.Lock()
	for _, tab := range c.tabs {
		tab.cancel()
	}
	c.tabs = make(map[target.ID]*tabContext)
	c.tabsMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}
	slog.Info("interceptor closed")
	return nil
}

// TabCount returns the number of attached tabs.
func (c *Client) TabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

// Navigate instructs the originating tab to load url. Failures are returned
// to the caller, which logs and drops them; the user can retry the login.
func (c *Client) Navigate(tabID, url string) error {
	c.tabsMu.RLock()
	tab, ok := c.tabs[target.ID(tabID)]
	c.tabsMu.RUnlock()
	if !ok {
		return fmt.Errorf("tab %s is no longer attached", tabID)
	}

	navCtx, cancel := context.WithTimeout(tab.ctx, navigateTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate tab %s: %w", tabID, err)
	}
	return nil
}

// syncLoop periodically reconciles attached tabs with the browser's targets.
func (c *Client) syncLoop() {
	ticker := time.NewTicker(tabSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.syncTabs(); err != nil {
				slog.Warn("tab sync failed", "error", err)
			}
		}
	}
}

func (c *Client) syncTabs() error {
	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return fmt.Errorf("enumerate targets: %w", err)
	}

	alive := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		alive[t.TargetID] = true

		c.tabsMu.RLock()
		_, attached := c.tabs[t.TargetID]
		c.tabsMu.RUnlock()
		if attached {
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
		}
	}

	// Drop tabs the browser has closed.
	c.tabsMu.Lock()
	for id, tab := range c.tabs {
		if !alive[id] {
			tab.cancel()
			delete(c.tabs, id)
			slog.Debug("detached from closed tab", "target_id", id)
		}
	}
	c.tabsMu.Unlock()
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		tabCancel()
		return fmt.Errorf("enable network/page domains: %w", err)
	}

	c.tabsMu.Lock()
	c.tabs[targetID] = &tabContext{id: targetID, ctx: tabCtx, cancel: tabCancel}
	c.tabsMu.Unlock()

	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))
	slog.Info("attached to tab", "target_id", targetID, "url", truncateURL(url))
	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameRequestedNavigation:
			c.handleNavigation(tabID, redirect.Event{
				URL:    e.URL,
				TabID:  tabID,
				Source: redirect.SourceNavigation,
			})
		case *network.EventRequestWillBeSent:
			if e.Request != nil && redirect.Recognized(e.Request.URL) {
				c.pendingMu.Lock()
				c.pending[e.RequestID] = pendingNav{url: e.Request.URL, seen: time.Now()}
				c.pendingMu.Unlock()
			}
		case *network.EventLoadingFailed:
			c.pendingMu.Lock()
			nav, ok := c.pending[e.RequestID]
			if ok {
				delete(c.pending, e.RequestID)
			}
			c.pendingMu.Unlock()
			if !ok {
				return
			}
			c.handleNavigation(tabID, redirect.Event{
				URL:       nav.url,
				TabID:     tabID,
				Source:    redirect.SourceNavigationError,
				ErrorText: e.ErrorText,
			})
		}
	}
}

// handleNavigation hands the event to the dispatcher off the event goroutine;
// dispatch issues chromedp commands and must not block the listener.
func (c *Client) handleNavigation(tabID string, ev redirect.Event) {
	if !redirect.Recognized(ev.URL) {
		return
	}
	slog.Info("recognized redirect uri",
		"tab_id", tabID, "source", ev.Source.String(), "url", redactQuery(ev.URL))
	go c.dispatcher.Dispatch(context.Background(), ev, c)
}

// pendingCleanupLoop expires stale pending entries for requests that never
// produced a loadingFailed event.
func (c *Client) pendingCleanupLoop() {
	ticker := time.NewTicker(pendingTTL)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-pendingTTL)
			c.pendingMu.Lock()
			for id, nav := range c.pending {
				if nav.seen.Before(cutoff) {
					delete(c.pending, id)
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}

// redactQuery strips the query string before logging; redirect URIs carry the
// authorization code in their query parameters.
func redactQuery(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			return url[:i] + "?<redacted>"
		}
	}
	return url
}
