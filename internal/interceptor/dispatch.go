package interceptor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/mazda_agent/internal/indicator"
	"github.com/dgnsrekt/mazda_agent/internal/journal"
	"github.com/dgnsrekt/mazda_agent/internal/notify"
	"github.com/dgnsrekt/mazda_agent/internal/redirect"
	"github.com/dgnsrekt/mazda_agent/internal/stream"
)

const notifyTimeout = 5 * time.Second

// Navigator retargets a browser tab. The CDP client implements it; tests use
// a fake.
type Navigator interface {
	Navigate(tabID, url string) error
}

// Dispatcher applies a routing decision: it retargets the tab, sets the
// badge, journals the capture, streams it to open capture pages, and
// optionally sends a notification. Side effects never fail the dispatch; the
// navigation is the one step whose failure is reported.
type Dispatcher struct {
	capturePageURL string
	badge          *indicator.Indicator
	journal        *journal.Writer
	broker         *stream.Broker
	notifyEndpoint string
	httpClient     *http.Client
}

// NewDispatcher wires the dispatch side effects. journal, broker, and badge
// may be nil to disable the corresponding effect; notifyEndpoint may be
// empty.
func NewDispatcher(capturePageURL string, badge *indicator.Indicator, jw *journal.Writer, broker *stream.Broker, notifyEndpoint string) *Dispatcher {
	return &Dispatcher{
		capturePageURL: capturePageURL,
		badge:          badge,
		journal:        jw,
		broker:         broker,
		notifyEndpoint: notifyEndpoint,
		httpClient:     &http.Client{Timeout: notifyTimeout},
	}
}

// Dispatch routes one redirect event. It returns true if the event was
// recognized and acted on.
func (d *Dispatcher) Dispatch(ctx context.Context, ev redirect.Event, nav Navigator) bool {
	decision, ok := redirect.Decide(ev)
	if !ok {
		return false
	}

	targetURL := decision.TargetURL(d.capturePageURL)
	if err := nav.Navigate(ev.TabID, targetURL); err != nil {
		// The tab may have been closed between the event and the dispatch.
		// The capture is still journaled and streamed so it is not lost.
		slog.Error("failed to retarget tab", "tab_id", ev.TabID, "error", err)
	}

	if d.badge != nil && decision.Badge != nil {
		d.badge.Set(decision.Badge.Text, decision.Badge.Color)
	}

	if d.journal != nil {
		d.journal.Record(journal.Entry{
			TabID:      ev.TabID,
			Source:     ev.Source.String(),
			Target:     decision.Target.String(),
			FlowID:     decision.FlowID,
			HasCode:    decision.Params.Code != "",
			OAuthError: decision.Params.Error,
			NavError:   ev.ErrorText,
		})
	}

	if d.broker != nil {
		// The stream mirrors the forwarded query, not the raw URL, so the
		// error path streams only the code.
		d.broker.Publish(stream.Event{
			Target:           decision.Target.String(),
			Source:           ev.Source.String(),
			Code:             decision.Query.Get("code"),
			State:            decision.Query.Get("state"),
			Error:            decision.Query.Get("error"),
			ErrorDescription: decision.Query.Get("error_description"),
			FlowID:           decision.FlowID,
		})
	}

	if d.notifyEndpoint != "" && decision.Params.Code != "" {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := notify.SendCaptured(notifyCtx, d.httpClient, d.notifyEndpoint, decision.Target.String()); err != nil {
			slog.Warn("capture notification failed", "error", err)
		}
	}

	slog.Info("capture dispatched",
		"tab_id", ev.TabID,
		"source", ev.Source.String(),
		"target", decision.Target.String(),
		"has_code", decision.Params.Code != "",
		"flow_id", decision.FlowID)
	return true
}
