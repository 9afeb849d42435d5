// Package captureapi serves the capture agent's HTTP surface: the capture
// page, the live event stream, and a small status API.
package captureapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/mazda_agent/internal/capturepage"
	"github.com/dgnsrekt/mazda_agent/internal/indicator"
	"github.com/dgnsrekt/mazda_agent/internal/stream"
)

// TabCounter reports how many browser tabs are being watched. The interceptor
// client implements it.
type TabCounter interface {
	TabCount() int
}

type statusOutput struct {
	Body struct {
		Status        string          `json:"status"`
		Tabs          int             `json:"tabs"`
		StreamClients int             `json:"stream_clients"`
		Badge         indicator.State `json:"badge"`
	}
}

type healthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type badgeOutput struct {
	Body indicator.State
}

// NewServer builds the capture agent's HTTP handler.
func NewServer(tabs TabCounter, badge *indicator.Indicator, broker *stream.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Mazda Capture Agent API", "1.0.0")
	api := humachi.New(router, cfg)

	// The capture page and its WebSocket stream sit outside the OpenAPI
	// surface; they are browser-facing, not API-facing.
	router.Get("/capture", capturepage.Handler(badge, "/api/v1/events"))
	router.Get("/api/v1/events", stream.Handler(broker))

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"System"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Agent status: watched tabs, stream clients, capture badge", Tags: []string{"System"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body.Status = "ok"
			if tabs != nil {
				out.Body.Tabs = tabs.TabCount()
			}
			out.Body.StreamClients = broker.ClientCount()
			out.Body.Badge = badge.Get()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-badge", Method: http.MethodPost, Path: "/api/v1/badge/clear", Summary: "Clear the capture badge", Tags: []string{"System"}},
		func(ctx context.Context, input *struct{}) (*badgeOutput, error) {
			badge.Clear()
			return &badgeOutput{Body: badge.Get()}, nil
		})

	return router
}
