// Package bridgeapi serves the bridge's HTTP surface: vehicle data, remote
// commands, Prometheus metrics, and the OAuth helper endpoints.
package bridgeapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/mazda_agent/internal/coordinator"
	"github.com/dgnsrekt/mazda_agent/internal/entities"
	"github.com/dgnsrekt/mazda_agent/internal/mazda"
	"github.com/dgnsrekt/mazda_agent/internal/metrics"
)

// Fleet is the slice of the coordinator the API consumes.
type Fleet interface {
	Vehicles() []mazda.Vehicle
	Snapshot() []coordinator.VehicleData
	Vehicle(vin string) (coordinator.VehicleData, bool)
	LastPoll() time.Time
	BreakerState() string
	RefreshNow(ctx context.Context) error
	Execute(ctx context.Context, vin, command string) error
	SendPOI(ctx context.Context, vin string, latitude, longitude float64, name string) error
}

type vinInput struct {
	VIN string `path:"vin" maxLength:"17"`
}

type healthOutput struct {
	Body struct {
		Status       string `json:"status"`
		LastPoll     string `json:"last_poll,omitempty"`
		BreakerState string `json:"breaker_state"`
	}
}

type vehiclesOutput struct {
	Body struct {
		Vehicles []mazda.Vehicle `json:"vehicles"`
	}
}

type snapshotOutput struct {
	Body coordinator.VehicleData
}

type statusOutput struct {
	Body mazda.VehicleStatus
}

type evOutput struct {
	Body mazda.EVStatus
}

type entitiesOutput struct {
	Body entities.View
}

type allEntitiesOutput struct {
	Body struct {
		Vehicles []entities.View `json:"vehicles"`
	}
}

type commandOutput struct {
	Body struct {
		VIN     string `json:"vin"`
		Command string `json:"command"`
		Status  string `json:"status"`
	}
}

// NewServer builds the bridge HTTP handler. auth may be nil when OAuth helper
// endpoints are not configured; m may be nil to serve without /metrics.
func NewServer(fleet Fleet, auth *AuthHandler, m *metrics.Metrics) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Mazda Bridge API", "1.0.0")
	api := humachi.New(router, cfg)

	if m != nil {
		router.Get("/metrics", m.Handler().ServeHTTP)
	}

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"System"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.BreakerState = fleet.BreakerState()
			if last := fleet.LastPoll(); !last.IsZero() {
				out.Body.LastPoll = last.UTC().Format(time.RFC3339)
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-vehicles", Method: http.MethodGet, Path: "/api/v1/vehicles", Summary: "List vehicles on the account", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *struct{}) (*vehiclesOutput, error) {
			out := &vehiclesOutput{}
			out.Body.Vehicles = fleet.Vehicles()
			if out.Body.Vehicles == nil {
				out.Body.Vehicles = []mazda.Vehicle{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-entities", Method: http.MethodGet, Path: "/api/v1/entities", Summary: "Entity views for all vehicles", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *struct{}) (*allEntitiesOutput, error) {
			out := &allEntitiesOutput{}
			out.Body.Vehicles = entities.BuildAll(fleet.Snapshot())
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-vehicle", Method: http.MethodGet, Path: "/api/v1/vehicles/{vin}", Summary: "Entity view for one vehicle", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *vinInput) (*entitiesOutput, error) {
			d, ok := fleet.Vehicle(input.VIN)
			if !ok {
				return nil, huma.Error404NotFound("unknown vin " + input.VIN)
			}
			return &entitiesOutput{Body: entities.Build(d)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-vehicle-snapshot", Method: http.MethodGet, Path: "/api/v1/vehicles/{vin}/snapshot", Summary: "Raw cached snapshot for one vehicle", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *vinInput) (*snapshotOutput, error) {
			d, ok := fleet.Vehicle(input.VIN)
			if !ok {
				return nil, huma.Error404NotFound("unknown vin " + input.VIN)
			}
			return &snapshotOutput{Body: d}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-vehicle-status", Method: http.MethodGet, Path: "/api/v1/vehicles/{vin}/status", Summary: "Latest vehicle status", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *vinInput) (*statusOutput, error) {
			d, ok := fleet.Vehicle(input.VIN)
			if !ok {
				return nil, huma.Error404NotFound("unknown vin " + input.VIN)
			}
			if d.Status == nil {
				return nil, huma.Error404NotFound("no status polled yet for " + input.VIN)
			}
			return &statusOutput{Body: *d.Status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-vehicle-ev-status", Method: http.MethodGet, Path: "/api/v1/vehicles/{vin}/ev", Summary: "Latest EV charge status", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *vinInput) (*evOutput, error) {
			d, ok := fleet.Vehicle(input.VIN)
			if !ok {
				return nil, huma.Error404NotFound("unknown vin " + input.VIN)
			}
			if d.EVStatus == nil {
				return nil, huma.Error404NotFound("no ev status for " + input.VIN)
			}
			return &evOutput{Body: *d.EVStatus}, nil
		})

	registerCommand := func(operationID, path, summary, command string) {
		huma.Register(api, huma.Operation{OperationID: operationID, Method: http.MethodPost, Path: "/api/v1/vehicles/{vin}/" + path, Summary: summary, Tags: []string{"Commands"}},
			func(ctx context.Context, input *vinInput) (*commandOutput, error) {
				if err := fleet.Execute(ctx, input.VIN, command); err != nil {
					return nil, mapErr(err)
				}
				out := &commandOutput{}
				out.Body.VIN = input.VIN
				out.Body.Command = command
				out.Body.Status = "sent"
				return out, nil
			})
	}
	registerCommand("lock-doors", "lock", "Lock the doors", coordinator.CommandDoorLock)
	registerCommand("unlock-doors", "unlock", "Unlock the doors", coordinator.CommandDoorUnlock)
	registerCommand("start-engine", "engine/start", "Start the engine", coordinator.CommandEngineStart)
	registerCommand("stop-engine", "engine/stop", "Stop the engine", coordinator.CommandEngineStop)
	registerCommand("hazards-on", "hazards/on", "Turn hazard lights on", coordinator.CommandHazardsOn)
	registerCommand("hazards-off", "hazards/off", "Turn hazard lights off", coordinator.CommandHazardsOff)
	registerCommand("start-charging", "charge/start", "Start charging", coordinator.CommandChargeStart)
	registerCommand("stop-charging", "charge/stop", "Stop charging", coordinator.CommandChargeStop)

	huma.Register(api, huma.Operation{OperationID: "send-poi", Method: http.MethodPost, Path: "/api/v1/vehicles/{vin}/poi", Summary: "Send a navigation destination to the car", Tags: []string{"Commands"}},
		func(ctx context.Context, input *struct {
			VIN  string `path:"vin" maxLength:"17"`
			Body struct {
				Latitude  float64 `json:"latitude" required:"true" minimum:"-90" maximum:"90"`
				Longitude float64 `json:"longitude" required:"true" minimum:"-180" maximum:"180"`
				Name      string  `json:"name" required:"true" maxLength:"100"`
			}
		}) (*commandOutput, error) {
			if err := fleet.SendPOI(ctx, input.VIN, input.Body.Latitude, input.Body.Longitude, input.Body.Name); err != nil {
				return nil, mapErr(err)
			}
			out := &commandOutput{}
			out.Body.VIN = input.VIN
			out.Body.Command = "send_poi"
			out.Body.Status = "sent"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-now", Method: http.MethodPost, Path: "/api/v1/refresh", Summary: "Poll all vehicles now instead of waiting for the next cycle", Tags: []string{"Vehicles"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			if err := fleet.RefreshNow(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &healthOutput{}
			out.Body.Status = "refreshed"
			out.Body.BreakerState = fleet.BreakerState()
			out.Body.LastPoll = fleet.LastPoll().UTC().Format(time.RFC3339)
			return out, nil
		})

	if auth != nil {
		auth.register(api)
	}

	return router
}
