// Package coordinator polls the Mazda API on a fixed interval and holds the
// latest snapshot per vehicle. A circuit breaker sits between the poller and
// the API so a broken upstream doesn't get hammered every cycle.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
	"github.com/dgnsrekt/mazda_agent/internal/metrics"
)

// VehicleAPI is the slice of the Mazda client the coordinator uses. Tests
// substitute a fake.
type VehicleAPI interface {
	GetVehicles(ctx context.Context) ([]mazda.Vehicle, error)
	GetVehicleStatus(ctx context.Context, internalVin int) (mazda.VehicleStatus, error)
	GetEVStatus(ctx context.Context, internalVin int) (mazda.EVStatus, error)
	DoorLock(ctx context.Context, internalVin int) error
	DoorUnlock(ctx context.Context, internalVin int) error
	EngineStart(ctx context.Context, internalVin int) error
	EngineStop(ctx context.Context, internalVin int) error
	TurnHazardsOn(ctx context.Context, internalVin int) error
	TurnHazardsOff(ctx context.Context, internalVin int) error
	ChargeStart(ctx context.Context, internalVin int) error
	ChargeStop(ctx context.Context, internalVin int) error
	SendPOI(ctx context.Context, internalVin int, latitude, longitude float64, name string) error
}

// VehicleData is the latest known state of one vehicle.
type VehicleData struct {
	Vehicle   mazda.Vehicle        `json:"vehicle"`
	Status    *mazda.VehicleStatus `json:"status,omitempty"`
	EVStatus  *mazda.EVStatus      `json:"ev_status,omitempty"`
	UpdatedAt time.Time            `json:"updated_at,omitzero"`
	LastError string               `json:"last_error,omitempty"`
}

// Config tunes the poll loop and the breaker.
type Config struct {
	PollInterval       time.Duration
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Coordinator owns the poll loop and the cached snapshots.
type Coordinator struct {
	api     VehicleAPI
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics

	mu       sync.RWMutex
	vehicles []mazda.Vehicle
	data     map[string]VehicleData
	lastPoll time.Time
}

// New creates a coordinator. metrics may be nil.
func New(api VehicleAPI, cfg Config, m *metrics.Metrics) *Coordinator {
	c := &Coordinator{
		api:     api,
		cfg:     cfg,
		metrics: m,
		data:    make(map[string]VehicleData),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "MazdaAPI",
		MaxRequests: 1,
		Interval:    cfg.BreakerTimeout,
		Timeout:     2 * cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			c.publishBreakerState(to)
		},
	})
	return c
}

func (c *Coordinator) publishBreakerState(state gobreaker.State) {
	if c.metrics == nil {
		return
	}
	switch state {
	case gobreaker.StateClosed:
		c.metrics.SetBreakerState(0)
	case gobreaker.StateHalfOpen:
		c.metrics.SetBreakerState(1)
	case gobreaker.StateOpen:
		c.metrics.SetBreakerState(2)
	}
}

// execute routes a call through the breaker.
func (c *Coordinator) execute(fn func() (any, error)) (any, error) {
	res, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &mazda.CodedError{Code: mazda.CodeAPIUnavailable, Message: "mazda api circuit breaker is open", Cause: err}
	}
	return res, err
}

// Run polls until the context is cancelled. The first poll happens
// immediately.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("coordinator started", "poll_interval", c.cfg.PollInterval)
	c.poll(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator stopped")
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// RefreshNow runs one poll cycle outside the schedule.
func (c *Coordinator) RefreshNow(ctx context.Context) error {
	return c.poll(ctx)
}

func (c *Coordinator) poll(ctx context.Context) error {
	start := time.Now()

	vehicles, err := c.vehicleList(ctx)
	if err != nil {
		slog.Error("poll failed: vehicle list", "error", err)
		c.observePoll("error", start)
		return err
	}

	var pollErr error
	for _, v := range vehicles {
		data := VehicleData{Vehicle: v, UpdatedAt: time.Now().UTC()}

		res, err := c.execute(func() (any, error) { return c.api.GetVehicleStatus(ctx, v.ID) })
		if err != nil {
			slog.Warn("status poll failed", "vin", v.VIN, "error", err)
			data.LastError = err.Error()
			pollErr = err
			c.storeKeepingOldStatus(v, data)
			continue
		}
		status := res.(mazda.VehicleStatus)
		data.Status = &status
		if c.metrics != nil {
			c.metrics.UpdateStatus(v.VIN, status)
		}

		if v.IsElectric {
			res, err := c.execute(func() (any, error) { return c.api.GetEVStatus(ctx, v.ID) })
			if err != nil {
				slog.Warn("ev status poll failed", "vin", v.VIN, "error", err)
				data.LastError = err.Error()
				pollErr = err
			} else {
				ev := res.(mazda.EVStatus)
				data.EVStatus = &ev
				if c.metrics != nil {
					c.metrics.UpdateEV(v.VIN, ev)
				}
			}
		}

		c.mu.Lock()
		c.data[v.VIN] = data
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.lastPoll = time.Now().UTC()
	c.mu.Unlock()

	if pollErr != nil {
		c.observePoll("partial", start)
		return pollErr
	}
	c.observePoll("success", start)
	return nil
}

// storeKeepingOldStatus records a failed refresh without discarding the last
// good status.
func (c *Coordinator) storeKeepingOldStatus(v mazda.Vehicle, data VehicleData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.data[v.VIN]; ok {
		data.Status = old.Status
		data.EVStatus = old.EVStatus
	}
	c.data[v.VIN] = data
}

func (c *Coordinator) observePoll(result string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObservePoll(result, time.Since(start).Seconds())
	}
}

// vehicleList fetches the account's vehicles once and caches them; the list
// changes only when cars are bought or sold.
func (c *Coordinator) vehicleList(ctx context.Context) ([]mazda.Vehicle, error) {
	c.mu.RLock()
	cached := c.vehicles
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	res, err := c.execute(func() (any, error) { return c.api.GetVehicles(ctx) })
	if err != nil {
		return nil, err
	}
	vehicles := res.([]mazda.Vehicle)

	c.mu.Lock()
	c.vehicles = vehicles
	c.mu.Unlock()
	slog.Info("vehicle list loaded", "count", len(vehicles))
	return vehicles, nil
}

// Vehicles returns the cached vehicle list (may be nil before the first
// successful poll).
func (c *Coordinator) Vehicles() []mazda.Vehicle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vehicles
}

// Snapshot returns the latest data for every known vehicle.
func (c *Coordinator) Snapshot() []VehicleData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]VehicleData, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		if d, ok := c.data[v.VIN]; ok {
			out = append(out, d)
		} else {
			out = append(out, VehicleData{Vehicle: v})
		}
	}
	return out
}

// Vehicle returns the latest data for one VIN.
func (c *Coordinator) Vehicle(vin string) (VehicleData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.data[vin]
	if !ok {
		for _, v := range c.vehicles {
			if v.VIN == vin {
				return VehicleData{Vehicle: v}, true
			}
		}
	}
	return d, ok
}

// LastPoll reports when the last poll cycle finished.
func (c *Coordinator) LastPoll() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPoll
}

// BreakerState reports the breaker state name for the status API.
func (c *Coordinator) BreakerState() string {
	return c.breaker.State().String()
}

// internalVin resolves a VIN to the API's internal vehicle ID.
func (c *Coordinator) internalVin(vin string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.vehicles {
		if v.VIN == vin {
			return v.ID, nil
		}
	}
	return 0, &mazda.CodedError{Code: mazda.CodeVehicleNotFound, Message: "unknown vin " + vin}
}

// Command names for Execute.
const (
	CommandDoorLock    = "door_lock"
	CommandDoorUnlock  = "door_unlock"
	CommandEngineStart = "engine_start"
	CommandEngineStop  = "engine_stop"
	CommandHazardsOn   = "hazards_on"
	CommandHazardsOff  = "hazards_off"
	CommandChargeStart = "charge_start"
	CommandChargeStop  = "charge_stop"
)

// Execute runs a remote command against a vehicle, through the breaker.
func (c *Coordinator) Execute(ctx context.Context, vin, command string) error {
	id, err := c.internalVin(vin)
	if err != nil {
		return err
	}

	var fn func(context.Context, int) error
	switch command {
	case CommandDoorLock:
		fn = c.api.DoorLock
	case CommandDoorUnlock:
		fn = c.api.DoorUnlock
	case CommandEngineStart:
		fn = c.api.EngineStart
	case CommandEngineStop:
		fn = c.api.EngineStop
	case CommandHazardsOn:
		fn = c.api.TurnHazardsOn
	case CommandHazardsOff:
		fn = c.api.TurnHazardsOff
	case CommandChargeStart:
		fn = c.api.ChargeStart
	case CommandChargeStop:
		fn = c.api.ChargeStop
	default:
		return &mazda.CodedError{Code: mazda.CodeValidation, Message: "unknown command " + command}
	}

	_, err = c.execute(func() (any, error) { return nil, fn(ctx, id) })
	if err != nil {
		return err
	}
	slog.Info("remote command executed", "vin", vin, "command", command)
	return nil
}

// SendPOI forwards a navigation destination to the vehicle.
func (c *Coordinator) SendPOI(ctx context.Context, vin string, latitude, longitude float64, name string) error {
	id, err := c.internalVin(vin)
	if err != nil {
		return err
	}
	_, err = c.execute(func() (any, error) {
		return nil, c.api.SendPOI(ctx, id, latitude, longitude, name)
	})
	return err
}
