// Package metrics exposes vehicle and poller metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
)

// Metrics holds the bridge's Prometheus instruments on a private registry so
// tests can run several instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	fuelPercent  *prometheus.GaugeVec
	fuelRangeKm  *prometheus.GaugeVec
	odometerKm   *prometheus.GaugeVec
	tirePsi      *prometheus.GaugeVec
	tireWarning  *prometheus.GaugeVec
	doorOpen     *prometheus.GaugeVec
	doorUnlocked *prometheus.GaugeVec
	hazardsOn    *prometheus.GaugeVec

	evBatteryPercent *prometheus.GaugeVec
	evRangeKm        *prometheus.GaugeVec
	evPluggedIn      *prometheus.GaugeVec
	evCharging       *prometheus.GaugeVec

	pollsTotal   *prometheus.CounterVec
	pollDuration prometheus.Histogram
	breakerState prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		fuelPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_fuel_remaining_percent",
			Help: "Fuel remaining as a percentage of tank capacity.",
		}, []string{"vin"}),
		fuelRangeKm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_fuel_distance_remaining_km",
			Help: "Estimated driving range on remaining fuel.",
		}, []string{"vin"}),
		odometerKm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_odometer_km",
			Help: "Vehicle odometer reading.",
		}, []string{"vin"}),
		tirePsi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_tire_pressure_psi",
			Help: "Tire pressure per wheel.",
		}, []string{"vin", "tire"}),
		tireWarning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_tire_pressure_warning",
			Help: "1 when the wheel reports a pressure warning.",
		}, []string{"vin", "tire"}),
		doorOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_door_open",
			Help: "1 when the door is open.",
		}, []string{"vin", "door"}),
		doorUnlocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_door_unlocked",
			Help: "1 when the door is unlocked.",
		}, []string{"vin", "door"}),
		hazardsOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_hazard_lights_on",
			Help: "1 when the hazard lights are on.",
		}, []string{"vin"}),
		evBatteryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_ev_battery_percent",
			Help: "EV battery state of charge.",
		}, []string{"vin"}),
		evRangeKm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_ev_range_km",
			Help: "EV driving range.",
		}, []string{"vin"}),
		evPluggedIn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_ev_plugged_in",
			Help: "1 when a charger is connected.",
		}, []string{"vin"}),
		evCharging: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mazda_ev_charging",
			Help: "1 when the vehicle is charging.",
		}, []string{"vin"}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mazda_polls_total",
			Help: "Completed poll cycles by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mazda_poll_duration_seconds",
			Help:    "Duration of a full poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mazda_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
	}

	reg.MustRegister(
		m.fuelPercent, m.fuelRangeKm, m.odometerKm,
		m.tirePsi, m.tireWarning,
		m.doorOpen, m.doorUnlocked, m.hazardsOn,
		m.evBatteryPercent, m.evRangeKm, m.evPluggedIn, m.evCharging,
		m.pollsTotal, m.pollDuration, m.breakerState,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// UpdateStatus publishes one vehicle's status gauges.
func (m *Metrics) UpdateStatus(vin string, s mazda.VehicleStatus) {
	m.fuelPercent.WithLabelValues(vin).Set(s.FuelRemainingPercent)
	m.fuelRangeKm.WithLabelValues(vin).Set(s.FuelDistanceRemainingKm)
	m.odometerKm.WithLabelValues(vin).Set(s.OdometerKm)
	m.hazardsOn.WithLabelValues(vin).Set(boolGauge(s.HazardLightsOn))

	m.tirePsi.WithLabelValues(vin, "front_left").Set(s.TirePressure.FrontLeftPsi)
	m.tirePsi.WithLabelValues(vin, "front_right").Set(s.TirePressure.FrontRightPsi)
	m.tirePsi.WithLabelValues(vin, "rear_left").Set(s.TirePressure.RearLeftPsi)
	m.tirePsi.WithLabelValues(vin, "rear_right").Set(s.TirePressure.RearRightPsi)
	m.tireWarning.WithLabelValues(vin, "front_left").Set(boolGauge(s.TirePressure.FrontLeftWarning))
	m.tireWarning.WithLabelValues(vin, "front_right").Set(boolGauge(s.TirePressure.FrontRightWarning))
	m.tireWarning.WithLabelValues(vin, "rear_left").Set(boolGauge(s.TirePressure.RearLeftWarning))
	m.tireWarning.WithLabelValues(vin, "rear_right").Set(boolGauge(s.TirePressure.RearRightWarning))

	m.doorOpen.WithLabelValues(vin, "driver").Set(boolGauge(s.Doors.DriverDoorOpen))
	m.doorOpen.WithLabelValues(vin, "passenger").Set(boolGauge(s.Doors.PassengerDoorOpen))
	m.doorOpen.WithLabelValues(vin, "rear_left").Set(boolGauge(s.Doors.RearLeftDoorOpen))
	m.doorOpen.WithLabelValues(vin, "rear_right").Set(boolGauge(s.Doors.RearRightDoorOpen))
	m.doorOpen.WithLabelValues(vin, "trunk").Set(boolGauge(s.Doors.TrunkOpen))
	m.doorOpen.WithLabelValues(vin, "hood").Set(boolGauge(s.Doors.HoodOpen))

	m.doorUnlocked.WithLabelValues(vin, "driver").Set(boolGauge(s.DoorLocks.DriverDoorUnlocked))
	m.doorUnlocked.WithLabelValues(vin, "passenger").Set(boolGauge(s.DoorLocks.PassengerDoorUnlocked))
	m.doorUnlocked.WithLabelValues(vin, "rear_left").Set(boolGauge(s.DoorLocks.RearLeftDoorUnlocked))
	m.doorUnlocked.WithLabelValues(vin, "rear_right").Set(boolGauge(s.DoorLocks.RearRightDoorUnlocked))
}

// UpdateEV publishes one vehicle's charge gauges.
func (m *Metrics) UpdateEV(vin string, ev mazda.EVStatus) {
	m.evBatteryPercent.WithLabelValues(vin).Set(ev.BatteryLevelPercentage)
	m.evRangeKm.WithLabelValues(vin).Set(ev.DrivingRangeKm)
	m.evPluggedIn.WithLabelValues(vin).Set(boolGauge(ev.PluggedIn))
	m.evCharging.WithLabelValues(vin).Set(boolGauge(ev.Charging))
}

// ObservePoll records the outcome of one poll cycle.
func (m *Metrics) ObservePoll(result string, seconds float64) {
	m.pollsTotal.WithLabelValues(result).Inc()
	m.pollDuration.Observe(seconds)
}

// SetBreakerState mirrors the circuit breaker state as a gauge.
func (m *Metrics) SetBreakerState(state float64) {
	m.breakerState.Set(state)
}
