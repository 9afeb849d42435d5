package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestUpdateStatusExposition(t *testing.T) {
	m := New()
	m.UpdateStatus("JM3KFBDM1R0100001", mazda.VehicleStatus{
		FuelRemainingPercent:    62.5,
		FuelDistanceRemainingKm: 410,
		OdometerKm:              12345.6,
		HazardLightsOn:          true,
		Doors:                   mazda.Doors{DriverDoorOpen: true},
		TirePressure: mazda.TirePressure{
			FrontLeftPsi:     34,
			RearRightPsi:     20,
			RearRightWarning: true,
		},
	})

	body := scrape(t, m)
	for _, want := range []string{
		`mazda_fuel_remaining_percent{vin="JM3KFBDM1R0100001"} 62.5`,
		`mazda_fuel_distance_remaining_km{vin="JM3KFBDM1R0100001"} 410`,
		`mazda_odometer_km{vin="JM3KFBDM1R0100001"} 12345.6`,
		`mazda_hazard_lights_on{vin="JM3KFBDM1R0100001"} 1`,
		`mazda_door_open{door="driver",vin="JM3KFBDM1R0100001"} 1`,
		`mazda_door_open{door="trunk",vin="JM3KFBDM1R0100001"} 0`,
		`mazda_tire_pressure_psi{tire="front_left",vin="JM3KFBDM1R0100001"} 34`,
		`mazda_tire_pressure_warning{tire="rear_right",vin="JM3KFBDM1R0100001"} 1`,
		`mazda_tire_pressure_warning{tire="front_left",vin="JM3KFBDM1R0100001"} 0`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestUpdateEVExposition(t *testing.T) {
	m := New()
	m.UpdateEV("JMZDR1W7600100002", mazda.EVStatus{
		PluggedIn:              true,
		Charging:               false,
		BatteryLevelPercentage: 78,
		DrivingRangeKm:         140,
	})

	body := scrape(t, m)
	assert.Contains(t, body, `mazda_ev_battery_percent{vin="JMZDR1W7600100002"} 78`)
	assert.Contains(t, body, `mazda_ev_range_km{vin="JMZDR1W7600100002"} 140`)
	assert.Contains(t, body, `mazda_ev_plugged_in{vin="JMZDR1W7600100002"} 1`)
	assert.Contains(t, body, `mazda_ev_charging{vin="JMZDR1W7600100002"} 0`)
}

func TestPollAndBreakerInstruments(t *testing.T) {
	m := New()
	m.ObservePoll("success", 1.5)
	m.ObservePoll("success", 0.5)
	m.ObservePoll("error", 0.1)
	m.SetBreakerState(2)

	body := scrape(t, m)
	assert.Contains(t, body, `mazda_polls_total{result="success"} 2`)
	assert.Contains(t, body, `mazda_polls_total{result="error"} 1`)
	assert.Contains(t, body, `mazda_breaker_state 2`)
	assert.Contains(t, body, "mazda_poll_duration_seconds_count 3")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.SetBreakerState(2)

	require.True(t, strings.Contains(scrape(t, a), "mazda_breaker_state 2"))
	assert.Contains(t, scrape(t, b), "mazda_breaker_state 0")
}
