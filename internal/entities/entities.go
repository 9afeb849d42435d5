// Package entities flattens a vehicle snapshot into Home-Assistant-style
// entity views. It is a pure mapping layer with no I/O.
package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/mazda_agent/internal/coordinator"
	"github.com/dgnsrekt/mazda_agent/internal/mazda"
)

// Sensor is a numeric reading with a unit.
type Sensor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// BinarySensor is an on/off reading.
type BinarySensor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// Lock state values.
const (
	LockStateLocked   = "locked"
	LockStateUnlocked = "unlocked"
	LockStateUnknown  = "unknown"
)

// View is everything a Home Assistant integration needs for one vehicle.
type View struct {
	VIN           string         `json:"vin"`
	Name          string         `json:"name"`
	Sensors       []Sensor       `json:"sensors"`
	BinarySensors []BinarySensor `json:"binary_sensors"`
	LockState     string         `json:"lock_state"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
}

// Build maps one vehicle snapshot to its entity view. A snapshot with no
// status yet yields an empty entity list and an unknown lock state.
func Build(d coordinator.VehicleData) View {
	v := View{
		VIN:       d.Vehicle.VIN,
		Name:      displayName(d),
		LockState: LockStateUnknown,
		LastError: d.LastError,
	}
	if !d.UpdatedAt.IsZero() {
		v.UpdatedAt = d.UpdatedAt.UTC().Format(time.RFC3339)
	}

	prefix := entityPrefix(d)
	if d.Status != nil {
		s := d.Status
		v.Sensors = append(v.Sensors,
			Sensor{ID: prefix + "_fuel_remaining", Name: "Fuel Remaining", Value: s.FuelRemainingPercent, Unit: "%"},
			Sensor{ID: prefix + "_fuel_distance", Name: "Fuel Distance Remaining", Value: s.FuelDistanceRemainingKm, Unit: "km"},
			Sensor{ID: prefix + "_odometer", Name: "Odometer", Value: s.OdometerKm, Unit: "km"},
			Sensor{ID: prefix + "_tire_front_left", Name: "Front Left Tire Pressure", Value: s.TirePressure.FrontLeftPsi, Unit: "psi"},
			Sensor{ID: prefix + "_tire_front_right", Name: "Front Right Tire Pressure", Value: s.TirePressure.FrontRightPsi, Unit: "psi"},
			Sensor{ID: prefix + "_tire_rear_left", Name: "Rear Left Tire Pressure", Value: s.TirePressure.RearLeftPsi, Unit: "psi"},
			Sensor{ID: prefix + "_tire_rear_right", Name: "Rear Right Tire Pressure", Value: s.TirePressure.RearRightPsi, Unit: "psi"},
		)
		v.BinarySensors = append(v.BinarySensors,
			BinarySensor{ID: prefix + "_driver_door", Name: "Driver Door", On: s.Doors.DriverDoorOpen},
			BinarySensor{ID: prefix + "_passenger_door", Name: "Passenger Door", On: s.Doors.PassengerDoorOpen},
			BinarySensor{ID: prefix + "_rear_left_door", Name: "Rear Left Door", On: s.Doors.RearLeftDoorOpen},
			BinarySensor{ID: prefix + "_rear_right_door", Name: "Rear Right Door", On: s.Doors.RearRightDoorOpen},
			BinarySensor{ID: prefix + "_trunk", Name: "Trunk", On: s.Doors.TrunkOpen},
			BinarySensor{ID: prefix + "_hood", Name: "Hood", On: s.Doors.HoodOpen},
			BinarySensor{ID: prefix + "_hazard_lights", Name: "Hazard Lights", On: s.HazardLightsOn},
			BinarySensor{ID: prefix + "_tire_pressure_warning", Name: "Tire Pressure Warning", On: anyTireWarning(s.TirePressure)},
		)
		v.LockState = lockState(s.DoorLocks)
	}
	if d.EVStatus != nil {
		ev := d.EVStatus
		v.Sensors = append(v.Sensors,
			Sensor{ID: prefix + "_battery", Name: "Battery Level", Value: ev.BatteryLevelPercentage, Unit: "%"},
			Sensor{ID: prefix + "_ev_range", Name: "Driving Range", Value: ev.DrivingRangeKm, Unit: "km"},
			Sensor{ID: prefix + "_charge_time_remaining", Name: "Charge Time Remaining", Value: ev.RemainingChargeMinutes, Unit: "min"},
		)
		v.BinarySensors = append(v.BinarySensors,
			BinarySensor{ID: prefix + "_plugged_in", Name: "Plugged In", On: ev.PluggedIn},
			BinarySensor{ID: prefix + "_charging", Name: "Charging", On: ev.Charging},
			BinarySensor{ID: prefix + "_battery_heater", Name: "Battery Heater", On: ev.BatteryHeaterOn},
		)
	}
	return v
}

// BuildAll maps every snapshot, preserving order.
func BuildAll(data []coordinator.VehicleData) []View {
	views := make([]View, 0, len(data))
	for _, d := range data {
		views = append(views, Build(d))
	}
	return views
}

func displayName(d coordinator.VehicleData) string {
	if d.Vehicle.Nickname != "" {
		return d.Vehicle.Nickname
	}
	if d.Vehicle.CarlineName != "" {
		return d.Vehicle.CarlineName
	}
	return d.Vehicle.VIN
}

// entityPrefix builds the stable entity id stem: lowercased name with
// non-alphanumerics collapsed to underscores, suffixed with the VIN tail so
// two cars with the same nickname stay distinct.
func entityPrefix(d coordinator.VehicleData) string {
	name := strings.ToLower(displayName(d))
	var b strings.Builder
	lastUnderscore := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	stem := strings.TrimSuffix(b.String(), "_")
	if stem == "" {
		stem = "mazda"
	}
	vin := d.Vehicle.VIN
	if len(vin) > 6 {
		vin = vin[len(vin)-6:]
	}
	return fmt.Sprintf("%s_%s", stem, strings.ToLower(vin))
}

func anyTireWarning(t mazda.TirePressure) bool {
	return t.FrontLeftWarning || t.FrontRightWarning || t.RearLeftWarning || t.RearRightWarning
}

func lockState(l mazda.DoorLocks) string {
	if l.DriverDoorUnlocked || l.PassengerDoorUnlocked || l.RearLeftDoorUnlocked || l.RearRightDoorUnlocked {
		return LockStateUnlocked
	}
	return LockStateLocked
}
