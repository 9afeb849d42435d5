package mazda

import (
	"context"
	"encoding/json"
	"net/http"
)

// GetVehicles lists the vehicles registered to the account. Vehicles whose
// connected-services registration is incomplete are skipped.
func (c *Client) GetVehicles(ctx context.Context) ([]Vehicle, error) {
	payload, err := c.apiRequest(ctx, http.MethodPost, "remoteServices/getVecBaseInfos/v4",
		nil, map[string]any{"internaluserid": "__INTERNAL_ID__"}, true, true)
	if err != nil {
		return nil, err
	}

	var raw struct {
		VecBaseInfos []struct {
			VIN     string `json:"vin"`
			Vehicle struct {
				CvInformation struct {
					InternalVin int `json:"internalVin"`
				} `json:"CvInformation"`
				VehicleInformation struct {
					OtherInformation string `json:"OtherInformation"`
				} `json:"vehicleInformation"`
			} `json:"Vehicle"`
			EConnectType int `json:"econnectType"`
		} `json:"vecBaseInfos"`
		VehicleFlags []struct {
			VinRegistStatus int `json:"vinRegistStatus"`
		} `json:"vehicleFlags"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, newError(CodeAPIUnavailable, "parse vehicle list payload", err)
	}

	vehicles := make([]Vehicle, 0, len(raw.VecBaseInfos))
	for i, info := range raw.VecBaseInfos {
		if i < len(raw.VehicleFlags) && raw.VehicleFlags[i].VinRegistStatus != 3 {
			continue
		}

		v := Vehicle{
			VIN:        info.VIN,
			ID:         info.Vehicle.CvInformation.InternalVin,
			IsElectric: info.EConnectType == 1,
		}

		// OtherInformation is a JSON document embedded as a string.
		var other struct {
			CarlineCode string `json:"carlineCode"`
			CarlineName string `json:"carlineName"`
			ModelYear   string `json:"modelYear"`
		}
		if err := json.Unmarshal([]byte(info.Vehicle.VehicleInformation.OtherInformation), &other); err == nil {
			v.CarlineCode = other.CarlineCode
			v.CarlineName = other.CarlineName
			v.ModelYear = other.ModelYear
		}

		if nickname, err := c.getNickname(ctx, info.VIN); err == nil {
			v.Nickname = nickname
		}

		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

func (c *Client) getNickname(ctx context.Context, vin string) (string, error) {
	payload, err := c.apiRequest(ctx, http.MethodPost, "remoteServices/getNickName/v4",
		nil, map[string]any{"internaluserid": "__INTERNAL_ID__", "vin": vin}, true, true)
	if err != nil {
		return "", err
	}
	var raw struct {
		CarlineDesc string `json:"carlineDesc"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return "", newError(CodeAPIUnavailable, "parse nickname payload", err)
	}
	return raw.CarlineDesc, nil
}

// GetVehicleStatus fetches and decodes the vehicle's current status.
func (c *Client) GetVehicleStatus(ctx context.Context, internalVin int) (VehicleStatus, error) {
	payload, err := c.apiRequest(ctx, http.MethodPost, "remoteServices/getVehicleStatus/v4",
		nil, map[string]any{
			"internaluserid": "__INTERNAL_ID__",
			"internalvin":    internalVin,
			"limit":          1,
			"offset":         0,
			"vecinfotype":    "0",
		}, true, true)
	if err != nil {
		return VehicleStatus{}, err
	}

	var raw rawVehicleStatus
	if err := json.Unmarshal(payload, &raw); err != nil {
		return VehicleStatus{}, newError(CodeAPIUnavailable, "parse vehicle status payload", err)
	}
	return raw.toStatus()
}

// GetEVStatus fetches charge information for an electric vehicle.
func (c *Client) GetEVStatus(ctx context.Context, internalVin int) (EVStatus, error) {
	payload, err := c.apiRequest(ctx, http.MethodPost, "remoteServices/getEVVehicleStatus/v4",
		nil, map[string]any{
			"internaluserid": "__INTERNAL_ID__",
			"internalvin":    internalVin,
			"limit":          1,
			"offset":         0,
			"vecinfotype":    "13",
		}, true, true)
	if err != nil {
		return EVStatus{}, err
	}

	var raw rawEVStatus
	if err := json.Unmarshal(payload, &raw); err != nil {
		return EVStatus{}, newError(CodeAPIUnavailable, "parse ev status payload", err)
	}
	return raw.toStatus()
}

// remoteCommand issues a fire-and-forget remote service command.
func (c *Client) remoteCommand(ctx context.Context, uri string, internalVin int, extra map[string]any) error {
	body := map[string]any{
		"internaluserid": "__INTERNAL_ID__",
		"internalvin":    internalVin,
	}
	for k, v := range extra {
		body[k] = v
	}
	_, err := c.apiRequest(ctx, http.MethodPost, uri, nil, body, true, true)
	return err
}

// DoorLock locks the vehicle's doors.
func (c *Client) DoorLock(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/doorLock/v4", internalVin, nil)
}

// DoorUnlock unlocks the vehicle's doors.
func (c *Client) DoorUnlock(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/doorUnlock/v4", internalVin, nil)
}

// EngineStart starts the engine remotely. The service refuses more than two
// consecutive remote starts; that surfaces as CodeEngineStartLimit.
func (c *Client) EngineStart(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/engineStart/v4", internalVin, nil)
}

// EngineStop stops a remotely started engine.
func (c *Client) EngineStop(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/engineStop/v4", internalVin, nil)
}

// TurnHazardsOn flashes the hazard lights.
func (c *Client) TurnHazardsOn(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/lightOn/v4", internalVin, nil)
}

// TurnHazardsOff turns the hazard lights off.
func (c *Client) TurnHazardsOff(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/lightOff/v4", internalVin, nil)
}

// ChargeStart starts charging an electric vehicle.
func (c *Client) ChargeStart(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/chargeStart/v4", internalVin, nil)
}

// ChargeStop stops charging.
func (c *Client) ChargeStop(ctx context.Context, internalVin int) error {
	return c.remoteCommand(ctx, "remoteServices/chargeStop/v4", internalVin, nil)
}

// SendPOI sends a point of interest to the vehicle's navigation system.
func (c *Client) SendPOI(ctx context.Context, internalVin int, latitude, longitude float64, name string) error {
	return c.remoteCommand(ctx, "remoteServices/sendPOI/v4", internalVin, map[string]any{
		"locationInfo": map[string]any{
			"Latitude":  latitude,
			"Longitude": longitude,
			"Name":      name,
		},
	})
}
