package mazda

// Vehicle is one vehicle registered to the account.
type Vehicle struct {
	VIN         string `json:"vin"`
	ID          int    `json:"id"`
	Nickname    string `json:"nickname,omitempty"`
	CarlineCode string `json:"carline_code,omitempty"`
	CarlineName string `json:"carline_name,omitempty"`
	ModelYear   string `json:"model_year,omitempty"`
	IsElectric  bool   `json:"is_electric"`
}

// Doors reports per-door open state.
type Doors struct {
	DriverDoorOpen    bool `json:"driver_door_open"`
	PassengerDoorOpen bool `json:"passenger_door_open"`
	RearLeftDoorOpen  bool `json:"rear_left_door_open"`
	RearRightDoorOpen bool `json:"rear_right_door_open"`
	TrunkOpen         bool `json:"trunk_open"`
	HoodOpen          bool `json:"hood_open"`
	FuelLidOpen       bool `json:"fuel_lid_open"`
}

// DoorLocks reports per-door unlocked state.
type DoorLocks struct {
	DriverDoorUnlocked    bool `json:"driver_door_unlocked"`
	PassengerDoorUnlocked bool `json:"passenger_door_unlocked"`
	RearLeftDoorUnlocked  bool `json:"rear_left_door_unlocked"`
	RearRightDoorUnlocked bool `json:"rear_right_door_unlocked"`
}

// TirePressure carries per-tire pressure readings and warning flags.
type TirePressure struct {
	FrontLeftPsi      float64 `json:"front_left_psi"`
	FrontRightPsi     float64 `json:"front_right_psi"`
	RearLeftPsi       float64 `json:"rear_left_psi"`
	RearRightPsi      float64 `json:"rear_right_psi"`
	FrontLeftWarning  bool    `json:"front_left_warning"`
	FrontRightWarning bool    `json:"front_right_warning"`
	RearLeftWarning   bool    `json:"rear_left_warning"`
	RearRightWarning  bool    `json:"rear_right_warning"`
}

// Position is the vehicle's last reported location.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// VehicleStatus is the decoded getVehicleStatus payload.
type VehicleStatus struct {
	LastUpdated             string       `json:"last_updated,omitempty"`
	FuelRemainingPercent    float64      `json:"fuel_remaining_percent"`
	FuelDistanceRemainingKm float64      `json:"fuel_distance_remaining_km"`
	OdometerKm              float64      `json:"odometer_km"`
	Doors                   Doors        `json:"doors"`
	DoorLocks               DoorLocks    `json:"door_locks"`
	HazardLightsOn          bool         `json:"hazard_lights_on"`
	TirePressure            TirePressure `json:"tire_pressure"`
	Position                Position     `json:"position"`
}

// EVStatus is the decoded getEVVehicleStatus charge information.
type EVStatus struct {
	PluggedIn              bool    `json:"plugged_in"`
	Charging               bool    `json:"charging"`
	BatteryLevelPercentage float64 `json:"battery_level_percentage"`
	DrivingRangeKm         float64 `json:"driving_range_km"`
	RemainingChargeMinutes float64 `json:"remaining_charge_minutes"`
	BatteryHeaterOn        bool    `json:"battery_heater_on"`
	BatteryHeaterAuto      bool    `json:"battery_heater_auto"`
}

// rawVehicleStatus mirrors the wire shape of the getVehicleStatus payload.
type rawVehicleStatus struct {
	AlertInfos []struct {
		OccurrenceDate string `json:"OccurrenceDate"`
		Door           struct {
			DrStatDrv         int `json:"DrStatDrv"`
			DrStatPsngr       int `json:"DrStatPsngr"`
			DrStatRl          int `json:"DrStatRl"`
			DrStatRr          int `json:"DrStatRr"`
			DrStatTrnkLg      int `json:"DrStatTrnkLg"`
			DrStatHood        int `json:"DrStatHood"`
			FuelLidOpenStatus int `json:"FuelLidOpenStatus"`
			LockLinkSwDrv     int `json:"LockLinkSwDrv"`
			LockLinkSwPsngr   int `json:"LockLinkSwPsngr"`
			LockLinkSwRl      int `json:"LockLinkSwRl"`
			LockLinkSwRr      int `json:"LockLinkSwRr"`
		} `json:"Door"`
		HazardLamp struct {
			HazardSw int `json:"HazardSw"`
		} `json:"HazardLamp"`
	} `json:"alertInfos"`
	RemoteInfos []struct {
		PositionInfo struct {
			Latitude            float64 `json:"Latitude"`
			Longitude           float64 `json:"Longitude"`
			AcquisitionDatetime string  `json:"AcquisitionDatetime"`
		} `json:"PositionInfo"`
		ResidualFuel struct {
			FuelSegementDActvAmnt float64 `json:"FuelSegementDActvAmnt"`
			RemDrvDistDActvKm     float64 `json:"RemDrvDistDActvKm"`
		} `json:"ResidualFuel"`
		DriveInformation struct {
			OdoDispValue float64 `json:"OdoDispValue"`
		} `json:"DriveInformation"`
		TPMSInformation struct {
			FLTPrsDispPsi   float64 `json:"FLTPrsDispPsi"`
			FRTPrsDispPsi   float64 `json:"FRTPrsDispPsi"`
			RLTPrsDispPsi   float64 `json:"RLTPrsDispPsi"`
			RRTPrsDispPsi   float64 `json:"RRTPrsDispPsi"`
			FLTyrePressWarn int     `json:"FLTyrePressWarn"`
			FRTyrePressWarn int     `json:"FRTyrePressWarn"`
			RLTyrePressWarn int     `json:"RLTyrePressWarn"`
			RRTyrePressWarn int     `json:"RRTyrePressWarn"`
		} `json:"TPMSInformation"`
	} `json:"remoteInfos"`
}

func (r rawVehicleStatus) toStatus() (VehicleStatus, error) {
	if len(r.AlertInfos) == 0 || len(r.RemoteInfos) == 0 {
		return VehicleStatus{}, newError(CodeAPIUnavailable, "vehicle status payload is empty", nil)
	}
	alert := r.AlertInfos[0]
	remote := r.RemoteInfos[0]
	return VehicleStatus{
		LastUpdated:             alert.OccurrenceDate,
		FuelRemainingPercent:    remote.ResidualFuel.FuelSegementDActvAmnt,
		FuelDistanceRemainingKm: remote.ResidualFuel.RemDrvDistDActvKm,
		OdometerKm:              remote.DriveInformation.OdoDispValue,
		Doors: Doors{
			DriverDoorOpen:    alert.Door.DrStatDrv == 1,
			PassengerDoorOpen: alert.Door.DrStatPsngr == 1,
			RearLeftDoorOpen:  alert.Door.DrStatRl == 1,
			RearRightDoorOpen: alert.Door.DrStatRr == 1,
			TrunkOpen:         alert.Door.DrStatTrnkLg == 1,
			HoodOpen:          alert.Door.DrStatHood == 1,
			FuelLidOpen:       alert.Door.FuelLidOpenStatus == 1,
		},
		DoorLocks: DoorLocks{
			DriverDoorUnlocked:    alert.Door.LockLinkSwDrv == 1,
			PassengerDoorUnlocked: alert.Door.LockLinkSwPsngr == 1,
			RearLeftDoorUnlocked:  alert.Door.LockLinkSwRl == 1,
			RearRightDoorUnlocked: alert.Door.LockLinkSwRr == 1,
		},
		HazardLightsOn: alert.HazardLamp.HazardSw == 1,
		TirePressure: TirePressure{
			FrontLeftPsi:      remote.TPMSInformation.FLTPrsDispPsi,
			FrontRightPsi:     remote.TPMSInformation.FRTPrsDispPsi,
			RearLeftPsi:       remote.TPMSInformation.RLTPrsDispPsi,
			RearRightPsi:      remote.TPMSInformation.RRTPrsDispPsi,
			FrontLeftWarning:  remote.TPMSInformation.FLTyrePressWarn == 1,
			FrontRightWarning: remote.TPMSInformation.FRTyrePressWarn == 1,
			RearLeftWarning:   remote.TPMSInformation.RLTyrePressWarn == 1,
			RearRightWarning:  remote.TPMSInformation.RRTyrePressWarn == 1,
		},
		Position: Position{
			Latitude:  remote.PositionInfo.Latitude,
			Longitude: remote.PositionInfo.Longitude,
			Timestamp: remote.PositionInfo.AcquisitionDatetime,
		},
	}, nil
}

// rawEVStatus mirrors the getEVVehicleStatus payload.
type rawEVStatus struct {
	ResultData []struct {
		PlusBInformation struct {
			VehicleInfo struct {
				ChargeInfo struct {
					SmaphSOC                float64 `json:"SmaphSOC"`
					SmaphRemDrvDistKm       float64 `json:"SmaphRemDrvDistKm"`
					ChargerConnectorFitting int     `json:"ChargerConnectorFitting"`
					ChargeStatusSub         int     `json:"ChargeStatusSub"`
					MaxChargeMinuteAC       float64 `json:"MaxChargeMinuteAC"`
					BatteryHeaterON         int     `json:"BatteryHeaterON"`
					CstmzStatBatHeatAutoSW  int     `json:"CstmzStatBatHeatAutoSW"`
				} `json:"ChargeInfo"`
			} `json:"VehicleInfo"`
		} `json:"PlusBInformation"`
	} `json:"resultData"`
}

func (r rawEVStatus) toStatus() (EVStatus, error) {
	if len(r.ResultData) == 0 {
		return EVStatus{}, newError(CodeAPIUnavailable, "ev status payload is empty", nil)
	}
	info := r.ResultData[0].PlusBInformation.VehicleInfo.ChargeInfo
	return EVStatus{
		PluggedIn:              info.ChargerConnectorFitting == 1,
		Charging:               info.ChargeStatusSub == 6,
		BatteryLevelPercentage: info.SmaphSOC,
		DrivingRangeKm:         info.SmaphRemDrvDistKm,
		RemainingChargeMinutes: info.MaxChargeMinuteAC,
		BatteryHeaterOn:        info.BatteryHeaterON == 1,
		BatteryHeaterAuto:      info.CstmzStatBatHeatAutoSW == 1,
	}, nil
}
