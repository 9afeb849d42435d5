package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
)

type fakeAPI struct {
	mu            sync.Mutex
	vehicles      []mazda.Vehicle
	vehicleCalls  int
	statusCalls   int
	evCalls       int
	statusErr     error
	commands      []string
	statusByID    map[int]mazda.VehicleStatus
	evByID        map[int]mazda.EVStatus
	commandErr    error
	lastPOI       string
	lastPOILat    float64
	lastPOILng    float64
	lastCommandID int
}

func (f *fakeAPI) GetVehicles(ctx context.Context) ([]mazda.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vehicleCalls++
	return f.vehicles, nil
}

func (f *fakeAPI) GetVehicleStatus(ctx context.Context, internalVin int) (mazda.VehicleStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return mazda.VehicleStatus{}, f.statusErr
	}
	return f.statusByID[internalVin], nil
}

func (f *fakeAPI) GetEVStatus(ctx context.Context, internalVin int) (mazda.EVStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evCalls++
	return f.evByID[internalVin], nil
}

func (f *fakeAPI) command(name string, internalVin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	f.lastCommandID = internalVin
	return f.commandErr
}

func (f *fakeAPI) DoorLock(ctx context.Context, id int) error    { return f.command("doorLock", id) }
func (f *fakeAPI) DoorUnlock(ctx context.Context, id int) error  { return f.command("doorUnlock", id) }
func (f *fakeAPI) EngineStart(ctx context.Context, id int) error { return f.command("engineStart", id) }
func (f *fakeAPI) EngineStop(ctx context.Context, id int) error  { return f.command("engineStop", id) }
func (f *fakeAPI) TurnHazardsOn(ctx context.Context, id int) error {
	return f.command("lightOn", id)
}
func (f *fakeAPI) TurnHazardsOff(ctx context.Context, id int) error {
	return f.command("lightOff", id)
}
func (f *fakeAPI) ChargeStart(ctx context.Context, id int) error { return f.command("chargeStart", id) }
func (f *fakeAPI) ChargeStop(ctx context.Context, id int) error  { return f.command("chargeStop", id) }

func (f *fakeAPI) SendPOI(ctx context.Context, id int, lat, lng float64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCommandID = id
	f.lastPOILat = lat
	f.lastPOILng = lng
	f.lastPOI = name
	return nil
}

func testConfig() Config {
	return Config{
		PollInterval:       time.Hour,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
	}
}

func testVehicles() []mazda.Vehicle {
	return []mazda.Vehicle{
		{VIN: "JM3KFBDM1R0100001", ID: 12345, Nickname: "Daily", CarlineName: "CX-5", IsElectric: false},
		{VIN: "JMZDR1W7600100002", ID: 67890, Nickname: "EV", CarlineName: "MX-30", IsElectric: true},
	}
}

func TestPollCachesVehicleListOnce(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles(),
		statusByID: map[int]mazda.VehicleStatus{},
		evByID:     map[int]mazda.EVStatus{},
	}
	c := New(api, testConfig(), nil)

	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	if api.vehicleCalls != 1 {
		t.Errorf("vehicle list fetched %d times, want 1", api.vehicleCalls)
	}
	if api.statusCalls != 4 {
		t.Errorf("status fetched %d times, want 4", api.statusCalls)
	}
}

func TestPollFetchesEVStatusOnlyForElectric(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles(),
		statusByID: map[int]mazda.VehicleStatus{},
		evByID: map[int]mazda.EVStatus{
			67890: {PluggedIn: true, BatteryLevelPercentage: 80},
		},
	}
	c := New(api, testConfig(), nil)

	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if api.evCalls != 1 {
		t.Fatalf("ev status fetched %d times, want 1", api.evCalls)
	}

	ev, ok := c.Vehicle("JMZDR1W7600100002")
	if !ok {
		t.Fatal("ev vehicle missing from snapshot")
	}
	if ev.EVStatus == nil || ev.EVStatus.BatteryLevelPercentage != 80 {
		t.Errorf("ev status not stored: %+v", ev.EVStatus)
	}

	gas, _ := c.Vehicle("JM3KFBDM1R0100001")
	if gas.EVStatus != nil {
		t.Error("gas vehicle should have no ev status")
	}
}

func TestPollKeepsLastGoodStatusOnFailure(t *testing.T) {
	api := &fakeAPI{
		vehicles: testVehicles()[:1],
		statusByID: map[int]mazda.VehicleStatus{
			12345: {FuelRemainingPercent: 55},
		},
		evByID: map[int]mazda.EVStatus{},
	}
	c := New(api, testConfig(), nil)

	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("first poll: %v", err)
	}

	api.mu.Lock()
	api.statusErr = errors.New("upstream flaked")
	api.mu.Unlock()

	if err := c.RefreshNow(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}

	d, ok := c.Vehicle("JM3KFBDM1R0100001")
	if !ok {
		t.Fatal("vehicle missing from snapshot")
	}
	if d.Status == nil || d.Status.FuelRemainingPercent != 55 {
		t.Errorf("old status dropped: %+v", d.Status)
	}
	if d.LastError == "" {
		t.Error("last error not recorded")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles()[:1],
		statusByID: map[int]mazda.VehicleStatus{},
		evByID:     map[int]mazda.EVStatus{},
		statusErr:  errors.New("boom"),
	}
	c := New(api, testConfig(), nil)

	for range 4 {
		c.RefreshNow(context.Background())
	}

	err := c.Execute(context.Background(), "JM3KFBDM1R0100001", CommandDoorLock)
	if err == nil {
		t.Fatal("expected breaker to reject the command")
	}
	var coded *mazda.CodedError
	if !errors.As(err, &coded) || coded.Code != mazda.CodeAPIUnavailable {
		t.Errorf("error = %v, want CodeAPIUnavailable", err)
	}
	if len(api.commands) != 0 {
		t.Errorf("command reached the api while breaker open: %v", api.commands)
	}
}

func TestExecuteRoutesCommands(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles(),
		statusByID: map[int]mazda.VehicleStatus{},
		evByID:     map[int]mazda.EVStatus{},
	}
	c := New(api, testConfig(), nil)
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	cases := []struct {
		command string
		want    string
	}{
		{CommandDoorLock, "doorLock"},
		{CommandDoorUnlock, "doorUnlock"},
		{CommandEngineStart, "engineStart"},
		{CommandEngineStop, "engineStop"},
		{CommandHazardsOn, "lightOn"},
		{CommandHazardsOff, "lightOff"},
		{CommandChargeStart, "chargeStart"},
		{CommandChargeStop, "chargeStop"},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			api.mu.Lock()
			api.commands = nil
			api.mu.Unlock()

			if err := c.Execute(context.Background(), "JMZDR1W7600100002", tc.command); err != nil {
				t.Fatalf("execute: %v", err)
			}
			api.mu.Lock()
			defer api.mu.Unlock()
			if len(api.commands) != 1 || api.commands[0] != tc.want {
				t.Errorf("commands = %v, want [%s]", api.commands, tc.want)
			}
			if api.lastCommandID != 67890 {
				t.Errorf("internal vin = %d, want 67890", api.lastCommandID)
			}
		})
	}
}

func TestExecuteRejectsUnknownVINAndCommand(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles(),
		statusByID: map[int]mazda.VehicleStatus{},
		evByID:     map[int]mazda.EVStatus{},
	}
	c := New(api, testConfig(), nil)
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	var coded *mazda.CodedError
	err := c.Execute(context.Background(), "NOPE", CommandDoorLock)
	if !errors.As(err, &coded) || coded.Code != mazda.CodeVehicleNotFound {
		t.Errorf("unknown vin error = %v, want CodeVehicleNotFound", err)
	}

	err = c.Execute(context.Background(), "JM3KFBDM1R0100001", "self_destruct")
	if !errors.As(err, &coded) || coded.Code != mazda.CodeValidation {
		t.Errorf("unknown command error = %v, want CodeValidation", err)
	}
}

func TestSendPOI(t *testing.T) {
	api := &fakeAPI{
		vehicles:   testVehicles(),
		statusByID: map[int]mazda.VehicleStatus{},
		evByID:     map[int]mazda.EVStatus{},
	}
	c := New(api, testConfig(), nil)
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if err := c.SendPOI(context.Background(), "JM3KFBDM1R0100001", 47.62, -122.35, "Space Needle"); err != nil {
		t.Fatalf("send poi: %v", err)
	}
	if api.lastPOI != "Space Needle" || api.lastCommandID != 12345 {
		t.Errorf("poi = %q id = %d", api.lastPOI, api.lastCommandID)
	}
	if api.lastPOILat != 47.62 || api.lastPOILng != -122.35 {
		t.Errorf("coordinates = %v,%v", api.lastPOILat, api.lastPOILng)
	}
}
