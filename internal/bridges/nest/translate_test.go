package nest

import (
	"testing"

	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

func TestModeCode(t *testing.T) {
	tests := []struct {
		away bool
		mode string
		want float64
	}{
		{false, nestapi.ModeHeatCool, ModeCodeHeatCool},
		{false, nestapi.ModeHeat, ModeCodeHeat},
		{false, nestapi.ModeCool, ModeCodeCool},
		{false, nestapi.ModeFan, ModeCodeFan},
		{false, nestapi.ModeOff, ModeCodeOff},
		{false, nestapi.ModeEco, ModeCodeOff},
		{false, "", ModeCodeOff},
		{true, nestapi.ModeHeat, ModeCodeAway},
	}

	for _, tt := range tests {
		if got := modeCode(tt.away, tt.mode); got != tt.want {
			t.Errorf("modeCode(%v, %q) = %v, want %v", tt.away, tt.mode, got, tt.want)
		}
	}
}

func TestHVACStateCode(t *testing.T) {
	tests := map[string]float64{
		nestapi.HVACStateHeating: HVACCodeHeating,
		nestapi.HVACStateCooling: HVACCodeCooling,
		nestapi.HVACStateIdle:    HVACCodeIdle,
		"":                       HVACCodeIdle,
	}
	for state, want := range tests {
		if got := hvacStateCode(state); got != want {
			t.Errorf("hvacStateCode(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestProject(t *testing.T) {
	dev := nestapi.Thermostat{
		Mode:       nestapi.ModeHeatCool,
		Ambient:    70.9,
		TargetLow:  67.5,
		TargetHigh: 72.5,
		Humidity:   40,
		HVACState:  nestapi.HVACStateCooling,
		Online:     true,
	}
	got := project(nestapi.Structure{Away: nestapi.AwayHome}, dev)
	want := Snapshot{
		Online:       true,
		Mode:         ModeCodeHeatCool,
		SetpointHigh: 72,
		SetpointLow:  68,
		Fan:          FanCodeAuto,
		Humidity:     40,
		HVACState:    HVACCodeCooling,
		Ambient:      70,
	}
	if got != want {
		t.Errorf("project() = %+v, want %+v", got, want)
	}
}

func TestSnapshotDrivers(t *testing.T) {
	drivers := Snapshot{Mode: 2, Online: false, Ambient: 65}.Drivers()

	if len(drivers) != 10 {
		t.Fatalf("drivers = %d, want 10", len(drivers))
	}
	byName := make(map[string]Driver, len(drivers))
	for _, d := range drivers {
		byName[d.Name] = d
	}
	if byName[DriverGV1].Value != 0 || byName[DriverGV3].Value != 0 {
		t.Error("GV1 and GV3 should be 0")
	}
	if byName[DriverOnline].Value != 0 || byName[DriverOnline].UOM != uomBoolean {
		t.Errorf("GV4 = %+v", byName[DriverOnline])
	}
	if byName[DriverMode].Value != 2 || byName[DriverAmbient].Value != 65 {
		t.Errorf("drivers = %+v", drivers)
	}
}
