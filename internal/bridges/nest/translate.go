package nest

import (
	"math"

	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

// modeAway is the pseudo-mode name for ModeCodeAway; it maps to the
// structure's away flag rather than a device mode.
const modeAway = "away"

// modeCodes maps remote HVAC modes to CLIMD codes. Anything else is off.
var modeCodes = map[string]float64{
	nestapi.ModeHeatCool: ModeCodeHeatCool,
	nestapi.ModeHeat:     ModeCodeHeat,
	nestapi.ModeCool:     ModeCodeCool,
	nestapi.ModeFan:      ModeCodeFan,
}

// modeNames is the inverse used by Set Mode.
var modeNames = map[int]string{
	ModeCodeOff:      nestapi.ModeOff,
	ModeCodeHeat:     nestapi.ModeHeat,
	ModeCodeCool:     nestapi.ModeCool,
	ModeCodeHeatCool: nestapi.ModeHeatCool,
	ModeCodeFan:      nestapi.ModeFan,
	ModeCodeAway:     modeAway,
}

// modeCode classifies the remote mode; away takes precedence.
func modeCode(away bool, mode string) float64 {
	if away {
		return ModeCodeAway
	}
	return modeCodes[mode]
}

// modeName resolves a CLIMD code to a remote mode name.
func modeName(code int) (string, bool) {
	name, ok := modeNames[code]
	return name, ok
}

func fanCode(on bool) float64 {
	if on {
		return FanCodeOn
	}
	return FanCodeAuto
}

func hvacStateCode(state string) float64 {
	switch state {
	case nestapi.HVACStateCooling:
		return HVACCodeCooling
	case nestapi.HVACStateHeating:
		return HVACCodeHeating
	default:
		return HVACCodeIdle
	}
}

// roundSetpoint rounds half to even.
func roundSetpoint(v float64) float64 {
	return math.RoundToEven(v)
}

// setpoints projects the remote targets onto (high, low).
func setpoints(t nestapi.Thermostat) (high, low float64) {
	if t.IsHeatCool() {
		return roundSetpoint(t.TargetHigh), roundSetpoint(t.TargetLow)
	}
	v := roundSetpoint(t.Target)
	return v, v
}

// project computes the snapshot for a device and its structure.
func project(st nestapi.Structure, t nestapi.Thermostat) Snapshot {
	high, low := setpoints(t)
	away := st.IsAway()
	return Snapshot{
		Away:         away,
		Online:       t.Online,
		Mode:         modeCode(away, t.Mode),
		SetpointHigh: high,
		SetpointLow:  low,
		Fan:          fanCode(t.FanTimerActive),
		Humidity:     t.Humidity,
		HVACState:    hvacStateCode(t.HVACState),
		Ambient:      math.Trunc(t.Ambient),
	}
}
