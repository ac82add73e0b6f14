package nest

import (
	"encoding/json"
	"fmt"
	"sort"
)

// HVAC modes reported and accepted by the API.
const (
	ModeOff      = "off"
	ModeHeat     = "heat"
	ModeCool     = "cool"
	ModeHeatCool = "heat-cool"
	ModeFan      = "fan"
	ModeEco      = "eco"
)

// HVAC activity states.
const (
	HVACStateIdle    = "off"
	HVACStateHeating = "heating"
	HVACStateCooling = "cooling"
)

// Temperature scales.
const (
	ScaleFahrenheit = "F"
	ScaleCelsius    = "C"
)

// Structure away values.
const (
	AwayHome = "home"
	AwayAway = "away"
)

// Structure is a home grouping thermostats under one away state.
type Structure struct {
	ID          string   `json:"structure_id"`
	Name        string   `json:"name"`
	Away        string   `json:"away"`
	Thermostats []string `json:"thermostats"`
}

// IsAway reports whether the structure is in away mode.
func (s Structure) IsAway() bool {
	return s.Away == AwayAway
}

// Thermostat is a thermostat device with temperatures resolved in its own scale.
type Thermostat struct {
	DeviceID    string
	Name        string
	StructureID string
	Mode        string
	Scale       string

	Ambient    float64
	Target     float64
	TargetLow  float64
	TargetHigh float64

	FanTimerActive bool
	Humidity       float64
	HVACState      string
	Online         bool
}

// IsHeatCool reports whether the thermostat runs on a low/high setpoint pair.
func (t Thermostat) IsHeatCool() bool {
	return t.Mode == ModeHeatCool
}

// Celsius reports whether temperatures are in Celsius.
func (t Thermostat) Celsius() bool {
	return t.Scale == ScaleCelsius
}

// thermostatJSON mirrors the API document. Both scales are always present.
type thermostatJSON struct {
	DeviceID         string  `json:"device_id"`
	Name             string  `json:"name"`
	StructureID      string  `json:"structure_id"`
	HVACMode         string  `json:"hvac_mode"`
	TemperatureScale string  `json:"temperature_scale"`
	AmbientF         float64 `json:"ambient_temperature_f"`
	AmbientC         float64 `json:"ambient_temperature_c"`
	TargetF          float64 `json:"target_temperature_f"`
	TargetC          float64 `json:"target_temperature_c"`
	TargetLowF       float64 `json:"target_temperature_low_f"`
	TargetLowC       float64 `json:"target_temperature_low_c"`
	TargetHighF      float64 `json:"target_temperature_high_f"`
	TargetHighC      float64 `json:"target_temperature_high_c"`
	FanTimerActive   bool    `json:"fan_timer_active"`
	Humidity         float64 `json:"humidity"`
	HVACState        string  `json:"hvac_state"`
	IsOnline         bool    `json:"is_online"`
}

func (j thermostatJSON) resolve() Thermostat {
	t := Thermostat{
		DeviceID:       j.DeviceID,
		Name:           j.Name,
		StructureID:    j.StructureID,
		Mode:           j.HVACMode,
		Scale:          j.TemperatureScale,
		FanTimerActive: j.FanTimerActive,
		Humidity:       j.Humidity,
		HVACState:      j.HVACState,
		Online:         j.IsOnline,
	}
	if t.Celsius() {
		t.Ambient, t.Target, t.TargetLow, t.TargetHigh = j.AmbientC, j.TargetC, j.TargetLowC, j.TargetHighC
	} else {
		t.Ambient, t.Target, t.TargetLow, t.TargetHigh = j.AmbientF, j.TargetF, j.TargetLowF, j.TargetHighF
	}
	return t
}

// snapshot is the decoded root document (GET /).
type snapshot struct {
	thermostats map[string]Thermostat
	structures  map[string]Structure
}

type rootJSON struct {
	Devices struct {
		Thermostats map[string]thermostatJSON `json:"thermostats"`
	} `json:"devices"`
	Structures map[string]Structure `json:"structures"`
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	var root rootJSON
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	snap := &snapshot{
		thermostats: make(map[string]Thermostat, len(root.Devices.Thermostats)),
		structures:  make(map[string]Structure, len(root.Structures)),
	}
	for id, raw := range root.Devices.Thermostats {
		t := raw.resolve()
		if t.DeviceID == "" {
			t.DeviceID = id
		}
		snap.thermostats[t.DeviceID] = t
	}
	for id, s := range root.Structures {
		if s.ID == "" {
			s.ID = id
		}
		snap.structures[s.ID] = s
	}
	return snap, nil
}

func (s *snapshot) sortedStructures() []Structure {
	out := make([]Structure, 0, len(s.structures))
	for _, st := range s.structures {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// thermostatsIn returns the structure's thermostats ordered by device ID.
// A device belongs to the structure when the structure lists it or the
// device names the structure; listed IDs missing from the device map are skipped.
func (s *snapshot) thermostatsIn(structureID string) []Thermostat {
	st, ok := s.structures[structureID]
	if !ok {
		return nil
	}
	listed := make(map[string]bool, len(st.Thermostats))
	for _, id := range st.Thermostats {
		listed[id] = true
	}
	var out []Thermostat
	for id, t := range s.thermostats {
		if listed[id] || t.StructureID == structureID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
