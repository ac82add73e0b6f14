package nest

// Driver names exposed per thermostat.
const (
	DriverMode      = "CLIMD"
	DriverCoolSetpt = "CLISPC"
	DriverHeatSetpt = "CLISPH"
	DriverFan       = "CLIFS"
	DriverHumidity  = "CLIHUM"
	DriverHVACState = "CLIHCS"
	DriverGV1       = "GV1"
	DriverGV3       = "GV3"
	DriverOnline    = "GV4"
	DriverAmbient   = "ST"
)

// Unit-of-measure tags. They are passed through to Core untouched.
const (
	uomThermostatMode = 67
	uomFahrenheit     = 14
	uomFanMode        = 99
	uomPercent        = 51
	uomHeatCoolState  = 66
	uomBoolean        = 2
)

// Mode codes carried on CLIMD.
const (
	ModeCodeOff      = 0
	ModeCodeHeat     = 1
	ModeCodeCool     = 2
	ModeCodeHeatCool = 3
	ModeCodeFan      = 6
	ModeCodeAway     = 13
)

// Fan codes reported on CLIFS by a poll. Commands echo their raw value instead.
const (
	FanCodeOn   = 7
	FanCodeAuto = 8
)

// HVAC activity codes carried on CLIHCS.
const (
	HVACCodeIdle    = 0
	HVACCodeHeating = 1
	HVACCodeCooling = 2
)

// Driver is one named value reported to Core.
type Driver struct {
	Name  string  `json:"driver"`
	Value float64 `json:"value"`
	UOM   int     `json:"uom"`
}

// driverTable lists every driver in report order with its UOM.
var driverTable = []Driver{
	{Name: DriverMode, UOM: uomThermostatMode},
	{Name: DriverCoolSetpt, UOM: uomFahrenheit},
	{Name: DriverHeatSetpt, UOM: uomFahrenheit},
	{Name: DriverFan, UOM: uomFanMode},
	{Name: DriverHumidity, UOM: uomPercent},
	{Name: DriverHVACState, UOM: uomHeatCoolState},
	{Name: DriverGV1, UOM: uomFahrenheit},
	{Name: DriverGV3, UOM: uomFahrenheit},
	{Name: DriverOnline, UOM: uomBoolean},
	{Name: DriverAmbient, UOM: uomFahrenheit},
}

var driverUOM = func() map[string]int {
	m := make(map[string]int, len(driverTable))
	for _, d := range driverTable {
		m[d.Name] = d.UOM
	}
	return m
}()

// newDriver returns a driver with the UOM from the driver table.
func newDriver(name string, value float64) Driver {
	return Driver{Name: name, Value: value, UOM: driverUOM[name]}
}

// Snapshot is the last set of driver values pushed for a thermostat.
type Snapshot struct {
	Away         bool    `json:"away"`
	Online       bool    `json:"online"`
	Mode         float64 `json:"mode"`
	SetpointHigh float64 `json:"setpoint_high"`
	SetpointLow  float64 `json:"setpoint_low"`
	Fan          float64 `json:"fan"`
	Humidity     float64 `json:"humidity"`
	HVACState    float64 `json:"hvac_state"`
	Ambient      float64 `json:"ambient"`
}

// Drivers returns the snapshot as the full driver table, GV1 and GV3 as 0.
func (s Snapshot) Drivers() []Driver {
	values := map[string]float64{
		DriverMode:      s.Mode,
		DriverCoolSetpt: s.SetpointHigh,
		DriverHeatSetpt: s.SetpointLow,
		DriverFan:       s.Fan,
		DriverHumidity:  s.Humidity,
		DriverHVACState: s.HVACState,
		DriverOnline:    boolCode(s.Online),
		DriverAmbient:   s.Ambient,
	}
	out := make([]Driver, 0, len(driverTable))
	for _, d := range driverTable {
		d.Value = values[d.Name]
		out = append(out, d)
	}
	return out
}

// Fields returns the snapshot as telemetry/history fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"away":          s.Away,
		"online":        s.Online,
		"mode":          s.Mode,
		"setpoint_high": s.SetpointHigh,
		"setpoint_low":  s.SetpointLow,
		"fan":           s.Fan,
		"humidity":      s.Humidity,
		"hvac_state":    s.HVACState,
		"ambient":       s.Ambient,
	}
}

func boolCode(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
