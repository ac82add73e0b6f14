package nest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CommandKind enumerates the thermostat commands.
type CommandKind int

const (
	CommandSetMode CommandKind = iota + 1
	CommandSetFan
	CommandSetHigh
	CommandSetLow
	CommandQuery
	CommandBeep
)

// CommandDiscover is the controller-level command name.
const CommandDiscover = "DISCOVER"

var commandNames = map[string]CommandKind{
	"CLIMD":  CommandSetMode,
	"CLIFS":  CommandSetFan,
	"BRT":    CommandSetHigh,
	"CLISPC": CommandSetHigh,
	"DIM":    CommandSetLow,
	"CLISPH": CommandSetLow,
	"QUERY":  CommandQuery,
	"BEEP":   CommandBeep,
}

func (k CommandKind) String() string {
	switch k {
	case CommandSetMode:
		return "set_mode"
	case CommandSetFan:
		return "set_fan"
	case CommandSetHigh:
		return "set_high"
	case CommandSetLow:
		return "set_low"
	case CommandQuery:
		return "query"
	case CommandBeep:
		return "beep"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// ParseCommandKind resolves a wire command name such as "CLISPH" or "brt".
func ParseCommandKind(name string) (CommandKind, error) {
	kind, ok := commandNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return kind, nil
}

// Command is one command for a thermostat. A nil Value means no value was
// sent; setpoint commands then nudge by one degree.
type Command struct {
	Kind  CommandKind
	Value *float64
}

// NewCommand builds a command from its wire name and raw JSON value.
func NewCommand(name string, raw json.RawMessage) (Command, error) {
	kind, err := ParseCommandKind(name)
	if err != nil {
		return Command{}, err
	}
	value, err := ParseValue(raw)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: kind, Value: value}, nil
}

// ParseValue decodes a command value. Absent, null and empty-string values
// yield nil; finite numbers and numeric strings yield the number.
func ParseValue(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	switch x := v.(type) {
	case float64:
		return finite(x)
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		return finite(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, s)
	}
}

// finite rejects NaN and the infinities, which no driver can carry.
func finite(f float64) (*float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, f)
	}
	return &f, nil
}

// Float returns a pointer to v, for building commands in code and tests.
func Float(v float64) *float64 {
	return &v
}

type commandHandler func(ctx context.Context, cmd Command) error

// commandTable binds each command kind to the unit's handler.
func (t *Thermostat) commandTable() map[CommandKind]commandHandler {
	return map[CommandKind]commandHandler{
		CommandSetMode: t.setMode,
		CommandSetFan:  t.setFan,
		CommandSetHigh: t.setHigh,
		CommandSetLow:  t.setLow,
		CommandQuery:   t.query,
		CommandBeep:    t.beep,
	}
}
