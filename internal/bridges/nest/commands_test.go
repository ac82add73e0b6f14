package nest

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCommandKind(t *testing.T) {
	tests := []struct {
		name    string
		want    CommandKind
		wantErr bool
	}{
		{"CLIMD", CommandSetMode, false},
		{"clifs", CommandSetFan, false},
		{"BRT", CommandSetHigh, false},
		{"CLISPC", CommandSetHigh, false},
		{" dim ", CommandSetLow, false},
		{"CLISPH", CommandSetLow, false},
		{"QUERY", CommandQuery, false},
		{"BEEP", CommandBeep, false},
		{"DON", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandKind(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCommand) {
					t.Errorf("error = %v, want ErrUnknownCommand", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseCommandKind(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *float64
		wantErr bool
	}{
		{"absent", "", nil, false},
		{"null", "null", nil, false},
		{"empty string", `""`, nil, false},
		{"blank string", `"  "`, nil, false},
		{"integer", "72", Float(72), false},
		{"fraction", "68.5", Float(68.5), false},
		{"negative", "-1", Float(-1), false},
		{"numeric string", `"74"`, Float(74), false},
		{"padded numeric string", `" 3 "`, Float(3), false},
		{"word", `"warm"`, nil, true},
		{"bool", "true", nil, true},
		{"object", `{"v":1}`, nil, true},
		{"broken json", `{`, nil, true},
		{"nan string", `"NaN"`, nil, true},
		{"inf string", `"Inf"`, nil, true},
		{"negative infinity string", `"-Infinity"`, nil, true},
		{"overflowing string", `"1e400"`, nil, true},
		{"overflowing number", "1e400", nil, true},
		{"large finite string", `"1e300"`, Float(1e300), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Errorf("error = %v, want ErrInvalidValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseValue(%s) = %v, want nil", tt.raw, *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("ParseValue(%s) = %v, want %v", tt.raw, got, *tt.want)
			}
		})
	}
}

func TestNewCommand(t *testing.T) {
	cmd, err := NewCommand("CLISPH", json.RawMessage(`"66"`))
	if err != nil {
		t.Fatalf("NewCommand() error = %v", err)
	}
	if cmd.Kind != CommandSetLow || cmd.Value == nil || *cmd.Value != 66 {
		t.Errorf("cmd = %+v", cmd)
	}

	if _, err := NewCommand("CLISPH", json.RawMessage(`"cold"`)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("error = %v, want ErrInvalidValue", err)
	}
	if _, err := NewCommand("NOPE", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestCommandKindString(t *testing.T) {
	if CommandSetHigh.String() != "set_high" || CommandBeep.String() != "beep" {
		t.Error("unexpected command names")
	}
	if CommandKind(42).String() != "command(42)" {
		t.Errorf("unknown kind = %s", CommandKind(42))
	}
}

func TestCommandTableCoversEveryKind(t *testing.T) {
	for _, kind := range commandNames {
		if _, ok := newThermostat(NodeInfo{}, nil, nil, nil).handlers[kind]; !ok {
			t.Errorf("no handler for %s", kind)
		}
	}
}
