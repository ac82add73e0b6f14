package nest

import "testing"

func TestAddress(t *testing.T) {
	tests := []struct {
		serial string
		want   string
	}{
		{"09AA01AC4316003F", "09aa01ac431600"},
		{"09AA-01AC_4316003F", "09aa01ac4316"},
		{"09aa01ac43", "09aa01ac43"},
		{"ABC-DEF", "abcdef"},
		{"", ""},
		// Separators after the first 14 characters never reach the address.
		{"0123456789ABCD-EF", "0123456789abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.serial, func(t *testing.T) {
			if got := Address(tt.serial); got != tt.want {
				t.Errorf("Address(%q) = %q, want %q", tt.serial, got, tt.want)
			}
		})
	}
}

func TestAddress_Collision(t *testing.T) {
	// Serials sharing their first 14 characters map to the same address.
	a := Address("09AA01AC43160011")
	b := Address("09AA01AC43160099")
	if a != b {
		t.Errorf("Address() = %q and %q, want equal", a, b)
	}
}

func TestAddress_Deterministic(t *testing.T) {
	serial := "09AA-01AC_4316004B"
	if Address(serial) != Address(serial) {
		t.Error("Address() is not deterministic")
	}
}
