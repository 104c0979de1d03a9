package todo

import (
	"math"
	"testing"
)

func TestIsValidText(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want bool
	}{
		{"plain", "Buy milk", true},
		{"padded", "  Buy milk  ", true},
		{"empty", "", false},
		{"spaces", "   ", false},
		{"tabs and newlines", "\t\n", false},
		{"nil", nil, false},
		{"number", float64(42), false},
		{"bool", true, false},
		{"object", map[string]interface{}{"text": "x"}, false},
		{"array", []interface{}{"x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidText(tt.in); got != tt.want {
				t.Errorf("IsValidText(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"nil", nil, false},
		{"zero", float64(0), false},
		{"nan", math.NaN(), false},
		{"one", float64(1), true},
		{"negative", float64(-3), true},
		{"empty string", "", false},
		{"string false", "false", true},
		{"empty object", map[string]interface{}{}, true},
		{"empty array", []interface{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.in); got != tt.want {
				t.Errorf("Truthy(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
