package model

import (
	"testing"
)

func TestNewLocation(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z int32
		want    Location
	}{
		{
			name: "zero values",
			want: Location{},
		},
		{
			name: "positive coordinates",
			x:    100, y: 200, z: 300,
			want: Location{X: 100, Y: 200, Z: 300},
		},
		{
			name: "negative coordinates",
			x:    -100, y: -200, z: -300,
			want: Location{X: -100, Y: -200, Z: -300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLocation(tt.x, tt.y, tt.z)
			if got != tt.want {
				t.Errorf("NewLocation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocation_Offset(t *testing.T) {
	loc := NewLocation(10, 0, 10)
	got := loc.Offset(10, 0, -20)

	if got != NewLocation(20, 0, -10) {
		t.Errorf("Offset() = %+v, want {20 0 -10}", got)
	}
	// Исходный Location не меняется (value type)
	if loc != NewLocation(10, 0, 10) {
		t.Errorf("Offset() mutated receiver: %+v", loc)
	}
}

func TestLocation_String(t *testing.T) {
	if got := NewLocation(1, -2, 3).String(); got != "1,-2,3" {
		t.Errorf("String() = %q, want %q", got, "1,-2,3")
	}
}
