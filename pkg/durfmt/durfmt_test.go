package durfmt

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0:00"},
		{"negative clamps", -5 * time.Second, "0:00"},
		{"seconds only", 9 * time.Second, "0:09"},
		{"typical track", 3*time.Minute + 45*time.Second, "3:45"},
		{"over an hour", time.Hour + 2*time.Minute + 9*time.Second, "1:02:09"},
		{"rounds subsecond", 3*time.Minute + 44*time.Second + 700*time.Millisecond, "3:45"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.d); got != tt.want {
				t.Errorf("String(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"3:45", 225 * time.Second, false},
		{"45", 45 * time.Second, false},
		{"1:02:09", time.Hour + 2*time.Minute + 9*time.Second, false},
		{" 0:30 ", 30 * time.Second, false},
		{"", 0, true},
		{"a:45", 0, true},
		{"-1:00", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	d := 225 * time.Second
	got, err := Parse(String(d))
	if err != nil {
		t.Fatal(err)
	}
	if got != d {
		t.Errorf("round trip = %v, want %v", got, d)
	}
}
