package telegram

import (
	"errors"
	"testing"
)

func TestParseGroupAddress(t *testing.T) {
	tests := []struct {
		in   string
		raw  uint16
		want string
	}{
		{"1/2/222", 0x0ADE, "1/2/222"},
		{"9/0/8", 0x4808, "9/0/8"},
		{"31/7/255", 0xFFFF, "31/7/255"},
		{"0/0/0", 0, "0/0/0"},
		{"1/2047", 0x0FFF, "1/7/255"},
		{"2782", 0x0ADE, "1/2/222"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ga, err := ParseGroupAddress(tt.in)
			if err != nil {
				t.Fatalf("ParseGroupAddress(%q) error = %v", tt.in, err)
			}
			if ga.Raw() != tt.raw {
				t.Errorf("Raw() = %#04x, want %#04x", ga.Raw(), tt.raw)
			}
			if ga.String() != tt.want {
				t.Errorf("String() = %q, want %q", ga.String(), tt.want)
			}
		})
	}

	for _, bad := range []string{"", "32/0/0", "1/8/0", "1/2/256", "1/2048", "a/b/c", "1/2/3/4", "65536"} {
		if _, err := ParseGroupAddress(bad); !errors.Is(err, ErrCouldNotParseAddress) {
			t.Errorf("ParseGroupAddress(%q) error = %v, want ErrCouldNotParseAddress", bad, err)
		}
	}
}

func TestGroupAddressFormat(t *testing.T) {
	ga := MustParseGroupAddress("1/2/222")
	if got := ga.Format(TwoLevel); got != "1/734" {
		t.Errorf("TwoLevel = %q", got)
	}
	if got := ga.Format(Free); got != "2782" {
		t.Errorf("Free = %q", got)
	}
}

func TestParseIndividualAddress(t *testing.T) {
	tests := []struct {
		in  string
		raw uint16
	}{
		{"1.1.89", 0x1159},
		{"15.15.255", 0xFFFF},
		{"1/2/3", 0x1203},
		{"4353", 0x1101},
	}
	for _, tt := range tests {
		ia, err := ParseIndividualAddress(tt.in)
		if err != nil {
			t.Fatalf("ParseIndividualAddress(%q) error = %v", tt.in, err)
		}
		if ia.Raw() != tt.raw {
			t.Errorf("ParseIndividualAddress(%q) = %#04x, want %#04x", tt.in, ia.Raw(), tt.raw)
		}
	}

	ia := IndividualAddress(0x1159)
	if ia.String() != "1.1.89" || ia.Area() != 1 || ia.Line() != 1 || ia.Device() != 89 || !ia.IsDevice() {
		t.Errorf("unexpected parts for %v", ia)
	}

	for _, bad := range []string{"", "16.0.0", "1.16.0", "1.1.256", "1.1", "1..1", "x.y.z"} {
		if _, err := ParseIndividualAddress(bad); !errors.Is(err, ErrCouldNotParseAddress) {
			t.Errorf("ParseIndividualAddress(%q) error = %v, want ErrCouldNotParseAddress", bad, err)
		}
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("1.1.1")
	if err != nil || a.IsGroup() {
		t.Errorf("ParseAddress(1.1.1) = %v, %v", a, err)
	}
	a, err = ParseAddress("1/1/1")
	if err != nil || !a.IsGroup() {
		t.Errorf("ParseAddress(1/1/1) = %v, %v", a, err)
	}
}
