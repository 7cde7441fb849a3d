package light

import (
	"strings"
	"testing"
)

func TestHexToRGB(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
	}{
		{"#00FF00", RGB{0, 255, 0}},
		{"00ff00", RGB{0, 255, 0}},
		{"#1a2B3c", RGB{26, 43, 60}},
		{"#000000", RGB{0, 0, 0}},
		{"", White},
		{"#FFF", White},
		{"#GGGGGG", White},
		{"##00FF00", White},
		{"#00FF00 ", White},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := HexToRGB(tt.in); got != tt.want {
				t.Errorf("HexToRGB(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, h := range []string{"#000000", "#ffffff", "#FFFFFF", "#00FF00", "#1a2B3c", "#7f7f80"} {
		got := RGBToHex(HexToRGB(h))
		if !strings.EqualFold(got, h) {
			t.Errorf("RGBToHex(HexToRGB(%q)) = %q", h, got)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	tests := map[string]string{
		"#00FF00": "#00FF00",
		"00FF00":  "#00FF00",
		"abcdef":  "#abcdef",
		"red":     DefaultColor,
		"":        DefaultColor,
	}
	for in, want := range tests {
		if got := NormalizeHex(in); got != want {
			t.Errorf("NormalizeHex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRGBValidate(t *testing.T) {
	if vs := (RGB{0, 128, 255}).Validate("color"); len(vs) != 0 {
		t.Errorf("valid color produced violations %v", vs)
	}
	vs := (RGB{-1, 256, 10}).Validate("color")
	if len(vs) != 2 || vs[0].Field != "color.r" || vs[1].Field != "color.g" {
		t.Errorf("Validate() = %v, want color.r and color.g", vs)
	}
}
