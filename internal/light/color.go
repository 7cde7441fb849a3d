package light

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hexColorPattern = regexp.MustCompile(`(?i)^#?([a-f\d]{2})([a-f\d]{2})([a-f\d]{2})$`)

// White is substituted for colors that cannot be parsed.
var White = RGB{R: 255, G: 255, B: 255}

// RGB is a color as the firmware expects it.
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Validate checks each component is in 0..255.
func (c RGB) Validate(field string) []Violation {
	var vs []Violation
	for _, comp := range []struct {
		name string
		v    int
	}{{"r", c.R}, {"g", c.G}, {"b", c.B}} {
		if comp.v < 0 || comp.v > 255 {
			vs = append(vs, Violation{Field: field + "." + comp.name, Message: "must be between 0 and 255"})
		}
	}
	return vs
}

// HexToRGB parses "#rrggbb" or "rrggbb" (any case). Anything else yields White.
func HexToRGB(hex string) RGB {
	m := hexColorPattern.FindStringSubmatch(hex)
	if m == nil {
		return White
	}
	// The pattern guarantees two hex digits per component.
	r, _ := strconv.ParseUint(m[1], 16, 8) //nolint:errcheck
	g, _ := strconv.ParseUint(m[2], 16, 8) //nolint:errcheck
	b, _ := strconv.ParseUint(m[3], 16, 8) //nolint:errcheck
	return RGB{R: int(r), G: int(g), B: int(b)}
}

// RGBToHex formats c as lowercase "#rrggbb".
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// IsHexColor reports whether s parses as a 6-digit hex color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// NormalizeHex prefixes a valid color with '#' and keeps its case.
// Invalid input becomes DefaultColor.
func NormalizeHex(s string) string {
	if !IsHexColor(s) {
		return DefaultColor
	}
	if strings.HasPrefix(s, "#") {
		return s
	}
	return "#" + s
}
