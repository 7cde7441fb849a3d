package light

import (
	"net"
	"regexp"
	"strings"
)

// Power states on the wire.
const (
	PowerOn  = "ON"
	PowerOff = "OFF"
)

// Connection values reported on the connected topic.
const (
	ConnectionOffline = "0"
	ConnectionOnline  = "2"
)

var macPattern = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)

// PublishPayload is a command sent to a device.
type PublishPayload struct {
	MutationID uint32  `json:"mutationId"`
	Name       string  `json:"name"`
	State      *string `json:"state,omitempty"`
	Color      *RGB    `json:"color,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
	Effect     *string `json:"effect,omitempty"`
	Speed      *int    `json:"speed,omitempty"`
}

// Validate returns every violated constraint.
func (p *PublishPayload) Validate() []Violation {
	vs := validateName("name", p.Name)
	vs = append(vs, validateStateFields(p.State, p.Color, p.Brightness, p.Speed)...)
	return vs
}

// StatePayload is a device state report. MutationID echoes the command
// that caused it, when the firmware supports it.
type StatePayload struct {
	MutationID *uint32 `json:"mutationId,omitempty"`
	Name       string  `json:"name"`
	State      *string `json:"state,omitempty"`
	Color      *RGB    `json:"color,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
	Effect     *string `json:"effect,omitempty"`
	Speed      *int    `json:"speed,omitempty"`
}

// Validate returns every violated constraint.
func (p *StatePayload) Validate() []Violation {
	vs := validateName("name", p.Name)
	vs = append(vs, validateStateFields(p.State, p.Color, p.Brightness, p.Speed)...)
	return vs
}

// ConnectionPayload reports whether the device itself is online.
type ConnectionPayload struct {
	Name       string `json:"name"`
	Connection string `json:"connection"`
}

// Online reports whether the device announced itself as connected.
func (p *ConnectionPayload) Online() bool {
	return p.Connection == ConnectionOnline
}

// Validate returns every violated constraint.
func (p *ConnectionPayload) Validate() []Violation {
	vs := validateName("name", p.Name)
	if p.Connection != ConnectionOffline && p.Connection != ConnectionOnline {
		vs = append(vs, Violation{Field: "connection", Message: `must be one of "0", "2"`})
	}
	return vs
}

// ConfigPayload is the hardware descriptor published by a device on its
// config topic and in discovery replies.
type ConfigPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Hardware   string `json:"hardware"`
	ColorOrder string `json:"colorOrder"`
	StripType  string `json:"stripType"`
	IPAddress  string `json:"ipAddress"`
	MACAddress string `json:"macAddress"`
	NumLEDs    int    `json:"numLeds"`
	UDPPort    int    `json:"udpPort"`
}

// Validate returns every violated constraint.
func (p *ConfigPayload) Validate() []Violation {
	vs := validateName("id", p.ID)
	vs = append(vs, validateName("name", p.Name)...)
	for _, f := range []struct{ field, value string }{
		{"version", p.Version},
		{"hardware", p.Hardware},
		{"colorOrder", p.ColorOrder},
		{"stripType", p.StripType},
	} {
		if f.value == "" {
			vs = append(vs, Violation{Field: f.field, Message: "is required"})
		}
	}
	if !isIPv4(p.IPAddress) {
		vs = append(vs, Violation{Field: "ipAddress", Message: "must be an IPv4 address"})
	}
	if !macPattern.MatchString(p.MACAddress) {
		vs = append(vs, Violation{Field: "macAddress", Message: "must be a MAC address"})
	}
	if p.NumLEDs < 0 {
		vs = append(vs, Violation{Field: "numLeds", Message: "must not be negative"})
	}
	if p.UDPPort < 0 || p.UDPPort > 65535 {
		vs = append(vs, Violation{Field: "udpPort", Message: "must be a port number"})
	}
	return vs
}

// EffectListPayload lists the effects a device can run.
type EffectListPayload struct {
	Name       string   `json:"name"`
	EffectList []string `json:"effectList"`
}

// Validate returns every violated constraint.
func (p *EffectListPayload) Validate() []Violation {
	vs := validateName("name", p.Name)
	if p.EffectList == nil {
		vs = append(vs, Violation{Field: "effectList", Message: "is required"})
	}
	for _, e := range p.EffectList {
		if e == "" {
			vs = append(vs, Violation{Field: "effectList", Message: "must not contain empty names"})
			break
		}
	}
	return vs
}

func validateName(field, v string) []Violation {
	if n := len(v); n < 1 || n > MaxNameLength {
		return []Violation{{Field: field, Message: "must be between 1 and 255 characters"}}
	}
	return nil
}

func validateStateFields(state *string, color *RGB, brightness, speed *int) []Violation {
	var vs []Violation
	if state != nil && *state != PowerOn && *state != PowerOff {
		vs = append(vs, Violation{Field: "state", Message: "must be one of ON, OFF"})
	}
	if color != nil {
		vs = append(vs, color.Validate("color")...)
	}
	if brightness != nil && (*brightness < MinBrightness || *brightness > MaxBrightness) {
		vs = append(vs, Violation{Field: "brightness", Message: "must be between 0 and 100"})
	}
	if speed != nil && (*speed < MinSpeed || *speed > MaxSpeed) {
		vs = append(vs, Violation{Field: "speed", Message: "must be between 1 and 7"})
	}
	return vs
}

// isIPv4 accepts dotted-quad addresses only.
func isIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
