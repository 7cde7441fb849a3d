package light

import (
	"slices"
	"time"
)

// Default state for a newly added light.
const (
	DefaultColor      = "#FFFFFF"
	DefaultBrightness = 100
	DefaultEffect     = "None"
	DefaultSpeed      = 4
)

// Field bounds shared by inputs and wire payloads.
const (
	MinBrightness = 0
	MaxBrightness = 100
	MinSpeed      = 1
	MaxSpeed      = 7
	MaxNameLength = 255
)

// Light is an addressable LED controller and its metadata.
// The hardware descriptor fields are filled in from device config messages.
type Light struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Pos              int      `json:"pos"`
	SupportedEffects []string `json:"supportedEffects,omitempty"`
	IPAddress        string   `json:"ipAddress,omitempty"`
	MACAddress       string   `json:"macAddress,omitempty"`
	NumLEDs          int      `json:"numLeds,omitempty"`
	UDPPort          int      `json:"udpPort,omitempty"`
	Version          string   `json:"version,omitempty"`
	Hardware         string   `json:"hardware,omitempty"`
	ColorOrder       string   `json:"colorOrder,omitempty"`
	StripType        string   `json:"stripType,omitempty"`

	State LightState `json:"state"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with l.
func (l *Light) Clone() *Light {
	if l == nil {
		return nil
	}
	c := *l
	c.SupportedEffects = slices.Clone(l.SupportedEffects)
	return &c
}

// LightState is the runtime state of a light. Its ID equals the owning light's ID.
type LightState struct {
	ID         string `json:"id"`
	Connected  bool   `json:"connected"`
	On         bool   `json:"on"`
	Brightness int    `json:"brightness"`
	Color      string `json:"color"`
	Effect     string `json:"effect"`
	Speed      int    `json:"speed"`
}

// DefaultState returns the state stored for a light that has never reported.
func DefaultState(id string) LightState {
	return LightState{
		ID:         id,
		Connected:  false,
		On:         false,
		Brightness: DefaultBrightness,
		Color:      DefaultColor,
		Effect:     DefaultEffect,
		Speed:      DefaultSpeed,
	}
}

// LightInput carries metadata changes. Nil fields are left untouched.
type LightInput struct {
	Name *string `json:"name,omitempty"`
	Pos  *int    `json:"pos,omitempty"`
}

// Validate checks field constraints. A zero Pos means "assign automatically"
// when adding and is rejected when updating.
func (in LightInput) Validate(updating bool) []Violation {
	var vs []Violation
	if in.Name != nil {
		if n := len(*in.Name); n < 1 || n > MaxNameLength {
			vs = append(vs, Violation{Field: "name", Message: "must be between 1 and 255 characters"})
		}
	}
	if in.Pos != nil {
		switch {
		case *in.Pos < 0:
			vs = append(vs, Violation{Field: "pos", Message: "must not be negative"})
		case *in.Pos == 0 && updating:
			vs = append(vs, Violation{Field: "pos", Message: "must be greater than 0"})
		}
	}
	return vs
}

// LightStateInput is a desired-state change. Nil fields are left untouched.
type LightStateInput struct {
	On         *bool   `json:"on,omitempty"`
	Brightness *int    `json:"brightness,omitempty"`
	Color      *string `json:"color,omitempty"`
	Effect     *string `json:"effect,omitempty"`
	Speed      *int    `json:"speed,omitempty"`
}

// IsEmpty reports whether the input changes nothing.
func (in LightStateInput) IsEmpty() bool {
	return in.On == nil && in.Brightness == nil && in.Color == nil && in.Effect == nil && in.Speed == nil
}

// Apply merges the input into s and returns the result.
// Colors keep the caller's spelling; unparseable colors become white,
// matching what the device is told.
func (s LightState) Apply(in LightStateInput) LightState {
	if in.On != nil {
		s.On = *in.On
	}
	if in.Brightness != nil {
		s.Brightness = *in.Brightness
	}
	if in.Color != nil {
		s.Color = NormalizeHex(*in.Color)
	}
	if in.Effect != nil {
		s.Effect = *in.Effect
	}
	if in.Speed != nil {
		s.Speed = *in.Speed
	}
	return s
}

// ApplyTelemetry merges a device state report into s. Unset fields are ignored.
func (s LightState) ApplyTelemetry(p *StatePayload) LightState {
	if p.State != nil {
		s.On = *p.State == PowerOn
	}
	if p.Brightness != nil {
		s.Brightness = *p.Brightness
	}
	if p.Color != nil {
		s.Color = RGBToHex(*p.Color)
	}
	if p.Effect != nil {
		s.Effect = *p.Effect
	}
	if p.Speed != nil {
		s.Speed = *p.Speed
	}
	return s
}

// ApplyConfig copies the hardware descriptor from a config or discovery reply.
func (l *Light) ApplyConfig(p *ConfigPayload) {
	l.Version = p.Version
	l.Hardware = p.Hardware
	l.ColorOrder = p.ColorOrder
	l.StripType = p.StripType
	l.IPAddress = p.IPAddress
	l.MACAddress = p.MACAddress
	l.NumLEDs = p.NumLEDs
	l.UDPPort = p.UDPPort
}
