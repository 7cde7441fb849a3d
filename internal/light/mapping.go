package light

import "math/rand/v2"

// newMutationID returns a correlation id drawn uniformly from the uint32 range.
var newMutationID = rand.Uint32

// toPublishPayload maps a desired-state change onto the wire command for lightID.
// Unparseable colors are sent as white.
func toPublishPayload(lightID string, in LightStateInput, mutationID uint32) *PublishPayload {
	p := &PublishPayload{
		MutationID: mutationID,
		Name:       lightID,
		Brightness: in.Brightness,
		Effect:     in.Effect,
		Speed:      in.Speed,
	}
	if in.On != nil {
		state := PowerOff
		if *in.On {
			state = PowerOn
		}
		p.State = &state
	}
	if in.Color != nil {
		rgb := HexToRGB(*in.Color)
		p.Color = &rgb
	}
	return p
}
