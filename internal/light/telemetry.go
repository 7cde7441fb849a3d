package light

import (
	"context"
	"time"

	"github.com/prysmalight/prysma-core/internal/infrastructure/influxdb"
)

// TelemetrySink receives every state transition. *influxdb.Client satisfies it.
type TelemetrySink interface {
	WriteLightState(s influxdb.LightStateSample)
}

// stateRecorder writes transitions to the history store and the telemetry
// sink. Both are optional and their failures are only logged.
type stateRecorder struct {
	history HistoryRepository
	sink    TelemetrySink
	logger  Logger
}

func (r stateRecorder) record(ctx context.Context, s LightState, source string) {
	if r.history != nil {
		if err := r.history.RecordStateChange(ctx, s, source); err != nil {
			r.logger.Warn("recording light state history failed",
				"light_id", s.ID,
				"source", source,
				"error", err,
			)
		}
	}
	if r.sink != nil {
		r.sink.WriteLightState(influxdb.LightStateSample{
			LightID:    s.ID,
			Source:     source,
			Connected:  s.Connected,
			On:         s.On,
			Brightness: s.Brightness,
			Color:      s.Color,
			Effect:     s.Effect,
			Speed:      s.Speed,
			Time:       time.Now().UTC(),
		})
	}
}
