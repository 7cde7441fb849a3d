package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementLightState is the measurement holding light state samples.
const MeasurementLightState = "light_state"

// LightStateSample is one observed light state.
type LightStateSample struct {
	LightID    string
	Source     string // command, mqtt or disconnect
	Connected  bool
	On         bool
	Brightness int
	Color      string
	Effect     string
	Speed      int
	Time       time.Time
}

// WriteLightState queues a light_state point tagged by light and source.
func (c *Client) WriteLightState(s LightStateSample) {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.WritePointWithTime(MeasurementLightState,
		map[string]string{
			"light_id": s.LightID,
			"source":   s.Source,
		},
		map[string]interface{}{
			"connected":  s.Connected,
			"on":         s.On,
			"brightness": s.Brightness,
			"color":      s.Color,
			"effect":     s.Effect,
			"speed":      s.Speed,
		},
		ts,
	)
}

// WritePoint queues a point stamped with the current time.
//
//	client.WritePoint("mqtt_link",
//	    map[string]string{"broker": "localhost"},
//	    map[string]interface{}{"connected": true})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
