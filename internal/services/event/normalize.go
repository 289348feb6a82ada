package event

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EventToPoint normalizes a CommonEvent into a *write.Point for InfluxDB.
func EventToPoint(evt CommonEvent) *write.Point {
	// tags (strings only)
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       evt.Severity,
	}
	if evt.RegionID != "" {
		tags["region_id"] = evt.RegionID
	}

	fields := map[string]interface{}{}
	for k, v := range evt.Fields {
		fields[k] = v
	}

	// a point needs at least one field; the monotone counter also makes
	// event rates trivially aggregatable in Flux
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	return influxdb2.NewPoint("system_event", tags, fields, evt.Timestamp)
}
