package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/cad/core/metrics"
	"github.com/kilianp07/cad/infra/logger"
)

// InfluxSink writes dispatch activity to an InfluxDB instance using the
// official client. It keeps a status history queryable per unit.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStatusTransition writes one unit_status point.
func (s *InfluxSink) RecordStatusTransition(ev coremetrics.StatusTransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("unit_status").
		AddTag("unit_id", ev.Unit.ID).
		AddTag("unit_kind", ev.Unit.Kind.String()).
		AddTag("to", directive(ev.To)).
		AddField("from", directive(ev.From)).
		AddField("status_id", ev.StatusID).
		AddField("callsign", ev.Callsign).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes one call_assignment point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("call_assignment").
		AddTag("call_id", ev.CallID).
		AddTag("unit_kind", ev.Unit.Kind.String()).
		AddTag("outcome", ev.Outcome).
		AddField("unit_id", ev.Unit.ID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordShift writes one duty_shift point.
func (s *InfluxSink) RecordShift(ev coremetrics.ShiftEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("duty_shift").
		AddTag("unit_id", ev.Unit.ID).
		AddTag("unit_kind", ev.Unit.Kind.String()).
		AddField("opened", ev.Opened).
		AddField("duration_s", ev.Duration.Seconds()).
		AddField("user_id", ev.UserID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }
