package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/tyreaid/roadaid/core/metrics"
	"github.com/tyreaid/roadaid/infra/logger"
)

// InfluxSink writes dispatch engine events to an InfluxDB instance using the
// official client. It is intended for archival series; real-time counters
// belong to the Prometheus sink.
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

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordAcceptOutcome writes each arbitrated attempt as a point.
func (s *InfluxSink) RecordAcceptOutcome(outcomes []coremetrics.AcceptOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range outcomes {
		p := write.NewPointWithMeasurement("accept_attempt").
			AddTag("request_id", o.RequestID).
			AddTag("provider_id", o.ProviderID).
			AddTag("outcome", o.Outcome).
			AddTag("component", "dispatch_manager").
			AddField("latency_ms", o.Latency.Seconds()*1000).
			SetTime(o.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequestCreated persists a submission event.
func (s *InfluxSink) RecordRequestCreated(ev coremetrics.RequestCreatedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("request_created").
		AddTag("request_id", ev.RequestID).
		AddTag("priority", ev.Priority.String()).
		AddTag("component", "dispatch_manager").
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRequestClosed persists a closure event with the time the request
// spent open.
func (s *InfluxSink) RecordRequestClosed(ev coremetrics.RequestClosedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("request_closed").
		AddTag("request_id", ev.RequestID).
		AddTag("status", ev.Status.String()).
		AddTag("expired", strconv.FormatBool(ev.Expired)).
		AddTag("component", "dispatch_manager").
		AddField("open_seconds", ev.Open.Seconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPendingSize persists the pending set size.
func (s *InfluxSink) RecordPendingSize(size int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("pending_requests").
		AddTag("component", "dispatch_manager").
		AddField("size", size).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}
