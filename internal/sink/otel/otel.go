// Package otel exports classified events as OpenTelemetry log records and
// counters.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/blightveil/sclog/pkg/sclog/event"
)

const scopeName = "github.com/blightveil/sclog"

// LogConsumer emits one log record per event, with the event type as body.
type LogConsumer struct {
	logger otellog.Logger
	now    func() time.Time
}

// NewLogConsumer returns a consumer writing to logger, typically
// Providers.Logger().
func NewLogConsumer(logger otellog.Logger) *LogConsumer {
	return &LogConsumer{logger: logger, now: time.Now}
}

// Name identifies the consumer in dispatcher logs.
func (c *LogConsumer) Name() string { return "otel-log" }

// Consume emits ev as a log record. Events without a timestamp are stamped
// with the observed time.
func (c *LogConsumer) Consume(ctx context.Context, ev event.Event) error {
	now := c.now()
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = now
	}

	var r otellog.Record
	r.SetTimestamp(ts)
	r.SetObservedTimestamp(now)
	r.SetSeverity(otellog.SeverityInfo)
	r.SetBody(otellog.StringValue(string(ev.Type)))
	r.AddAttributes(recordAttributes(ev)...)
	c.logger.Emit(ctx, r)
	return nil
}

func recordAttributes(ev event.Event) []otellog.KeyValue {
	var attrs []otellog.KeyValue
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, otellog.String(key, value))
		}
	}

	add("zone", ev.Zone)
	add("vehicle", ev.Vehicle)
	add("vehicle_id", ev.VehicleID)
	add("destroyer", ev.Destroyer)
	add("destroyer_id", ev.DestroyerID)
	add("cause", ev.Cause)
	if ev.Type == event.VehicleDestroyed {
		attrs = append(attrs, otellog.Int("destroy_level", ev.DestroyLevel))
	}
	add("victim", ev.Victim)
	add("victim_id", ev.VictimID)
	add("killer", ev.Killer)
	add("killer_id", ev.KillerID)
	add("weapon", ev.Weapon)
	add("damage_type", ev.DamageType)
	add("entity", ev.Entity)
	add("jump_drive_state", string(ev.JumpDriveState))
	add("structure_id", ev.StructureID)
	add("carriage", ev.Carriage)
	if ev.Type == event.DoorStateChanged {
		add("door_state", ev.DoorState.String())
	}
	add("alert_kind", string(ev.AlertKind))
	add("raw_line", ev.RawLine)
	return attrs
}

// MetricConsumer counts events by type and zone alerts by kind.
type MetricConsumer struct {
	events metric.Int64Counter
	alerts metric.Int64Counter
}

// NewMetricConsumer creates the event and alert counters on mp.
func NewMetricConsumer(mp metric.MeterProvider) (*MetricConsumer, error) {
	meter := mp.Meter(scopeName)

	events, err := meter.Int64Counter("sclog.events",
		metric.WithDescription("Classified Game.log events by type."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	alerts, err := meter.Int64Counter("sclog.zone_alerts",
		metric.WithDescription("Contested zone alerts by structure role."),
		metric.WithUnit("{alert}"))
	if err != nil {
		return nil, fmt.Errorf("create alerts counter: %w", err)
	}
	return &MetricConsumer{events: events, alerts: alerts}, nil
}

// Name identifies the consumer in dispatcher logs.
func (c *MetricConsumer) Name() string { return "otel-metric" }

// Consume increments the event counter and, for zone alerts, the alert
// counter.
func (c *MetricConsumer) Consume(ctx context.Context, ev event.Event) error {
	c.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", string(ev.Type))))
	if ev.Type == event.ZoneAlert {
		c.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("alert.kind", string(ev.AlertKind))))
	}
	return nil
}
