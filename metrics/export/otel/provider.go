package otel

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	otelglobal "go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/carebook"
)

// ScopeName is the instrumentation scope of every carebook instrument.
const ScopeName = "github.com/MrEthical07/carebook"

// LogExporter is an [sdkmetric.Exporter] writing each collection to a logrus logger,
// one entry per instrument.
type LogExporter struct {
	log logrus.FieldLogger
}

func NewLogExporter(log logrus.FieldLogger) *LogExporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogExporter{log: log}
}

func (e *LogExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (e *LogExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (e *LogExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			fields := logrus.Fields{"metric": m.Name}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				addPoints(fields, data.DataPoints)
			case metricdata.Gauge[int64]:
				addPoints(fields, data.DataPoints)
			default:
				continue
			}
			e.log.WithFields(fields).Info("otel metric")
		}
	}
	return nil
}

// addPoints keys each data point by its attribute values, or "value" when it has none.
func addPoints(fields logrus.Fields, points []metricdata.DataPoint[int64]) {
	for _, dp := range points {
		key := "value"
		if dp.Attributes.Len() > 0 {
			key = ""
			for _, kv := range dp.Attributes.ToSlice() {
				if key != "" {
					key += ","
				}
				key += string(kv.Key) + "=" + kv.Value.Emit()
			}
		}
		fields[key] = dp.Value
	}
}

func (e *LogExporter) ForceFlush(context.Context) error { return nil }

func (e *LogExporter) Shutdown(context.Context) error { return nil }

// Install builds an SDK meter provider that hands a collection to a [LogExporter] every
// interval, makes it the global provider and registers portal's instruments on it.
// The returned function unregisters the instruments and shuts the provider down, which
// flushes one final collection.
func Install(portal *carebook.Portal, log logrus.FieldLogger, interval time.Duration) (func(context.Context) error, error) {
	if interval <= 0 {
		return nil, errors.New("otel collection interval must be > 0")
	}

	reader := sdkmetric.NewPeriodicReader(NewLogExporter(log), sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otelglobal.SetMeterProvider(provider)

	exp, err := NewOTelExporter(otelglobal.Meter(ScopeName), portal)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	return func(ctx context.Context) error {
		// Collect once more before the callback goes away.
		flushErr := provider.ForceFlush(ctx)
		return errors.Join(flushErr, exp.Close(), provider.Shutdown(ctx))
	}, nil
}
