package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() carebook.MetricsSnapshot
	AuditDropped() uint64
}

// family is one observable counter; its members are told apart by the value of a
// single attribute.
type family struct {
	name    string
	unit    string
	help    string
	key     attribute.Key
	members []member
}

type member struct {
	id    carebook.MetricID
	value string
}

// histogramFamily exports a latency histogram as cumulative bucket gauges keyed by
// their "le" bound, plus a sample count.
type histogramFamily struct {
	id   carebook.MetricID
	name string
	help string
}

var families = []family{
	{
		name:    "carebook.pages.opened",
		unit:    "{page}",
		help:    "Per-request session pages opened.",
		members: []member{{id: carebook.MetricPageOpened}},
	},
	{
		name: "carebook.session.events",
		unit: "{event}",
		help: "Session lifecycle events by kind.",
		key:  "event",
		members: []member{
			{carebook.MetricSessionLogin, "login"},
			{carebook.MetricSessionLogout, "logout"},
			{carebook.MetricSessionHydrated, "hydrated"},
			{carebook.MetricSessionCleared, "cleared"},
			{carebook.MetricSessionPurged, "purged"},
			{carebook.MetricSessionPersistFailed, "persist_failed"},
			{carebook.MetricSessionStorageUnavailable, "storage_unavailable"},
			{carebook.MetricSessionRotated, "rotated"},
		},
	},
	{
		name: "carebook.guard.decisions",
		unit: "{decision}",
		help: "Route guard and shell outcomes.",
		key:  "outcome",
		members: []member{
			{carebook.MetricGuardAuthorized, "authorized"},
			{carebook.MetricGuardPending, "pending"},
			{carebook.MetricGuardRedirect, "redirect"},
			{carebook.MetricGuardSuppressed, "suppressed"},
			{carebook.MetricShellForward, "shell_forward"},
		},
	},
	{
		name: "carebook.api.events",
		unit: "{call}",
		help: "Remote API calls, failures, extra attempts and credential rejections.",
		key:  "kind",
		members: []member{
			{carebook.MetricAPICall, "call"},
			{carebook.MetricAPIFailure, "failure"},
			{carebook.MetricAPIRetry, "retry"},
			{carebook.MetricAPIUnauthorized, "unauthorized"},
		},
	},
}

var histogramFamilies = []histogramFamily{
	{id: carebook.MetricAPILatency, name: "carebook.api.latency", help: "Remote API call latency, retries included."},
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	members    []observedMember
}

type observedMember struct {
	id    carebook.MetricID
	attrs metric.ObserveOption
}

type observedHistogram struct {
	id      carebook.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter holds the callback registration; Close unregisters it.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []observedFamily
	histograms   []observedHistogram
	bounds       []metric.ObserveOption
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers observable instruments on meter that read from portal.
func NewOTelExporter(meter metric.Meter, portal *carebook.Portal) (*OTelExporter, error) {
	if portal == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, portal)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source: source,
		bounds: make([]metric.ObserveOption, len(internaldefs.HistogramBounds)),
	}
	for i, le := range internaldefs.HistogramBounds {
		exporter.bounds[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}

	var observables []metric.Observable

	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.help), metric.WithUnit(f.unit))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.name, err)
		}
		of := observedFamily{instrument: ins}
		for _, m := range f.members {
			om := observedMember{id: m.id}
			if f.key != "" {
				om.attrs = metric.WithAttributeSet(attribute.NewSet(f.key.String(m.value)))
			}
			of.members = append(of.members, om)
		}
		exporter.families = append(exporter.families, of)
		observables = append(observables, ins)
	}

	for _, h := range histogramFamilies {
		buckets, err := meter.Int64ObservableGauge(h.name+".bucket",
			metric.WithDescription(h.help+" Cumulative count per upper bound in seconds."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", h.name, err)
		}
		count, err := meter.Int64ObservableGauge(h.name+".count",
			metric.WithDescription(h.help+" Total sample count."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", h.name, err)
		}
		exporter.histograms = append(exporter.histograms, observedHistogram{id: h.id, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"carebook.audit.dropped",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, f := range e.families {
		for _, m := range f.members {
			v := int64(snapshot.Counters[m.id])
			if m.attrs == nil {
				observer.ObserveInt64(f.instrument, v)
				continue
			}
			observer.ObserveInt64(f.instrument, v, m.attrs)
		}
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, n := range cumulative {
			observer.ObserveInt64(h.buckets, int64(n), e.bounds[i])
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
