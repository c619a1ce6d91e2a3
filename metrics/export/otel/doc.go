// Package otel provides OpenTelemetry metric bindings for carebook counters and the API
// latency histogram.
//
// [NewOTelExporter] groups the carebook counters into a few observable counters whose
// data points carry an attribute: session events by "event", guard outcomes by
// "outcome", API activity by "kind". The latency histogram becomes a bucket gauge keyed
// by "le" plus a count gauge. A single callback reads [carebook.Portal.MetricsSnapshot]
// on each collection cycle.
//
// [Install] wires the exporter to an SDK meter provider with a periodic reader and a
// logrus-backed [LogExporter], and makes that provider global.
package otel
