// Package metrics defines interfaces and implementations for collecting
// dispatch metrics. Sinks like the Prometheus and Influx sinks in
// infra/metrics record accept outcomes, request creations and closures and
// can be combined with a multi sink. Optional recorder interfaces let a sink
// opt into additional event families without widening MetricsSink.
package metrics
