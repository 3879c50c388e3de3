// Package instrument provides observability backends for the pulse
// reactive graph: Prometheus metrics and OpenTelemetry tracing, both
// plugged in through pulse.SetInstrumentation.
//
//	pulse.SetInstrumentation(instrument.Combine(
//	    instrument.Metrics(instrument.WithNamespace("myapp")),
//	    instrument.Tracing(),
//	))
package instrument
