package pulse

// Instrumentation receives graph lifecycle events. Implementations live
// outside the core (see pkg/instrument for the Prometheus- and
// OpenTelemetry-backed ones); the default is a no-op.
//
// EffectRun and Flush wrap execution rather than merely observing it, so
// implementations can time the work or open a span around it. Wrappers
// must call run exactly once, even when recording a panic.
type Instrumentation interface {
	// SignalWrite is called once per Set/Update on any signal.
	SignalWrite()

	// MemoRecompute is called each time a memo's compute function runs.
	MemoRecompute()

	// EffectRun wraps one execution of an effect body.
	EffectRun(run func())

	// Flush wraps one drain of a goroutine's pending effect queue.
	Flush(run func())

	// OwnerDisposed is called once per owner disposal.
	OwnerDisposed()
}

type nopInstrumentation struct{}

func (nopInstrumentation) SignalWrite()         {}
func (nopInstrumentation) MemoRecompute()       {}
func (nopInstrumentation) EffectRun(run func()) { run() }
func (nopInstrumentation) Flush(run func())     { run() }
func (nopInstrumentation) OwnerDisposed()       {}

// instrumentation is the active hook. Like DebugMode it is configured at
// startup, before the graph is used, and never swapped mid-flight.
var instrumentation Instrumentation = nopInstrumentation{}

// SetInstrumentation installs the instrumentation hook. Passing nil
// restores the no-op default. Call it once at startup.
func SetInstrumentation(i Instrumentation) {
	if i == nil {
		instrumentation = nopInstrumentation{}
		return
	}
	instrumentation = i
}
