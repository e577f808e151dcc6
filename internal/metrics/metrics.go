// Package metrics wires the runtime's gas, command-loop, and Wasm-cache
// instrumentation into Prometheus collectors (SPEC_FULL.md §11 DOMAIN
// STACK: "github.com/prometheus/client_golang ... the teacher already
// depends on prometheus/client_golang (transitively via libp2p) and this
// wires it directly"). Every exported function is a thin wrapper over a
// package-level collector, matching the teacher's preference for
// package-level singletons over a threaded-through metrics object
// (internal/vm/gas.go's package-level GasTank constants, generalized to
// an instrumentation knob instead of a cost knob).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GasUsedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "empower1",
		Subsystem: "runtime",
		Name:      "gas_used_total",
		Help:      "Total gas charged across all executed commands.",
	})

	CommandsExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "empower1",
		Subsystem: "runtime",
		Name:      "commands_executed_total",
		Help:      "Commands executed, labeled by kind and exit code.",
	}, []string{"kind", "exit_code"})

	CommandLoopDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "empower1",
		Subsystem: "runtime",
		Name:      "command_loop_depth",
		Help:      "Current cross-contract call nesting depth.",
	})

	WasmCompileCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "empower1",
		Subsystem: "wasm",
		Name:      "compile_cache_hits_total",
		Help:      "Call executions that reused an already-compiled module.",
	})

	WasmCompileCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "empower1",
		Subsystem: "wasm",
		Name:      "compile_cache_misses_total",
		Help:      "Call executions that had to compile a module from stored bytes.",
	})

	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "empower1",
		Subsystem: "runtime",
		Name:      "transitions_total",
		Help:      "Transitions processed, labeled by version and whether pre-execution failed.",
	}, []string{"version", "pre_exec_error"})
)

func init() {
	prometheus.MustRegister(
		GasUsedTotal,
		CommandsExecutedTotal,
		CommandLoopDepth,
		WasmCompileCacheHits,
		WasmCompileCacheMisses,
		TransitionsTotal,
	)
}

// RecordCommand tallies one command's outcome (runtime/transition.go calls
// this once per CommandResult when projecting Outcome into a receipt).
func RecordCommand(kind, exitCode string, gasUsed uint64) {
	CommandsExecutedTotal.WithLabelValues(kind, exitCode).Inc()
	GasUsedTotal.Add(float64(gasUsed))
}

// SetCommandLoopDepth reports the current cross-contract call nesting depth
// (internal/execution's executeCall increments/decrements TransitionContext.CallDepth).
func SetCommandLoopDepth(depth int) {
	CommandLoopDepth.Set(float64(depth))
}

// RecordCacheHit/RecordCacheMiss tag a Call's module-cache lookup
// (internal/execution's executeCall consults internal/vm's ModuleCache).
func RecordCacheHit()  { WasmCompileCacheHits.Inc() }
func RecordCacheMiss() { WasmCompileCacheMisses.Inc() }

// RecordTransition tags one transition_v1/v2 invocation.
func RecordTransition(version string, preExecError bool) {
	label := "false"
	if preExecError {
		label = "true"
	}
	TransitionsTotal.WithLabelValues(version, label).Inc()
}
