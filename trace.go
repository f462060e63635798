package graphground

import (
	"context"
	"log/slog"
)

// TraceKind identifies a point in the multi-component grounding path.
type TraceKind int

const (
	// TraceComponentStart is emitted before a component is searched.
	TraceComponentStart TraceKind = iota
	// TraceComponentGrounded is emitted after a component was searched.
	TraceComponentGrounded
	// TraceComponentEmpty is emitted when a mandatory component has no grounding.
	TraceComponentEmpty
	// TraceOptionalPresent is emitted when a disconnected pure-optional
	// component matched and the search is abandoned.
	TraceOptionalPresent
	// TraceCombinationAccepted is emitted when the callback accepted a combination.
	TraceCombinationAccepted
	// TraceCombinationRejected is emitted when a combination was rejected.
	TraceCombinationRejected
)

var traceKindNames = map[TraceKind]string{
	TraceComponentStart:      "component_start",
	TraceComponentGrounded:   "component_grounded",
	TraceComponentEmpty:      "component_empty",
	TraceOptionalPresent:     "optional_present",
	TraceCombinationAccepted: "combination_accepted",
	TraceCombinationRejected: "combination_rejected",
}

func (k TraceKind) String() string {
	if s, ok := traceKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// TraceEvent describes one step of Matcher.Satisfy.
type TraceEvent struct {
	Kind       TraceKind
	Component  int // 1-based index of the component, when relevant
	Components int // total number of components
	Groundings int // groundings found for the component
	Vars       VarGrounding
	Reason     string // why a combination was rejected
}

// Tracer observes grounding without taking part in it.
type Tracer interface {
	Trace(ev TraceEvent)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(TraceEvent)

func (f TracerFunc) Trace(ev TraceEvent) { f(ev) }

// SlogTracer writes trace events to a structured logger at Debug level.
type SlogTracer struct {
	Log *slog.Logger
}

func (t SlogTracer) Trace(ev TraceEvent) {
	if t.Log == nil || !t.Log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{"event", ev.Kind.String()}
	if ev.Components > 0 {
		attrs = append(attrs, "component", ev.Component, "components", ev.Components)
	}
	switch ev.Kind {
	case TraceComponentGrounded:
		attrs = append(attrs, "groundings", ev.Groundings)
	case TraceCombinationAccepted, TraceCombinationRejected:
		attrs = append(attrs, "vars", ev.Vars.String())
		if ev.Reason != "" {
			attrs = append(attrs, "reason", ev.Reason)
		}
	}
	t.Log.Debug("grounding trace", attrs...)
}
