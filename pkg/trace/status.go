// Package trace answers the tracepoint question on an interprocedural CFG:
// from the start marker, is the final marker reached, can it be avoided, and
// is there a loop on the way that nothing proves bounded.
package trace

// Color is the three-color DFS state of a vertex.
type Color uint8

const (
	White Color = iota // not visited
	Grey               // on the current DFS stack
	Black              // finished, status frozen
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Grey:
		return "grey"
	case Black:
		return "black"
	default:
		return "unknown"
	}
}

// Status summarizes everything reachable below a vertex. It is frozen once
// the vertex turns Black.
type Status struct {
	// ReachedFinal is set when some path from the vertex reaches the final
	// tracepoint.
	ReachedFinal bool `json:"reached_final"`

	// AvoidedFinal is set when some path ends in a dead end without passing
	// the final tracepoint.
	AvoidedFinal bool `json:"avoided_final"`

	// LoopOnTrace is set when an unbounded loop sits on a path that also
	// reaches the final tracepoint.
	LoopOnTrace bool `json:"loop_on_trace"`

	// RealLoop is set when an unbounded loop is reachable at all.
	RealLoop bool `json:"real_loop"`
}

// mergeReaching folds in a finished successor that reaches final.
func (s *Status) mergeReaching(to Status) {
	s.ReachedFinal = true
	s.AvoidedFinal = s.AvoidedFinal || to.AvoidedFinal
	s.LoopOnTrace = s.LoopOnTrace || to.LoopOnTrace
	s.RealLoop = s.RealLoop || to.RealLoop
}

// mergeAvoiding folds in a finished successor that never reaches final. Its
// loops are not on the trace, so LoopOnTrace is left alone.
func (s *Status) mergeAvoiding(to Status) {
	s.AvoidedFinal = s.AvoidedFinal || to.AvoidedFinal
	s.RealLoop = s.RealLoop || to.RealLoop
}
