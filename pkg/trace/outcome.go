package trace

import (
	"strings"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// Outcome is the five-fact answer of a trace query. The zero value means
// success: both tracepoints exist, final is always reached and no unbounded
// loop lies on the way.
type Outcome struct {
	StartNotFound    bool `json:"start_not_found"`
	FinalNotFound    bool `json:"final_not_found"`
	FinalUnreachable bool `json:"final_unreachable"`
	LoopFound        bool `json:"loop_found"`
	FinalAvoidable   bool `json:"final_avoidable"`
}

// Bits of the outcome mask.
const (
	BitStartNotFound uint8 = 1 << iota
	BitFinalNotFound
	BitFinalUnreachable
	BitLoopFound
	BitFinalAvoidable
)

// Mask encodes the outcome as a 5-bit mask. Zero means success.
func (o Outcome) Mask() uint8 {
	var m uint8
	if o.StartNotFound {
		m |= BitStartNotFound
	}
	if o.FinalNotFound {
		m |= BitFinalNotFound
	}
	if o.FinalUnreachable {
		m |= BitFinalUnreachable
	}
	if o.LoopFound {
		m |= BitLoopFound
	}
	if o.FinalAvoidable {
		m |= BitFinalAvoidable
	}
	return m
}

// OutcomeFromMask decodes a mask produced by Mask. Bits above the fifth are
// ignored.
func OutcomeFromMask(m uint8) Outcome {
	return Outcome{
		StartNotFound:    m&BitStartNotFound != 0,
		FinalNotFound:    m&BitFinalNotFound != 0,
		FinalUnreachable: m&BitFinalUnreachable != 0,
		LoopFound:        m&BitLoopFound != 0,
		FinalAvoidable:   m&BitFinalAvoidable != 0,
	}
}

// Success reports whether no fact is set.
func (o Outcome) Success() bool {
	return o.Mask() == 0
}

// Facts lists the names of the facts that are set, in mask bit order.
func (o Outcome) Facts() []string {
	var facts []string
	if o.StartNotFound {
		facts = append(facts, "start_not_found")
	}
	if o.FinalNotFound {
		facts = append(facts, "final_not_found")
	}
	if o.FinalUnreachable {
		facts = append(facts, "final_unreachable")
	}
	if o.LoopFound {
		facts = append(facts, "loop_found")
	}
	if o.FinalAvoidable {
		facts = append(facts, "final_avoidable")
	}
	return facts
}

func (o Outcome) String() string {
	if o.Success() {
		return "ok"
	}
	return strings.Join(o.Facts(), ",")
}

// Classify turns the status of the start vertex into an outcome.
func Classify(start Status) Outcome {
	return Outcome{
		FinalUnreachable: !start.ReachedFinal,
		LoopFound:        start.LoopOnTrace,
		FinalAvoidable:   start.AvoidedFinal,
	}
}

// Analyze resolves both tracepoint names and runs the search. A missing label
// is reported in the outcome and the search is skipped.
func Analyze(g *graph.Graph, labels graph.Labels, bounded *loops.Set, startName, finalName string) Outcome {
	start, startOK := labels.VertexOf(startName)
	final, finalOK := labels.VertexOf(finalName)
	if !startOK || !finalOK {
		return Outcome{StartNotFound: !startOK, FinalNotFound: !finalOK}
	}

	res := NewAnalyzer(g, bounded).Run(start, final)
	return Classify(res.Status(start))
}
