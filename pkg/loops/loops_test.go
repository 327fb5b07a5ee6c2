package loops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-trace-query/pkg/graph"
)

func seq(vs ...int) []graph.Vertex {
	out := make([]graph.Vertex, len(vs))
	for i, v := range vs {
		out[i] = graph.Vertex(v)
	}
	return out
}

func TestIsRotation(t *testing.T) {
	tests := []struct {
		name      string
		candidate []graph.Vertex
		pattern   []graph.Vertex
		want      bool
	}{
		{"identical", seq(1, 2, 3), seq(1, 2, 3), true},
		{"shift by one", seq(1, 2, 3), seq(2, 3, 1), true},
		{"shift by two", seq(1, 2, 3), seq(3, 1, 2), true},
		{"reflection", seq(1, 2, 3), seq(3, 2, 1), false},
		{"length differs", seq(1, 2, 3), seq(1, 2), false},
		{"missing head", seq(1, 2, 3), seq(4, 1, 2), false},
		{"same set other order", seq(1, 2, 3, 4), seq(2, 1, 3, 4), false},
		{"self loop", seq(7), seq(7), true},
		{"different self loop", seq(7), seq(8), false},
		{"both empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRotation(tt.candidate, tt.pattern))
		})
	}
}

func TestIsRotationEveryShift(t *testing.T) {
	original := seq(4, 9, 2, 7, 5, 11)
	for k := range original {
		rotated := append(append([]graph.Vertex{}, original[k:]...), original[:k]...)
		assert.True(t, IsRotation(original, rotated), "shift %d", k)
		assert.True(t, IsRotation(rotated, original), "shift %d reversed roles", k)
	}
}

func TestSetContains(t *testing.T) {
	s := NewSet([][]graph.Vertex{seq(3, 4, 5), seq(8), nil})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(seq(4, 5, 3)))
	assert.True(t, s.Contains(seq(8)))
	assert.False(t, s.Contains(seq(5, 4, 3)))
	assert.False(t, s.Contains(seq(3, 4)))
	assert.False(t, s.Contains(nil))

	var empty *Set
	assert.False(t, empty.Contains(seq(1)))
	assert.Equal(t, 0, empty.Len())
}

func TestSetLoopsAreCopies(t *testing.T) {
	in := seq(1, 2)
	s := NewSet([][]graph.Vertex{in})
	in[0] = 9

	got := s.Loops()
	require.Len(t, got, 1)
	assert.Equal(t, seq(1, 2), got[0])

	got[0][1] = 9
	assert.True(t, s.Contains(seq(2, 1)))
}

func TestCycles(t *testing.T) {
	// 0 -> 1 (header), 1 -> 2 | 3, 2 -> 4, 3 -> 4, 4 -> 1, 1 -> 5 (exit)
	g, err := graph.FromEdges(6, map[graph.Vertex][]graph.Vertex{
		0: {1},
		1: {2, 3, 5},
		2: {4},
		3: {4},
		4: {1},
	}, nil)
	require.NoError(t, err)

	region := Region{Header: 1, Members: seq(2, 3, 4)}
	cycles := Cycles(g, region, 0)

	assert.Equal(t, [][]graph.Vertex{seq(1, 2, 4), seq(1, 3, 4)}, cycles)
	assert.Len(t, Cycles(g, region, 1), 1)

	s := CertifyRegions(g, []Region{region}, 0)
	assert.True(t, s.Contains(seq(4, 1, 3)))
	assert.False(t, s.Contains(seq(1, 2, 3)))
}

func TestCyclesSelfLoopAndNested(t *testing.T) {
	// outer header 0, inner header 1 with self loop, 1 -> 2 -> 0
	g, err := graph.FromEdges(3, map[graph.Vertex][]graph.Vertex{
		0: {1},
		1: {1, 2},
		2: {0},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]graph.Vertex{seq(1)}, Cycles(g, Region{Header: 1}, 0))
	assert.Equal(t, [][]graph.Vertex{seq(0, 1, 2)}, Cycles(g, Region{Header: 0, Members: seq(1, 2)}, 0))
}

func TestTripCount(t *testing.T) {
	w8 := Width{Bits: 8}
	w32 := Width{Bits: 32}
	u32 := Width{Bits: 32, Unsigned: true}

	tests := []struct {
		name               string
		start, bound, step int64
		op                 string
		width              Width
		want               int64
		ok                 bool
	}{
		{"up", 0, 10, 1, "<", Int64, 10, true},
		{"up by three", 0, 10, 3, "<", Int64, 4, true},
		{"up inclusive", 0, 10, 1, "<=", Int64, 11, true},
		{"down", 10, 0, -1, ">", Int64, 10, true},
		{"down inclusive", 10, 0, -4, ">=", Int64, 3, true},
		{"not equal", 0, 6, 2, "!=", Int64, 3, true},
		{"not equal overshoots", 0, 5, 2, "!=", Int64, 0, false},
		{"wrong direction", 0, 10, -1, "<", Int64, 0, false},
		{"never entered", 5, 0, 1, "<", Int64, 0, true},
		{"unsupported op", 0, 10, 1, "==", Int64, 0, false},
		{"zero step", 0, 10, 0, "<", Int64, 0, false},
		{"zero step not equal", 0, 10, 0, "!=", Int64, 0, false},
		{"inclusive max bound", 0, math.MaxInt64, 1, "<=", Int64, 0, false},
		{"inclusive min bound", 0, math.MinInt64, -1, ">=", Int64, 0, false},
		{"span overflows", math.MinInt64, math.MaxInt64, 1, "<", Int64, 0, false},
		{"span overflows down", math.MaxInt64, math.MinInt64, -1, ">", Int64, 0, false},
		{"step rounds past max", 0, math.MaxInt64, math.MaxInt64 - 1, "<", Int64, 0, false},
		{"large step fits", 0, math.MaxInt64 - 1, math.MaxInt64 / 2, "<", Int64, 2, true},
		{"min step", 0, -10, math.MinInt64, ">", Int64, 0, false},
		{"int32 inclusive max", 0, math.MaxInt32, 1, "<=", w32, 0, false},
		{"int32 exclusive max", 0, math.MaxInt32, 1, "<", w32, math.MaxInt32, true},
		{"int8 step overshoots", 0, 127, 2, "<", w8, 0, false},
		{"int8 fits", 0, 126, 2, "<", w8, 63, true},
		{"bound out of range", 0, 300, 1, "<", w8, 0, false},
		{"unsigned down to zero inclusive", 10, 0, -1, ">=", u32, 0, false},
		{"unsigned down to zero", 10, 0, -1, ">", u32, 10, true},
		{"unsigned negative start", -1, 10, 1, "<", u32, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TripCount(tt.start, tt.bound, tt.step, tt.op, tt.width)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCertified(t *testing.T) {
	tests := []struct {
		trips int64
		min   int
		want  bool
	}{
		{0, 0, false},
		{1, 0, false},
		{1, 1, false},
		{2, 0, true},
		{2, 2, true},
		{2, 3, false},
		{5, 3, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Certified(tt.trips, tt.min), "trips %d min %d", tt.trips, tt.min)
	}
}
