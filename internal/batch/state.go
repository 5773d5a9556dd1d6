// Package batch drives the fetch -> build -> query -> aggregate pipeline
// across a project set, isolating per-project failure and persisting one
// terminal unit result per project for resumability.
package batch

import "fmt"

// State names one step of the per-project pipeline. Each project moves
// through the states strictly in order; Done and Failed are terminal.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateBuilding    State = "building"
	StateQuerying    State = "querying"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// transitions is the full set of legal moves. Failed is reachable from every
// working state; Done only via building (skipped) or aggregating (created).
var transitions = map[State][]State{
	StatePending:     {StateFetching},
	StateFetching:    {StateBuilding, StateFailed},
	StateBuilding:    {StateQuerying, StateDone, StateFailed},
	StateQuerying:    {StateAggregating, StateFailed},
	StateAggregating: {StateDone, StateFailed},
}

// transition validates a state change, keeping the pipeline honest about the
// order of stages.
func transition(from, to State) (State, error) {
	for _, next := range transitions[from] {
		if next == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("illegal state transition %s -> %s", from, to)
}
