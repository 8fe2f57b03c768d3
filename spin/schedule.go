package spin

import "time"

// Schedule decides when a node transmits. Turns follow node IDs in order,
// wrapping from N back to 1. A node whose predecessors stay silent takes
// its turn anyway after one Timeout per silent predecessor, so the round
// survives nodes that are missing or lost a frame.
type Schedule struct {
	ID    int
	Nodes int
	// Timeout is the wait for a single missing turn.
	Timeout time.Duration
	last    int
	lastAt  time.Time
}

// NewSchedule returns the schedule of node id in a network of nodes, started at now.
func NewSchedule(id, nodes int, timeout time.Duration, now time.Time) *Schedule {
	return &Schedule{ID: id, Nodes: nodes, Timeout: timeout, lastAt: now}
}

// Heard records a transmission by node from.
func (s *Schedule) Heard(from int, now time.Time) {
	if from < 1 || from > s.Nodes {
		return
	}
	s.last = from
	s.lastAt = now
}

// Next returns the node whose turn follows the last transmission heard.
func (s *Schedule) Next() int {
	return s.last%s.Nodes + 1
}

// Due returns the time at which this node may transmit.
func (s *Schedule) Due() time.Time {
	gap := (s.ID - s.Next() + s.Nodes) % s.Nodes
	return s.lastAt.Add(time.Duration(gap) * s.Timeout)
}

// MyTurn reports whether this node should transmit at now.
func (s *Schedule) MyTurn(now time.Time) bool {
	return !now.Before(s.Due())
}
