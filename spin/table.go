package spin

// Table is the link RSSI matrix assembled from measurement packets.
type Table struct {
	n int
	// v[to*n+from] is the RSSI measured at node to+1 for node from+1.
	v []int8
}

// NewTable returns a table for nodes 1 to n with every link unknown.
func NewTable(n int) *Table {
	t := &Table{n: n, v: make([]int8, n*n)}
	for i := range t.v {
		t.v[i] = NoRSSI
	}
	return t
}

// Nodes returns the network size.
func (t *Table) Nodes() int { return t.n }

// Update stores the measurements carried by p. Entries beyond the table
// size are ignored.
func (t *Table) Update(p Packet) {
	to := int(p.TxID) - 1
	if to < 0 || to >= t.n {
		return
	}
	for from, rssi := range p.RSSI {
		if from >= t.n {
			break
		}
		if from == to {
			continue
		}
		t.v[to*t.n+from] = rssi
	}
}

// Link returns the RSSI measured at node to for frames sent by node from.
func (t *Table) Link(from, to int) (rssi int8, ok bool) {
	if from < 1 || to < 1 || from > t.n || to > t.n {
		return NoRSSI, false
	}
	rssi = t.v[(to-1)*t.n+from-1]
	return rssi, rssi != NoRSSI
}

// Pair returns the mean RSSI of both directions between a and b. If only
// one direction is known it is returned alone.
func (t *Table) Pair(a, b int) (rssi int8, ok bool) {
	ab, okab := t.Link(a, b)
	ba, okba := t.Link(b, a)
	switch {
	case okab && okba:
		return int8((int(ab) + int(ba)) / 2), true
	case okab:
		return ab, true
	case okba:
		return ba, true
	}
	return NoRSSI, false
}
