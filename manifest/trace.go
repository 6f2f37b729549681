package manifest

import "sync"

// Trace records the order in which entry callbacks ran.
type Trace struct {
	mu    sync.Mutex
	order []Entry
}

// Init is an InitFunc whose callbacks append their entry to the trace.
func (t *Trace) Init(e Entry) func() {
	return func() {
		t.mu.Lock()
		t.order = append(t.order, e)
		t.mu.Unlock()
	}
}

func (t *Trace) Order() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.order...)
}

// Waiting returns the entries of m whose callbacks have not run.
func (t *Trace) Waiting(m *Manifest) []Entry {
	t.mu.Lock()
	ran := make(map[Entry]int, len(t.order))
	for _, e := range t.order {
		ran[e]++
	}
	t.mu.Unlock()

	var out []Entry
	for _, e := range m.Bundles {
		if ran[e] > 0 {
			ran[e]--
			continue
		}
		out = append(out, e)
	}
	return out
}
