package finding

import (
	"sort"
	"sync"
)

// Ledger is a goroutine-safe append-only sink for vulnerabilities.
// Probes append concurrently; the orchestrator reads the sorted view
// once the run is aggregated.
type Ledger struct {
	mu    sync.Mutex
	vulns []Vulnerability
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Add appends vulnerabilities to the ledger.
func (l *Ledger) Add(vulns ...Vulnerability) {
	if len(vulns) == 0 {
		return
	}
	l.mu.Lock()
	l.vulns = append(l.vulns, vulns...)
	l.mu.Unlock()
}

// Len returns the number of recorded vulnerabilities.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.vulns)
}

// Sorted returns a copy of the ledger stable-sorted by severity rank
// descending, preserving insertion order within equal severities.
func (l *Ledger) Sorted() []Vulnerability {
	l.mu.Lock()
	out := make([]Vulnerability, len(l.vulns))
	copy(out, l.vulns)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// Summary holds aggregate counts over a ledger. It is derived data,
// recomputed on every call.
type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
}

// Summarize computes counts by severity and type.
func (l *Ledger) Summarize() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		Total:      len(l.vulns),
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for _, v := range l.vulns {
		s.BySeverity[v.Severity.String()]++
		s.ByType[v.Type]++
	}
	return s
}
