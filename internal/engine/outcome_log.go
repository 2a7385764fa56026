package engine

import "sync"

// OutcomeLog collects failure messages from concurrently running tasks.
// Entries keep append order.
type OutcomeLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *OutcomeLog) Append(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}

// Entries returns a copy of the collected messages.
func (l *OutcomeLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *OutcomeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
