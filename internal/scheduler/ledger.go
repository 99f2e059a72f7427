package scheduler

// Ledger remembers which entries already fired on which day.
//
// It is owned by the polling goroutine and is not safe for concurrent use.
type Ledger struct {
	fired map[DedupKey]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{fired: map[DedupKey]struct{}{}}
}

func (l *Ledger) Has(k DedupKey) bool {
	_, ok := l.fired[k]
	return ok
}

func (l *Ledger) Mark(k DedupKey) {
	l.fired[k] = struct{}{}
}

func (l *Ledger) Len() int { return len(l.fired) }

// Prune drops keys dated before today (YYYY-MM-DD) and returns how many
// were removed. Keys for today are kept, so pruning never re-arms an entry.
func (l *Ledger) Prune(today string) int {
	n := 0
	for k := range l.fired {
		if k.Date < today {
			delete(l.fired, k)
			n++
		}
	}
	return n
}
