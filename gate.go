package recsort

import "sync"

// Gate is a single-writer, many-reader readiness signal: a monotone
// counter of index records that have been filled, plus a blocking wait.
// The index builder publishes progress through a Gate so sort leaves can
// start on a prefix of the index while the rest is still being parsed.
//
// Publish is monotone: the counter never moves backwards. Once Publish(k)
// returns, WaitUntil(k') with k' <= k does not block.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	filled uint64
}

// NewGate returns a Gate with zero records published.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Reset sets the counter back to zero. Must not be called concurrently
// with readers or the writer.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.filled = 0
	g.mu.Unlock()
}

// Publish records that at least k index records are ready and wakes all
// waiters. Lower values than the current counter are ignored.
func (g *Gate) Publish(k uint64) {
	g.mu.Lock()
	if k > g.filled {
		g.filled = k
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}

// WaitUntil blocks until at least k records have been published. The
// predicate is re-checked on every wakeup.
func (g *Gate) WaitUntil(k uint64) {
	g.mu.Lock()
	for g.filled < k {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

// Filled returns the current counter value.
func (g *Gate) Filled() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filled
}
