package transport

import (
	"sync"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// NewMesh returns size fully connected in-process transports, one per
// rank. Sends are buffered: a sender never blocks waiting for its
// receiver, mirroring the buffered non-blocking sends the distribution
// phase relies on.
func NewMesh(size int) []Transport {
	m := &memMesh{
		size:   size,
		queues: make(map[memKey][][]byte),
		closed: make([]bool, size),
	}
	m.cond = sync.NewCond(&m.mu)
	ts := make([]Transport, size)
	for r := range ts {
		ts[r] = &memRank{mesh: m, rank: r}
	}
	return ts
}

type memKey struct {
	src, dst, tag int
}

type memMesh struct {
	mu     sync.Mutex
	cond   *sync.Cond
	size   int
	queues map[memKey][][]byte
	closed []bool
}

type memRank struct {
	mesh *memMesh
	rank int
}

func (t *memRank) Rank() int { return t.rank }
func (t *memRank) Size() int { return t.mesh.size }

func (t *memRank) Send(dest, tag int, p []byte) error {
	m := t.mesh
	if err := checkPeer(dest, m.size); err != nil {
		return err
	}
	msg := append([]byte(nil), p...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed[t.rank] || m.closed[dest] {
		return recerrors.ErrTransportClosed
	}
	k := memKey{src: t.rank, dst: dest, tag: tag}
	m.queues[k] = append(m.queues[k], msg)
	m.cond.Broadcast()
	return nil
}

func (t *memRank) Recv(src, tag int, buf []byte) error {
	m := t.mesh
	if err := checkPeer(src, m.size); err != nil {
		return err
	}
	k := memKey{src: src, dst: t.rank, tag: tag}

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queues[k]) == 0 {
		if m.closed[t.rank] {
			return recerrors.ErrTransportClosed
		}
		m.cond.Wait()
	}
	msg := m.queues[k][0]
	m.queues[k] = m.queues[k][1:]
	if len(msg) != len(buf) {
		return recerrors.ErrSizeMismatch
	}
	copy(buf, msg)
	return nil
}

func (t *memRank) Isend(dest, tag int, p []byte) *Request {
	return startRequest(func() error {
		return t.Send(dest, tag, p)
	})
}

func (t *memRank) Close() error {
	m := t.mesh
	m.mu.Lock()
	m.closed[t.rank] = true
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}
