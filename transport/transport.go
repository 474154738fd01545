// Package transport carries tagged byte messages between the ranks of a
// process group. It is the only polymorphic surface of the sort pipeline:
// the distribution and merge phases speak to a Transport and never to a
// socket.
//
// Two implementations are provided: NewMesh wires all ranks inside one
// process (tests, single-host runs), and NewTCP builds a full mesh of TCP
// connections across hosts. Both deliver zero-length messages and both
// treat a size mismatch between a received message and the caller's
// buffer as an error, which the pipeline escalates to a fatal abort.
package transport

import (
	"fmt"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// Transport moves byte messages between ranks. Messages are addressed by
// (peer rank, tag); within one (src, dst, tag) stream delivery is in send
// order. All methods except Close are safe for concurrent use.
type Transport interface {
	// Rank returns this process's rank in [0, Size).
	Rank() int

	// Size returns the number of ranks in the process group.
	Size() int

	// Send delivers p to dest under tag. It may return before the
	// message is consumed by the receiver; p can be reused afterwards.
	Send(dest, tag int, p []byte) error

	// Recv blocks until a message from src with the given tag arrives
	// and copies it into buf. The incoming message must be exactly
	// len(buf) bytes; anything else fails with ErrSizeMismatch.
	Recv(src, tag int, buf []byte) error

	// Isend starts a non-blocking send and returns a Request to await.
	// p must not be modified until Await returns.
	Isend(dest, tag int, p []byte) *Request

	// Close tears the transport down. Blocked receives on this rank
	// return ErrTransportClosed.
	Close() error
}

// Request tracks one non-blocking send. Await must be called exactly once.
type Request struct {
	done chan error
}

// Await blocks until the send has been handed off and returns its error.
func (r *Request) Await() error {
	return <-r.done
}

func startRequest(send func() error) *Request {
	r := &Request{done: make(chan error, 1)}
	go func() {
		r.done <- send()
	}()
	return r
}

func checkPeer(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("rank %d of %d: %w", rank, size, recerrors.ErrUnknownRank)
	}
	return nil
}
