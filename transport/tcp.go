package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"

	recerrors "github.com/davide-marchi/recsort/errors"
)

// Frame layout on the wire: tag (4B LE) | rawLen (4B LE) | storedLen
// (4B LE) | flags (1B) | storedLen payload bytes. rawLen is the logical
// message size; with flagLZ4 set the payload is an LZ4 block expanding
// to rawLen bytes, otherwise storedLen == rawLen.
const (
	frameHeaderSize = 13
	flagLZ4         = 1 << 0

	// maxFrameSize bounds a single message (1 GiB, about 53 million
	// 20-byte index records); the receiver rejects a larger frame as
	// malformed.
	maxFrameSize = 1 << 30

	// compressMinSize skips compression for messages too small to gain.
	compressMinSize = 512
)

// TCPOption configures a TCP mesh transport.
type TCPOption func(*tcpConfig)

type tcpConfig struct {
	compress    bool
	dialTimeout time.Duration
}

// WithCompression enables LZ4 block compression of message payloads.
// Both sides may enable it independently: the frame flag tells the
// receiver how to interpret each payload.
func WithCompression() TCPOption {
	return func(c *tcpConfig) { c.compress = true }
}

// WithDialTimeout bounds how long connection establishment retries
// dialing peers that have not started listening yet. Default 30s.
func WithDialTimeout(d time.Duration) TCPOption {
	return func(c *tcpConfig) { c.dialTimeout = d }
}

// NewTCP builds a full-mesh TCP transport for rank. addrs lists the
// listen address of every rank, in rank order; addrs[rank] is bound
// locally. NewTCP returns once connections to all peers are established,
// so all ranks must be started concurrently.
func NewTCP(rank int, addrs []string, opts ...TCPOption) (Transport, error) {
	cfg := tcpConfig{dialTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	size := len(addrs)
	if err := checkPeer(rank, size); err != nil {
		return nil, err
	}

	t := &tcpTransport{
		rank:   rank,
		size:   size,
		cfg:    cfg,
		conns:  make([]*peerConn, size),
		queues: make(map[memKey][][]byte),
	}
	t.cond = sync.NewCond(&t.mu)

	if size == 1 {
		return t, nil
	}

	ln, err := net.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addrs[rank], err)
	}
	t.listener = ln

	// Lower-numbered peers are dialed; higher-numbered peers dial us.
	var g errgroup.Group
	g.Go(func() error {
		return t.acceptPeers(size - 1 - rank)
	})
	for peer := 0; peer < rank; peer++ {
		peer := peer
		g.Go(func() error {
			return t.dialPeer(peer, addrs[peer])
		})
	}
	if err := g.Wait(); err != nil {
		t.Close()
		return nil, err
	}

	for peer, pc := range t.conns {
		if peer != rank && pc != nil {
			go t.readLoop(pc)
		}
	}
	return t, nil
}

type peerConn struct {
	rank    int
	conn    net.Conn
	writeMu sync.Mutex
}

type tcpTransport struct {
	rank     int
	size     int
	cfg      tcpConfig
	listener net.Listener
	conns    []*peerConn

	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[memKey][][]byte
	readErr error
	closed  bool

	compMu sync.Mutex
	comp   lz4.Compressor
}

func (t *tcpTransport) Rank() int { return t.rank }
func (t *tcpTransport) Size() int { return t.size }

func (t *tcpTransport) acceptPeers(count int) error {
	for i := 0; i < count; i++ {
		conn, err := t.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept peer: %w", err)
		}
		var hello [4]byte
		if _, err := io.ReadFull(conn, hello[:]); err != nil {
			conn.Close()
			return fmt.Errorf("read peer hello: %w", err)
		}
		peer := int(binary.LittleEndian.Uint32(hello[:]))
		if err := checkPeer(peer, t.size); err != nil {
			conn.Close()
			return err
		}
		t.setConn(peer, conn)
	}
	return nil
}

func (t *tcpTransport) dialPeer(peer int, addr string) error {
	deadline := time.Now().Add(t.cfg.dialTimeout)
	var conn net.Conn
	var err error
	for {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			break
		}
		// The peer's listener may not be up yet.
		if time.Now().After(deadline) {
			return fmt.Errorf("dial rank %d at %s: %w", peer, addr, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	var hello [4]byte
	binary.LittleEndian.PutUint32(hello[:], uint32(t.rank))
	if _, err := conn.Write(hello[:]); err != nil {
		conn.Close()
		return fmt.Errorf("send hello to rank %d: %w", peer, err)
	}
	t.setConn(peer, conn)
	return nil
}

func (t *tcpTransport) setConn(peer int, conn net.Conn) {
	t.mu.Lock()
	t.conns[peer] = &peerConn{rank: peer, conn: conn}
	t.mu.Unlock()
}

// readLoop demultiplexes frames from one peer into the tag queues.
func (t *tcpTransport) readLoop(pc *peerConn) {
	for {
		msg, tag, err := t.readFrame(pc.conn)
		if err != nil {
			t.mu.Lock()
			if t.readErr == nil && !t.closed {
				t.readErr = fmt.Errorf("read from rank %d: %w", pc.rank, err)
			}
			t.mu.Unlock()
			t.cond.Broadcast()
			return
		}
		k := memKey{src: pc.rank, dst: t.rank, tag: tag}
		t.mu.Lock()
		t.queues[k] = append(t.queues[k], msg)
		t.mu.Unlock()
		t.cond.Broadcast()
	}
}

func (t *tcpTransport) readFrame(conn net.Conn) ([]byte, int, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, 0, err
	}
	tag := int(binary.LittleEndian.Uint32(hdr[0:]))
	rawLen := binary.LittleEndian.Uint32(hdr[4:])
	storedLen := binary.LittleEndian.Uint32(hdr[8:])
	flags := hdr[12]

	if rawLen > maxFrameSize || storedLen > maxFrameSize {
		return nil, 0, recerrors.ErrBadFrame
	}
	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(conn, stored); err != nil {
		return nil, 0, err
	}

	if flags&flagLZ4 == 0 {
		if storedLen != rawLen {
			return nil, 0, recerrors.ErrBadFrame
		}
		return stored, tag, nil
	}
	raw := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(stored, raw)
	if err != nil || uint32(n) != rawLen {
		return nil, 0, recerrors.ErrBadFrame
	}
	return raw, tag, nil
}

func (t *tcpTransport) Send(dest, tag int, p []byte) error {
	if err := checkPeer(dest, t.size); err != nil {
		return err
	}
	if dest == t.rank {
		// Loopback, used by single-rank groups.
		msg := append([]byte(nil), p...)
		t.mu.Lock()
		k := memKey{src: t.rank, dst: t.rank, tag: tag}
		t.queues[k] = append(t.queues[k], msg)
		t.mu.Unlock()
		t.cond.Broadcast()
		return nil
	}

	t.mu.Lock()
	pc := t.conns[dest]
	closed := t.closed
	t.mu.Unlock()
	if closed || pc == nil {
		return recerrors.ErrTransportClosed
	}

	payload := p
	var flags byte
	if t.cfg.compress && len(p) >= compressMinSize {
		dst := make([]byte, lz4.CompressBlockBound(len(p)))
		t.compMu.Lock()
		n, err := t.comp.CompressBlock(p, dst)
		t.compMu.Unlock()
		if err == nil && n > 0 && n < len(p) {
			payload = dst[:n]
			flags |= flagLZ4
		}
	}

	var hdr [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(tag))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(p)))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(payload)))
	hdr[12] = flags

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	if _, err := pc.conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("send to rank %d: %w", dest, err)
	}
	if len(payload) > 0 {
		if _, err := pc.conn.Write(payload); err != nil {
			return fmt.Errorf("send to rank %d: %w", dest, err)
		}
	}
	return nil
}

func (t *tcpTransport) Recv(src, tag int, buf []byte) error {
	if err := checkPeer(src, t.size); err != nil {
		return err
	}
	k := memKey{src: src, dst: t.rank, tag: tag}

	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.queues[k]) == 0 {
		if t.closed {
			return recerrors.ErrTransportClosed
		}
		if t.readErr != nil {
			return t.readErr
		}
		t.cond.Wait()
	}
	msg := t.queues[k][0]
	t.queues[k] = t.queues[k][1:]
	if len(msg) != len(buf) {
		return recerrors.ErrSizeMismatch
	}
	copy(buf, msg)
	return nil
}

func (t *tcpTransport) Isend(dest, tag int, p []byte) *Request {
	return startRequest(func() error {
		return t.Send(dest, tag, p)
	})
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := t.conns
	t.mu.Unlock()
	t.cond.Broadcast()

	if t.listener != nil {
		t.listener.Close()
	}
	for _, pc := range conns {
		if pc != nil {
			pc.conn.Close()
		}
	}
	return nil
}
