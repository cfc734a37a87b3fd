package net

import (
	"bufio"
	"net"
	"sync"
	"time"
)

const (
	// bufSize is the size of the read and write buffers of a connection
	bufSize = 64 * 1024
)

// Peer is a live connection to another overlay node. The ID is derived from
// the remote address: the dialled address for outbound connections and the
// socket's remote address for inbound ones.
type Peer struct {
	ID       string
	Outbound bool

	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	wLock   sync.Mutex
	timeout time.Duration

	inbox chan *Envelope

	// removed is set by the read loop before it closes inbox, and read by the
	// dispatcher once inbox is drained.
	removed bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

func newPeer(id string, conn net.Conn, outbound bool, timeout time.Duration, inboxSize int) *Peer {
	return &Peer{
		ID:       id,
		Outbound: outbound,
		conn:     conn,
		r:        bufio.NewReaderSize(conn, bufSize),
		w:        bufio.NewWriterSize(conn, bufSize),
		timeout:  timeout,
		inbox:    make(chan *Envelope, inboxSize),
		closedCh: make(chan struct{}),
	}
}

// IsOpen reports whether the connection has not been closed yet.
func (p *Peer) IsOpen() bool {
	select {
	case <-p.closedCh:
		return false
	default:
		return true
	}
}

// RemoteAddr returns the address of the other end of the connection.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Close closes the underlying connection. It is safe to call more than once.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closedCh)
		err = p.conn.Close()
	})
	return err
}

// writeLine writes one encoded envelope followed by the line delimiter.
func (p *Peer) writeLine(line []byte) error {
	p.wLock.Lock()
	defer p.wLock.Unlock()

	if p.timeout > 0 {
		p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	}

	if _, err := p.w.Write(line); err != nil {
		return err
	}
	if err := p.w.WriteByte('\n'); err != nil {
		return err
	}
	return p.w.Flush()
}
