// Package udp sends Signal K deltas as UDP datagrams, one delta per packet.
package udp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"orientd/internal/signalk"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Broadcaster struct {
	resolve resolveFunc
	dial    dialFunc

	mu      sync.Mutex
	dest    string
	conn    udpConn
	sent    uint64
	lastAt  time.Time
	lastErr error
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	}
	return newBroadcaster(dest, net.ResolveUDPAddr, dial)
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// A nil local address lets the stack pick a suitable source.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		resolve: resolve,
		dial:    dial,
		dest:    dest,
		conn:    conn,
	}, nil
}

// SetDest redials toward a new destination and closes the old socket. In
// flight Sends keep using the old socket until the swap.
func (b *Broadcaster) SetDest(dest string) error {
	if dest == b.Dest() {
		return nil
	}
	addr, err := b.resolve("udp", dest)
	if err != nil {
		return fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := b.dial("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial udp: %w", err)
	}

	b.mu.Lock()
	old := b.conn
	b.conn = conn
	b.dest = dest
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Emit marshals the delta and sends it as one datagram. It satisfies the
// reporter sink interface.
func (b *Broadcaster) Emit(d signalk.Delta) error {
	payload, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("udp: marshal delta: %w", err)
	}
	return b.Send(payload)
}

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	_, err := conn.Write(payload)

	b.mu.Lock()
	if err != nil {
		b.lastErr = err
	} else {
		b.sent++
		b.lastAt = time.Now()
	}
	b.mu.Unlock()
	return err
}

// Dest returns the current destination address.
func (b *Broadcaster) Dest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dest
}

// Stats reports packets sent, the time of the last one, and the most recent
// send error.
func (b *Broadcaster) Stats() (sent uint64, lastAt time.Time, lastErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent, b.lastAt, b.lastErr
}

func (b *Broadcaster) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
