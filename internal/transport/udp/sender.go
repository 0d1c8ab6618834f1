package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"butterfly/internal/errs"
	applog "butterfly/internal/log"
)

// MaxPayload is the largest datagram payload IPv4 can carry.
const MaxPayload = 65507

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender closed")

// UDPSender writes level packets to one connected UDP peer.
type UDPSender struct {
	target string

	mu   sync.Mutex // guards conn against Close
	conn *net.UDPConn

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port"). Dialing UDP only binds a
// local socket, so an absent listener is not an error here.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, errs.Resourcef(err, "resolve UDP target %q", targetAddress)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errs.Resourcef(err, "dial UDP target %q", targetAddress)
	}

	applog.Infof("UDP Sender: Sending levels to %s", conn.RemoteAddr())
	return &UDPSender{target: addr.String(), conn: conn}, nil
}

// Target returns the resolved peer address.
func (s *UDPSender) Target() string { return s.target }

// Send writes one datagram. Payloads over MaxPayload are rejected instead of
// being truncated by the kernel.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > MaxPayload {
		return fmt.Errorf("udp packet of %d bytes exceeds %d", len(data), MaxPayload)
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		// A missing listener surfaces here as ECONNREFUSED on the next write.
		applog.Debugf("UDP Sender: Write to %s failed: %v", s.target, err)
		return fmt.Errorf("send UDP packet: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats reports the packets and bytes written so far.
func (s *UDPSender) Stats() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

// Close releases the socket. It is safe to call more than once.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}

	packets, bytes := s.Stats()
	applog.Infof("UDP Sender: Closing %s after %d packets (%d bytes)", s.target, packets, bytes)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("close UDP connection: %w", err)
	}
	return nil
}

var _ interface{ Close() error } = (*UDPSender)(nil)
