package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// ServerConfig configures a simulated device.
type ServerConfig struct {
	// Listen is the UDP listen address. Defaults to an ephemeral
	// loopback port.
	Listen string

	// Status is the initial device status. Nil starts empty.
	Status wire.Status
}

// Server is an in-process simulated device. It implements the device
// side of the protocol (handshake, status, observe, control) and
// exposes fault-injection hooks so driver behavior under packet loss,
// corruption, and device restarts can be exercised deterministically.
type Server struct {
	conn *net.UDPConn

	mu          sync.Mutex
	status      wire.Status
	token       string
	seq         uint32
	subscribers map[string]*net.UDPAddr
	subscribed  int
	lastNotify  []byte

	mute          bool
	failStatus    int
	rejectControl int
	dropAcks      bool

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer starts a simulated device.
func NewServer(config ServerConfig) (*Server, error) {
	listen := config.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listen, err)
	}

	status := config.Status.Clone()
	if status == nil {
		status = wire.Status{}
	}

	s := &Server{
		conn:        conn,
		status:      status,
		token:       uuid.NewString(),
		subscribers: make(map[string]*net.UDPAddr),
		closeCh:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Host returns the server's listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.conn.LocalAddr().String())
	return host
}

// Port returns the server's listen port.
func (s *Server) Port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Token returns the current device session token.
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Close stops the server.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
	})
	s.wg.Wait()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			continue
		}

		s.mu.Lock()
		if s.mute {
			s.mu.Unlock()
			continue
		}
		s.handleLocked(msg, addr)
		s.mu.Unlock()
	}
}

func (s *Server) handleLocked(msg *wire.Message, addr *net.UDPAddr) {
	if msg.Type != wire.TypeRequest {
		return
	}

	switch msg.Op {
	case wire.OpSync:
		s.replyLocked(addr, &wire.Message{
			Type:    wire.TypeResponse,
			ID:      msg.ID,
			Session: s.token,
			Result:  wire.ResultOK,
		})

	case wire.OpStatus:
		if s.failStatus > 0 {
			s.failStatus--
			return // dropped request looks like a timeout to the client
		}
		s.replyLocked(addr, &wire.Message{
			Type:    wire.TypeResponse,
			ID:      msg.ID,
			Session: s.token,
			Result:  wire.ResultOK,
			Fields:  s.status.Clone(),
		})

	case wire.OpObserve:
		if msg.Session != s.token {
			s.replyLocked(addr, &wire.Message{
				Type:    wire.TypeResponse,
				ID:      msg.ID,
				Session: s.token,
				Result:  wire.ResultError,
			})
			return
		}
		s.subscribers[addr.String()] = addr
		s.subscribed++
		s.replyLocked(addr, &wire.Message{
			Type:    wire.TypeResponse,
			ID:      msg.ID,
			Session: s.token,
			Result:  wire.ResultOK,
		})

	case wire.OpControl:
		if s.rejectControl > 0 {
			s.rejectControl--
			s.replyLocked(addr, &wire.Message{
				Type:    wire.TypeAck,
				ID:      msg.ID,
				Session: s.token,
				Result:  wire.ResultError,
			})
			return
		}
		for k, v := range msg.Fields {
			s.status[k] = v
		}
		if !s.dropAcks {
			s.replyLocked(addr, &wire.Message{
				Type:    wire.TypeAck,
				ID:      msg.ID,
				Session: s.token,
				Result:  wire.ResultOK,
			})
		}
		s.pushLocked()
	}
}

func (s *Server) replyLocked(addr *net.UDPAddr, msg *wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		return
	}
	s.conn.WriteToUDP(data, addr)
}

// pushLocked sends the current status to every subscriber as a
// notification with the next sequence number.
func (s *Server) pushLocked() {
	s.seq++
	data, err := wire.Encode(&wire.Message{
		Type:    wire.TypeNotify,
		ID:      s.seq,
		Session: s.token,
		Fields:  s.status.Clone(),
	})
	if err != nil {
		return
	}
	s.lastNotify = data
	for _, addr := range s.subscribers {
		s.conn.WriteToUDP(data, addr)
	}
}

// SetStatus updates one status key and pushes a snapshot to all
// subscribers.
func (s *Server) SetStatus(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[key] = value
	s.pushLocked()
}

// Push resends the current status to all subscribers.
func (s *Server) Push() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked()
}

// SubscribeCount returns how many observe requests the server has
// accepted. Tests use it to wait for a re-subscription to land.
func (s *Server) SubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// PushDuplicate resends the last notification verbatim, same sequence
// number included.
func (s *Server) PushDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastNotify == nil {
		return
	}
	for _, addr := range s.subscribers {
		s.conn.WriteToUDP(s.lastNotify, addr)
	}
}

// PushMalformed sends an undecodable datagram to all subscribers.
func (s *Server) PushMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range s.subscribers {
		s.conn.WriteToUDP([]byte("|.typ=ntf|broken"), addr)
	}
}

// Restart simulates a device reboot: the session token changes, the
// notification sequence resets, and one snapshot is pushed under the
// new token so observers see the change.
func (s *Server) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = uuid.NewString()
	s.seq = 0
	s.pushLocked()
}

// SetMute makes the server silently drop all incoming datagrams.
func (s *Server) SetMute(mute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mute = mute
}

// FailStatus drops the next n status requests without replying.
func (s *Server) FailStatus(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = n
}

// RejectNextControl answers the next n control requests with an error
// ack.
func (s *Server) RejectNextControl(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectControl = n
}

// DropAcks makes the server apply control mutations but never ack them.
func (s *Server) DropAcks(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAcks = drop
}
