// Package wsref is a minimal reference transport: a gorilla/websocket
// connection carries the reliable control channel, and a shared UDP
// socket carries unreliable audio datagrams, demultiplexed by a short
// hello packet that binds a session id to a UDP remote address. It
// exists to give the core's transport.Session contract a runnable
// implementation; it is not a substitute for the QUIC/WebTransport or
// WebRTC data-channel stacks a production deployment would use.
package wsref

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Session implements transport.Session over one websocket connection
// plus (once bound) one UDP remote address.
type Session struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string

	server *Server

	mu        sync.Mutex
	udpAddr   *net.UDPAddr
	connected int32 // atomic bool

	writeMu sync.Mutex // serialises websocket writes; never taken by SendDatagram
}

func newSession(id string, conn *websocket.Conn, server *Server) *Session {
	s := &Session{id: id, conn: conn, server: server, connected: 1}
	s.remoteAddr = conn.RemoteAddr().String()
	return s
}

// SendDatagram sends data over the shared UDP socket to this session's
// bound remote address. Returns false if no UDP address has been bound
// yet or the session has closed.
func (s *Session) SendDatagram(data []byte) bool {
	if atomic.LoadInt32(&s.connected) == 0 {
		return false
	}
	s.mu.Lock()
	addr := s.udpAddr
	s.mu.Unlock()
	if addr == nil {
		return false
	}
	_, err := s.server.udpConn.WriteToUDP(data, addr)
	return err == nil
}

// SendReliable sends a control message over the websocket connection.
func (s *Session) SendReliable(message string) bool {
	if atomic.LoadInt32(&s.connected) == 0 {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(message)) == nil
}

// Close closes the websocket connection.
func (s *Session) Close() {
	if !atomic.CompareAndSwapInt32(&s.connected, 1, 0) {
		return
	}
	s.conn.Close()
}

// ID returns the session's websocket-assigned identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddress returns the websocket connection's remote address.
func (s *Session) RemoteAddress() string { return s.remoteAddr }

// IsConnected reports whether the session is still open.
func (s *Session) IsConnected() bool { return atomic.LoadInt32(&s.connected) != 0 }

// bindUDP records the UDP address a hello packet arrived from.
func (s *Session) bindUDP(addr *net.UDPAddr) {
	s.mu.Lock()
	s.udpAddr = addr
	s.mu.Unlock()
}
