package wsref

import (
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jameshartt/tutti/internal/core/audio"
	"github.com/jameshartt/tutti/internal/core/transport"
)

// Server upgrades incoming HTTP requests to websocket sessions and runs
// the shared UDP socket that carries every session's audio datagrams.
type Server struct {
	callbacks transport.Callbacks
	upgrader  websocket.Upgrader
	udpConn   *net.UDPConn

	mu       sync.Mutex
	sessions map[string]*Session
	byAddr   map[string]*Session

	nextID uint64
}

// NewServer creates a reference transport server. udpAddr is the local
// address the shared UDP socket binds to (e.g. ":8082").
func NewServer(udpAddr string, callbacks transport.Callbacks) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		callbacks: callbacks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		udpConn:  conn,
		sessions: make(map[string]*Session),
		byAddr:   make(map[string]*Session),
	}, nil
}

// RegisterRoutes registers the websocket upgrade endpoint on mux and
// starts the UDP receive loop.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/transport/connect", s.serveWS)
	go s.runUDPLoop()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	id := s.allocateID()
	sess := newSession(id, conn, s)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.callbacks.OnSessionOpen != nil {
		s.callbacks.OnSessionOpen(sess)
	}

	// The session's id is sent as the first reliable message, so the
	// client knows what hello payload to send over UDP to bind its
	// datagram address.
	sess.SendReliable(id)

	s.readLoop(sess)
}

func (s *Server) readLoop(sess *Session) {
	defer s.closeSession(sess)
	for {
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if s.callbacks.OnMessage != nil {
			s.callbacks.OnMessage(sess, string(data))
		}
	}
}

func (s *Server) closeSession(sess *Session) {
	sess.Close()

	s.mu.Lock()
	delete(s.sessions, sess.ID())
	for addr, v := range s.byAddr {
		if v == sess {
			delete(s.byAddr, addr)
		}
	}
	s.mu.Unlock()

	if s.callbacks.OnSessionClose != nil {
		s.callbacks.OnSessionClose(sess)
	}
}

// runUDPLoop reads every incoming UDP packet and either binds a hello
// packet to its session or delivers an audio datagram to the bound
// session's callback.
func (s *Server) runUDPLoop() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("wsref: udp read error: %v", err)
			return
		}
		packet := buf[:n]

		if n == audio.PacketSize {
			s.mu.Lock()
			sess := s.byAddr[addr.String()]
			s.mu.Unlock()
			if sess == nil || s.callbacks.OnDatagram == nil {
				continue
			}
			cp := make([]byte, n)
			copy(cp, packet)
			s.callbacks.OnDatagram(sess, cp)
			continue
		}

		// Anything else is treated as a hello packet: its payload is
		// the session id to bind this UDP address to.
		s.mu.Lock()
		sess := s.sessions[string(packet)]
		if sess != nil {
			s.byAddr[addr.String()] = sess
		}
		s.mu.Unlock()
		if sess != nil {
			sess.bindUDP(addr)
		}
	}
}

// Close shuts down the shared UDP socket.
func (s *Server) Close() error {
	return s.udpConn.Close()
}

func (s *Server) allocateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return formatID(s.nextID)
}

func formatID(n uint64) string {
	const hex = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hex[n&0xf]
		n >>= 4
	}
	return string(buf[i:])
}
