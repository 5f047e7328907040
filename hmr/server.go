package hmr

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/justapithecus/bale/log"
)

// Server is the websocket update endpoint. Clients connecting while the
// last build is in a failed state immediately receive the error message.
type Server struct {
	logger   *log.Logger
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	mu        sync.Mutex
	conns     map[string]*conn
	lastError string
	closed    bool
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates an unstarted server.
func NewServer(logger *log.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The endpoint is development-only and serves localhost tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// Start listens on the given port (0 = ephemeral) and returns the bound
// port.
func (s *Server) Start(port int) (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return 0, err
	}
	s.listener = ln
	s.server = &http.Server{Handler: http.HandlerFunc(s.handle)}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("update server stopped", map[string]any{"error": err.Error()})
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.New().String()
	c := &conn{ws: ws}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.conns[id] = c
	lastError := s.lastError
	s.mu.Unlock()

	s.logger.Debug("update client connected", map[string]any{"client": id})

	if lastError != "" {
		if data, err := json.Marshal(Message{Type: "error", Error: lastError}); err == nil {
			_ = c.send(data)
		}
	}

	// Reader loop exists only to detect disconnects; clients send nothing.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		_ = ws.Close()
	}()
}

// broadcast marshals once and writes to every connected client, dropping
// clients whose write fails.
func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("cannot encode update message", map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	targets := make(map[string]*conn, len(s.conns))
	for id, c := range s.conns {
		targets[id] = c
	}
	s.mu.Unlock()

	for id, c := range targets {
		if err := c.send(data); err != nil {
			s.mu.Lock()
			delete(s.conns, id)
			s.mu.Unlock()
			_ = c.ws.Close()
		}
	}
}

// NotifyUpdate implements Notifier.
func (s *Server) NotifyUpdate(assets []UpdateAsset) {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
	s.broadcast(Message{Type: "update", Assets: assets})
}

// NotifyError implements Notifier.
func (s *Server) NotifyError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
	s.broadcast(Message{Type: "error", Error: message})
}

// Close implements Notifier.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := s.conns
	s.conns = make(map[string]*conn)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.Close()
	}
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

var _ Notifier = (*Server)(nil)
