// Package feed exposes the live simulation stream over WebSocket. Clients
// receive every fill and every analytics snapshot as JSON events. Delivery
// is best effort: a client that cannot keep up is disconnected rather than
// allowed to back pressure into the tick loop.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prism-sim/analytics"
	"prism-sim/orderbook"
)

// Event is the wire envelope; Type is "fill" or "snapshot".
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 5 * time.Second
	pingInterval   = 20 * time.Second
	clientBuffer   = 64
	readDeadline   = 60 * time.Second
	maxMessageSize = 512
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server 负责 WebSocket 广播，订阅者之间互不影响。
type Server struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	httpSrv *http.Server
	dropped uint64
}

func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 模拟器本地使用，不做 Origin 校验
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the upgrade endpoint, mountable under any mux.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
		s.mu.Lock()
		s.clients[c] = struct{}{}
		n := len(s.clients)
		s.mu.Unlock()
		s.log.Info("feed client connected",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Int("clients", n))
		go s.writeLoop(c)
		go s.readLoop(c)
	}
}

// Serve starts a standalone HTTP listener for the feed. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.Handler())
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	s.log.Info("feed listening", zap.String("addr", addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes the listener and all client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// BroadcastFill fans one fill out to every subscriber.
func (s *Server) BroadcastFill(f orderbook.Fill) {
	s.broadcast(Event{Type: "fill", Data: f})
}

// BroadcastSnapshot fans one analytics snapshot out to every subscriber.
func (s *Server) BroadcastSnapshot(snap analytics.Snapshot) {
	s.broadcast(Event{Type: "snapshot", Data: snap})
}

func (s *Server) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("feed marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			// 慢客户端直接踢掉，保护 tick 循环
			s.dropped++
			delete(s.clients, c)
			close(c.send)
			s.log.Warn("dropping slow feed client",
				zap.String("remote", c.conn.RemoteAddr().String()))
		}
	}
}

// ClientCount 返回当前连接数。
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}

// readLoop drains control frames; the feed is one-directional.
func (s *Server) readLoop(c *client) {
	defer func() {
		s.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}
