package network

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	readWait  = 60 * time.Second
	writeWait = 10 * time.Second
	pingEvery = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	// Kiosk and projector pages are served from other hosts on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket to room.Conn. gorilla allows one concurrent
// writer, and both the room and the ping loop write.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(b []byte) error {
	return c.write(websocket.TextMessage, b)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) write(msgType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, b)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	wc := &wsConn{conn: conn}
	viewerID, err := s.game.JoinViewer(r.Context(), wc)
	if err != nil {
		log.Warn().Err(err).Msg("join viewer")
		return
	}
	defer s.game.LeaveViewer(viewerID)
	log.Info().Str("viewer", viewerID).Str("remote", r.RemoteAddr).Msg("viewer connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wc.write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Viewers only listen; reads keep the pong handler running and notice
	// the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Info().Str("viewer", viewerID).Err(err).Msg("viewer disconnected")
			return
		}
	}
}
