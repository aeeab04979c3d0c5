package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/schema"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamCommand is a pointer interaction sent by a stream client.
// Action is one of "pointer", "select" or "clear".
type streamCommand struct {
	Action string    `json:"action"`
	X      float64   `json:"x,omitempty"`
	Graph  int       `json:"graph,omitempty"`
	Date   time.Time `json:"date,omitempty"`
}

// handleStream upgrades to a websocket that receives a snapshot after every change
// of the session. Clients may move the pointer over the same connection.
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.lookup(c)
		if !ok {
			return
		}
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.logger.Error("Failed to upgrade websocket", "session", sess.id, "error", err)
			return
		}
		defer func() { _ = ws.Close() }()

		s.metrics.StreamClients.Inc()
		defer s.metrics.StreamClients.Dec()

		updates := sess.subscribe()
		defer sess.unsubscribe(updates)
		s.logger.Debug("Stream opened", "session", sess.id)

		done := make(chan struct{})
		go s.readCommands(ws, sess, done)

		ping := time.NewTicker(streamPingInterval)
		defer ping.Stop()
		for {
			select {
			case res, open := <-updates:
				if !open {
					_ = ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
						time.Now().Add(streamWriteTimeout))
					return
				}
				if !s.sendJSON(ws, sess.id, res) {
					return
				}
			case <-ping.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
					return
				}
			case <-done:
				s.logger.Debug("Stream closed", "session", sess.id)
				return
			}
		}
	}
}

func (s *Server) sendJSON(ws *websocket.Conn, sessionID string, res schema.GraphResult) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := ws.WriteJSON(res); err != nil {
		s.logger.Warn("Failed to send snapshot", "session", sessionID, "error", err)
		return false
	}
	return true
}

// readCommands applies client commands until the connection fails, then closes done.
func (s *Server) readCommands(ws *websocket.Conn, sess *session, done chan<- struct{}) {
	defer close(done)
	for {
		var cmd streamCommand
		if err := ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Stream read failed", "session", sess.id, "error", err)
			}
			return
		}
		sess.mu.Lock()
		if applyCommand(sess.composer, cmd) {
			sess.publish()
		}
		sess.mu.Unlock()
	}
}

func applyCommand(c *core.Composer, cmd streamCommand) bool {
	switch cmd.Action {
	case "pointer":
		return c.PointerMoveOn(cmd.Graph, cmd.X)
	case "select":
		return c.SelectDate(cmd.Date)
	case "clear":
		if c.Tooltip() == nil {
			return false
		}
		c.ClearTooltip()
		return true
	default:
		return false
	}
}
