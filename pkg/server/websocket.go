package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/session"
	"github.com/antibyte/retrocalc/pkg/shared"

	"github.com/gorilla/websocket"
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

var newline = []byte{'\n'}

// Client is one websocket connection bound to a calculator session.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	server    *Server
	sessionID string
	ip        string

	mu     sync.Mutex
	closed bool
}

// Send queues message. It never blocks; a full buffer drops the message.
func (c *Client) Send(message shared.ServerMessage) error {
	data, err := marshalMessage(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		logger.WebSocketWarn("Send buffer full for session %s, dropping %s message", c.sessionID, message.Type)
		return errSendBufferFull
	}
}

func (c *Client) sendAll(messages []shared.ServerMessage) {
	for _, m := range messages {
		if err := c.Send(m); err != nil {
			return
		}
	}
}

// close stops the write pump, which closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := auth.ClientIP(r)
	sessionID, ok := auth.SessionIDFromContext(r.Context())
	if !ok || !s.registry.Exists(sessionID) {
		logger.WebSocketWarn("WebSocket request from %s for unknown session %q", ip, sessionID)
		http.Error(w, "Unknown session", http.StatusUnauthorized)
		return
	}
	if err := s.clients.CheckRateLimit(ip); err != nil {
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}
	if !s.clients.HasClient(sessionID) && s.clients.Full() {
		logger.SecurityWarn("Maximum number of clients reached, rejecting %s", ip)
		http.Error(w, "Server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketError("WebSocket upgrade failed for %s: %v", ip, err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, s.opts.SendBuffer),
		server:    s,
		sessionID: sessionID,
		ip:        ip,
	}
	if err := s.clients.AddClient(client); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(s.opts.WriteWait))
		conn.Close()
		return
	}
	logger.WebSocketInfo("Client %s connected to session %s", ip, sessionID)

	go client.writePump()

	client.Send(shared.NewSessionMessage(sessionID))
	client.sendAll(s.dispatch(sessionID, shared.ClientMessage{Type: shared.MessageTypeHistory}))
	s.registry.With(sessionID, func(sess *session.Session) error {
		return client.Send(shared.NewStateMessage(sess.Snapshot()))
	})

	go client.readPump()
}

// readPump applies the client's messages to its session in order.
func (c *Client) readPump() {
	s := c.server
	defer func() {
		s.clients.RemoveClient(c)
		c.conn.Close()
		logger.WebSocketInfo("Client %s disconnected from session %s", c.ip, c.sessionID)
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.WebSocketWarn("Unexpected close for client %s: %v", c.ip, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.Send(shared.NewErrorMessage(shared.ErrorKindBadRequest, "text messages only"))
			continue
		}

		if err := s.clients.CheckRateLimit(c.ip); err != nil {
			c.Send(shared.NewErrorMessage(shared.ErrorKindRateLimited, err.Error()))
			continue
		}

		msg, err := shared.DecodeClientMessage(data)
		if err != nil {
			logger.SecurityInfo("Invalid message from %s: %v", c.ip, err)
			c.Send(shared.NewErrorMessage(shared.ErrorKindBadRequest, err.Error()))
			continue
		}
		if msg.Type == shared.MessageTypeKeepalive {
			continue
		}

		c.sendAll(s.dispatch(c.sessionID, msg))
	}
}

// writePump writes queued messages and pings. Messages queued together go
// out in one frame, separated by newlines.
func (c *Client) writePump() {
	s := c.server
	ticker := time.NewTicker(s.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				additional, ok := <-c.send
				if !ok {
					break
				}
				w.Write(newline)
				w.Write(additional)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.WebSocketDebug("Ping to %s failed: %v", c.ip, err)
				return
			}
		}
	}
}

// dispatch applies msg to the session and returns the replies.
func (s *Server) dispatch(sessionID string, msg shared.ClientMessage) []shared.ServerMessage {
	var replies []shared.ServerMessage
	err := s.registry.With(sessionID, func(sess *session.Session) error {
		replies = handleMessage(sess, msg)
		return nil
	})
	if err != nil {
		return []shared.ServerMessage{shared.NewErrorMessage(shared.ErrorKindNotFound, err.Error())}
	}
	return replies
}

// handleMessage applies one client event. Every event that can change the
// display is answered with the new state, last.
func handleMessage(sess *session.Session, msg shared.ClientMessage) []shared.ServerMessage {
	var replies []shared.ServerMessage
	state := func() []shared.ServerMessage {
		return append(replies, shared.NewStateMessage(sess.Snapshot()))
	}

	switch msg.Type {
	case shared.MessageTypePress:
		if err := sess.Press(msg.Value); err != nil {
			replies = append(replies, shared.NewErrorMessage(shared.ErrorKindInvalidLabel, err.Error()))
		}
		return state()

	case shared.MessageTypeClear:
		sess.Clear()
		return state()

	case shared.MessageTypeDelete:
		sess.Delete()
		return state()

	case shared.MessageTypeEquals:
		outcome := sess.Equals()
		if !outcome.OK() {
			replies = append(replies, shared.NewEvaluationErrorMessage(outcome))
		} else {
			replies = append(replies, shared.NewHistoryMessage(sess.ListHistory()))
		}
		return state()

	case shared.MessageTypeMode:
		mode, err := calc.ParseMode(msg.Value)
		if err != nil {
			replies = append(replies, shared.NewErrorMessage(shared.ErrorKindBadRequest, err.Error()))
		} else {
			sess.SelectMode(mode)
		}
		return state()

	case shared.MessageTypeBase:
		base, err := calc.ParseBase(msg.Value)
		if err != nil {
			replies = append(replies, shared.NewErrorMessage(shared.ErrorKindBadRequest, err.Error()))
		} else {
			sess.SelectBase(base)
		}
		return state()

	case shared.MessageTypeHistory:
		return []shared.ServerMessage{shared.NewHistoryMessage(sess.ListHistory())}

	case shared.MessageTypeHistoryClear:
		if err := sess.ClearHistory(); err != nil {
			replies = append(replies, shared.NewErrorMessage(shared.ErrorKindServer, err.Error()))
		}
		return append(replies, shared.NewHistoryMessage(sess.ListHistory()))

	case shared.MessageTypeHistorySelect:
		if err := sess.SelectHistoryEntry(msg.Value); err != nil {
			replies = append(replies, shared.NewErrorMessage(shared.ErrorKindNotFound, err.Error()))
		}
		return state()
	}

	return []shared.ServerMessage{shared.NewErrorMessage(shared.ErrorKindBadRequest, "unsupported message type "+string(msg.Type))}
}
