package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var sessionIDs atomic.Uint64

// WSSession is the push side of one WebSocket connection. It implements
// feed.Session; the subscription manager holds it without owning it.
type WSSession struct {
	id         uint64
	apiVersion atomic.Uint32

	conn    *websocket.Conn
	writeMu *sync.Mutex
	closed  atomic.Bool
}

// SessionID implements feed.Session.
func (s *WSSession) SessionID() uint64 { return s.id }

// APIVersion implements feed.Session.
func (s *WSSession) APIVersion() uint32 { return s.apiVersion.Load() }

// SetAPIVersion records the dialect negotiated for this client.
func (s *WSSession) SetAPIVersion(v uint32) { s.apiVersion.Store(v) }

// Send pushes one message. Once a send fails the session is dead and all
// later sends fail fast.
func (s *WSSession) Send(message []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("session %d is closed", s.id)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		s.closed.Store(true)
		return fmt.Errorf("send to session %d: %w", s.id, err)
	}
	return nil
}

// Closed implements feed.Session.
func (s *WSSession) Closed() bool { return s.closed.Load() }

// WebSocketConnection adapts a gorilla websocket to the Connection
// interface and carries the session identity into handler dispatch.
type WebSocketConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	session *WSSession
}

// NewWebSocketConnection wraps an upgraded websocket. apiVersion seeds
// the session's dialect; only SetAPIVersion changes it afterwards, and an
// api_version field on a command does not.
func NewWebSocketConnection(conn *websocket.Conn, apiVersion uint32) *WebSocketConnection {
	c := &WebSocketConnection{conn: conn}
	c.session = &WSSession{
		id:      sessionIDs.Add(1),
		conn:    conn,
		writeMu: &c.writeMu,
	}
	c.session.SetAPIVersion(apiVersion)
	return c
}

// Session exposes the push capability for subscription wiring.
func (c *WebSocketConnection) Session() *WSSession { return c.session }

// Context implements Connection.
func (c *WebSocketConnection) Context() ConnectionContext {
	return ConnectionContext{
		SessionID:  c.session.SessionID(),
		APIVersion: c.session.APIVersion(),
		Session:    c.session,
	}
}

// Read implements Connection. The blocking read is interrupted when the
// context fires by forcing the read deadline.
func (c *WebSocketConnection) Read(ctx context.Context) (*Request, error) {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()
	defer close(stop)

	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		c.session.closed.Store(true)
		if ctx.Err() != nil {
			return nil, NewConnError(KindCancelled, ctx.Err())
		}
		return nil, NewConnError(KindTransport, err)
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	return &Request{Method: MethodWebSocket, Payload: payload}, nil
}

// Write implements Connection.
func (c *WebSocketConnection) Write(ctx context.Context, resp Response) error {
	if err := ctx.Err(); err != nil {
		return NewConnError(KindCancelled, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, resp.Payload); err != nil {
		c.session.closed.Store(true)
		return NewConnError(KindTransport, err)
	}
	return nil
}

// Close implements Connection. Releasing the socket releases the session:
// the subscription manager drops its entries on the next sweep.
func (c *WebSocketConnection) Close() error {
	c.session.closed.Store(true)
	return c.conn.Close()
}
