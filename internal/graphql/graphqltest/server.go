// Package graphqltest provides an in-process graphql-ws server for tests.
package graphqltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = time.Second

// Message is a graphql-ws protocol message as seen by the server.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartPayload is the payload of a start message.
type StartPayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Handler scripts one accepted connection.
type Handler func(c *Conn)

type Option func(*Server)

// WithSubprotocols replaces the sub-protocols the server accepts.
func WithSubprotocols(protocols ...string) Option {
	return func(s *Server) {
		s.upgrader.Subprotocols = protocols
	}
}

// Server accepts websocket connections and hands each to a Handler.
type Server struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader

	pings  atomic.Int64
	starts atomic.Int64

	mu    sync.Mutex
	conns []*websocket.Conn
	wg    sync.WaitGroup
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, handler Handler, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		upgrader: websocket.Upgrader{Subprotocols: []string{"graphql-ws"}},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, ws)
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()
		defer ws.Close()

		ws.SetPingHandler(func(data string) error {
			s.pings.Add(1)
			return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
		})

		handler(&Conn{ws: ws, server: s})
	}))

	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/graphql-subscriptions"
	t.Cleanup(s.Close)

	return s
}

// Pings returns how many ping frames clients have sent.
func (s *Server) Pings() int {
	return int(s.pings.Load())
}

// Starts returns how many start messages clients have sent.
func (s *Server) Starts() int {
	return int(s.starts.Load())
}

// Close drops every accepted connection and waits for handlers to return.
func (s *Server) Close() {
	s.srv.Close()

	s.mu.Lock()
	for _, ws := range s.conns {
		ws.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Conn is the server side of one client connection.
type Conn struct {
	ws     *websocket.Conn
	server *Server
}

// Read returns the next message from the client.
func (c *Conn) Read() (Message, error) {
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return msg, err
	}
	if msg.Type == "start" {
		c.server.starts.Add(1)
	}
	return msg, nil
}

// Send writes msg to the client.
func (c *Conn) Send(msg Message) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

// SendRaw writes a text frame verbatim.
func (c *Conn) SendRaw(data string) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(data))
}

// Handshake expects connection_init and answers connection_ack.
func (c *Conn) Handshake() error {
	msg, err := c.Read()
	if err != nil {
		return err
	}
	if msg.Type != "connection_init" {
		return fmt.Errorf("expected connection_init, got %q", msg.Type)
	}
	return c.Send(Message{Type: "connection_ack"})
}

// ExpectStart reads a start message and decodes its payload.
func (c *Conn) ExpectStart() (Message, StartPayload, error) {
	var payload StartPayload

	msg, err := c.Read()
	if err != nil {
		return msg, payload, err
	}
	if msg.Type != "start" {
		return msg, payload, fmt.Errorf("expected start, got %q", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return msg, payload, err
	}
	return msg, payload, nil
}

// SendData pushes a result whose data object is data.
func (c *Conn) SendData(id string, data any) error {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return err
	}
	return c.Send(Message{ID: id, Type: "data", Payload: payload})
}

// SendPressure pushes a WatchHardware result carrying raw.
func (c *Conn) SendPressure(id string, raw int) error {
	return c.SendData(id, map[string]any{
		"watch": map[string]any{
			"inputs": map[string]any{
				"pressureFullscale": raw,
			},
		},
	})
}

// Complete ends the operation id.
func (c *Conn) Complete(id string) error {
	return c.Send(Message{ID: id, Type: "complete"})
}

// CloseNormal sends a normal-closure close frame.
func (c *Conn) CloseNormal() error {
	return c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

// Drain reads until the client goes away.
func (c *Conn) Drain() {
	for {
		if _, err := c.Read(); err != nil {
			return
		}
	}
}
