// Package graphql is a client for GraphQL subscriptions carried over the
// Apollo graphql-ws websocket sub-protocol (subscriptions-transport-ws).
//
// A Client owns one websocket and at most one subscription. It never sends
// websocket ping frames and never reconnects: the target servers do not
// implement ping/pong and drop connections that send them.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"codeberg.org/mutker/pressurebar/internal/logger"
	"github.com/gorilla/websocket"
	gql "github.com/hasura/go-graphql-client"
)

// Subprotocol is the websocket sub-protocol name of the Apollo protocol.
const Subprotocol = "graphql-ws"

type Options struct {
	// URL of the subscription endpoint, ws:// or wss://.
	URL string

	// HandshakeTimeout bounds the websocket upgrade. Zero means no limit.
	HandshakeTimeout time.Duration
}

// Request is the document started on the connection.
type Request struct {
	Query     string
	Variables map[string]any
}

// Handler receives the data object of each result in arrival order. A non-nil
// return ends the subscription and is returned from Run.
type Handler func(data json.RawMessage) error

type Client struct {
	opts Options
	sc   *gql.SubscriptionClient

	mu         sync.Mutex
	ctx        context.Context
	conn       *wsConn
	dialed     bool
	subscribed bool
	closed     bool
	ended      bool
	fatal      error
}

func NewClient(opts Options) *Client {
	c := &Client{
		opts: opts,
		ctx:  context.Background(),
	}

	c.sc = gql.NewSubscriptionClient(opts.URL).
		WithProtocol(gql.SubscriptionsTransportWS).
		WithWebSocket(c.dial).
		WithSyncMode(true).
		WithExitWhenNoSubscription(true).
		WithRetryTimeout(time.Nanosecond).
		WithLog(func(args ...interface{}) {
			logger.Debug().Msg(fmt.Sprint(args...))
		}).
		OnError(c.onError)

	return c
}

// Subscribe registers req. The start message is sent once Run has completed
// the connection_init / connection_ack exchange.
func (c *Client) Subscribe(req Request, handler Handler) (string, error) {
	errFactory := errors.New()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", errFactory.New(ErrClosed)
	case c.subscribed:
		c.mu.Unlock()
		return "", errFactory.New(ErrAlreadySubscribed)
	}
	c.subscribed = true
	c.mu.Unlock()

	id, err := c.sc.Exec(req.Query, req.Variables, func(message []byte, err error) error {
		if err != nil {
			c.abort(errFactory.Wrap(ErrServerError, err))
			return err
		}
		if err := handler(message); err != nil {
			c.abort(err)
			return err
		}
		return nil
	})
	if err != nil {
		return "", errFactory.Wrap(ErrServerError, err)
	}

	logger.Debug().Str("id", id).Msg("Subscription registered")

	return id, nil
}

// Run connects and delivers results until the server completes the
// subscription or closes normally (nil), ctx is cancelled (ctx.Err()), or
// the stream fails.
func (c *Client) Run(ctx context.Context) error {
	errFactory := errors.New()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errFactory.New(ErrClosed)
	}
	c.ctx = ctx
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.sc.Close()
	})
	defer stop()

	err := c.sc.Run()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.fatal != nil:
		return c.fatal
	case ctx.Err() != nil:
		return ctx.Err()
	case c.ended || err == nil:
		logger.Info().Msg("Subscription stream ended")
		return nil
	}

	return errFactory.Wrap(ErrStreamFailed, err)
}

// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.sc.Close()
}

// dial is called by the subscription client for every (re)connect. Only the
// first attempt is honoured.
func (c *Client) dial(_ *gql.SubscriptionClient) (gql.WebsocketConn, error) {
	errFactory := errors.New()

	c.mu.Lock()
	ctx := c.ctx
	if c.dialed {
		ended := c.ended
		c.mu.Unlock()
		err := errFactory.New(ErrConnectionLost)
		if !ended {
			c.fail(err)
		}
		return nil, err
	}
	c.dialed = true
	c.mu.Unlock()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}

	logger.Debug().Str("url", c.opts.URL).Msg("Dialing subscription endpoint")

	ws, resp, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		status := ""
		if resp != nil {
			status = resp.Status
		}
		dialErr := errFactory.Wrap(ErrDialFailed, err).WithData(struct {
			URL    string
			Status string
			Error  string
		}{
			URL:    c.opts.URL,
			Status: status,
			Error:  err.Error(),
		})
		if ctx.Err() == nil {
			c.fail(dialErr)
		}
		return nil, dialErr
	}

	if ws.Subprotocol() != Subprotocol {
		ws.Close()
		err := errFactory.WithData(ErrSubprotocolRejected, struct {
			Offered  string
			Selected string
		}{
			Offered:  Subprotocol,
			Selected: ws.Subprotocol(),
		})
		c.fail(err)
		return nil, err
	}

	conn := &wsConn{ws: ws, client: c}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.Info().Str("url", c.opts.URL).Msg("Connected to subscription endpoint")

	return conn, nil
}

func (c *Client) onError(_ *gql.SubscriptionClient, err error) error {
	c.mu.Lock()
	quiet := c.fatal != nil || c.ended || c.closed || c.ctx.Err() != nil
	c.mu.Unlock()

	if !quiet {
		c.fail(errors.New().Wrap(ErrStreamFailed, err))
	}
	c.closeConn()

	return err
}

// readFailed classifies a read error on conn. Local closes and cancellation
// are not failures; a normal close from the server ends the stream.
func (c *Client) readFailed(conn *wsConn, err error) {
	if conn.localClosed.Load() {
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.ended = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.fail(errors.New().Wrap(ErrReadFailed, err))
}

// fail records err unless an earlier failure is already recorded.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fatal == nil {
		c.fatal = err
	}
}

// abort records err and drops the connection so Run returns.
func (c *Client) abort(err error) {
	c.fail(err)
	c.closeConn()
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
