package graphql_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"codeberg.org/mutker/pressurebar/internal/graphql"
	"codeberg.org/mutker/pressurebar/internal/graphql/graphqltest"
	"codeberg.org/mutker/pressurebar/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var watchHardware = graphql.Request{Query: telemetry.WatchHardware}

func newClient(t *testing.T, url string) *graphql.Client {
	t.Helper()

	client := graphql.NewClient(graphql.Options{URL: url, HandshakeTimeout: 5 * time.Second})
	t.Cleanup(func() { client.Close() })

	return client
}

// collect subscribes to WatchHardware and appends every result to the
// returned slice.
func collect(t *testing.T, client *graphql.Client) *[]string {
	t.Helper()

	var got []string
	_, err := client.Subscribe(watchHardware, func(data json.RawMessage) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)

	return &got
}

// afterStart runs script once the client has subscribed.
func afterStart(script func(c *graphqltest.Conn, id string)) graphqltest.Handler {
	return func(c *graphqltest.Conn) {
		if c.Handshake() != nil {
			return
		}
		msg, _, err := c.ExpectStart()
		if err != nil {
			return
		}
		script(c, msg.ID)
	}
}

// finish completes id and closes the websocket normally.
func finish(c *graphqltest.Conn, id string) {
	c.Complete(id)
	c.CloseNormal()
	c.Drain()
}

func TestRunStreamsData(t *testing.T) {
	starts := make(chan graphqltest.StartPayload, 1)
	ids := make(chan string, 1)

	srv := graphqltest.NewServer(t, func(c *graphqltest.Conn) {
		if c.Handshake() != nil {
			return
		}
		msg, payload, err := c.ExpectStart()
		if err != nil {
			return
		}
		starts <- payload
		ids <- msg.ID

		c.SendPressure(msg.ID, 6554)
		c.SendPressure(msg.ID, 13107)
		finish(c, msg.ID)
	})

	client := newClient(t, srv.URL)

	var got []string
	id, err := client.Subscribe(watchHardware, func(data json.RawMessage) error {
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, client.Run(context.Background()))

	require.Len(t, got, 2)
	assert.JSONEq(t, `{"watch":{"inputs":{"pressureFullscale":6554}}}`, got[0])
	assert.JSONEq(t, `{"watch":{"inputs":{"pressureFullscale":13107}}}`, got[1])

	payload := <-starts
	assert.Contains(t, payload.Query, "subscription WatchHardware")
	assert.Contains(t, payload.Query, "watch(period: 0.2)")
	assert.Contains(t, payload.Query, "pressureFullscale")
	assert.Equal(t, id, <-ids)

	require.NoError(t, client.Close())
	srv.Close()
	assert.Equal(t, 1, srv.Starts(), "exactly one start message")
	assert.Equal(t, 0, srv.Pings(), "client must never ping")
}

func TestSubscribeTwiceFails(t *testing.T) {
	started := make(chan string, 1)

	srv := graphqltest.NewServer(t, afterStart(func(c *graphqltest.Conn, id string) {
		started <- id
		finish(c, id)
	}))

	client := newClient(t, srv.URL)
	collect(t, client)

	_, err := client.Subscribe(watchHardware, func(json.RawMessage) error { return nil })
	require.Error(t, err)
	assert.Equal(t, graphql.ErrAlreadySubscribed, errors.CodeOf(err))

	require.NoError(t, client.Run(context.Background()))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("server never received a start message")
	}

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "Close is idempotent")

	_, err = client.Subscribe(watchHardware, func(json.RawMessage) error { return nil })
	assert.Equal(t, graphql.ErrClosed, errors.CodeOf(err))
	assert.Equal(t, graphql.ErrClosed, errors.CodeOf(client.Run(context.Background())))

	srv.Close()
	assert.Equal(t, 1, srv.Starts())
	assert.Equal(t, 0, srv.Pings())
}

func TestKeepAliveIsSkipped(t *testing.T) {
	srv := graphqltest.NewServer(t, func(c *graphqltest.Conn) {
		if _, err := c.Read(); err != nil {
			return
		}
		c.Send(graphqltest.Message{Type: "connection_ack"})
		c.Send(graphqltest.Message{Type: "ka"})
		msg, _, err := c.ExpectStart()
		if err != nil {
			return
		}
		c.Send(graphqltest.Message{Type: "ka"})
		c.SendPressure(msg.ID, 1)
		finish(c, msg.ID)
	})

	client := newClient(t, srv.URL)
	got := collect(t, client)

	require.NoError(t, client.Run(context.Background()))
	require.Len(t, *got, 1)
	assert.JSONEq(t, `{"watch":{"inputs":{"pressureFullscale":1}}}`, (*got)[0])
}

func TestConnectFailures(t *testing.T) {
	t.Run("refused", func(t *testing.T) {
		closed := httptest.NewServer(nil)
		url := "ws" + strings.TrimPrefix(closed.URL, "http")
		closed.Close()

		client := newClient(t, url)
		collect(t, client)

		err := client.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, graphql.ErrDialFailed, errors.CodeOf(err))
	})

	t.Run("subprotocol rejected", func(t *testing.T) {
		srv := graphqltest.NewServer(t, func(c *graphqltest.Conn) {
			c.Drain()
		}, graphqltest.WithSubprotocols())

		client := newClient(t, srv.URL)
		collect(t, client)

		err := client.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, graphql.ErrSubprotocolRejected, errors.CodeOf(err))
	})

	t.Run("connection error", func(t *testing.T) {
		srv := graphqltest.NewServer(t, func(c *graphqltest.Conn) {
			if _, err := c.Read(); err != nil {
				return
			}
			c.Send(graphqltest.Message{Type: "connection_error", Payload: json.RawMessage(`{"message":"not allowed"}`)})
		})

		client := newClient(t, srv.URL)
		got := collect(t, client)

		require.Error(t, client.Run(context.Background()))
		assert.Empty(t, *got)
	})
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		script func(c *graphqltest.Conn, id string)
		code   errors.ErrorCode
		text   string
	}{
		{
			name: "graphql errors in result",
			script: func(c *graphqltest.Conn, id string) {
				c.Send(graphqltest.Message{ID: id, Type: "data",
					Payload: json.RawMessage(`{"data":null,"errors":[{"message":"boom"}]}`)})
				c.Drain()
			},
			code: graphql.ErrServerError,
			text: "boom",
		},
		{
			name: "error message",
			script: func(c *graphqltest.Conn, id string) {
				c.Send(graphqltest.Message{ID: id, Type: "error",
					Payload: json.RawMessage(`[{"message":"unknown field"}]`)})
				c.Drain()
			},
			text: "unknown field",
		},
		{
			name: "malformed frame",
			script: func(c *graphqltest.Conn, _ string) {
				c.SendRaw("not json")
				c.Drain()
			},
			code: graphql.ErrProtocolViolation,
		},
		{
			name:   "abrupt disconnect",
			script: func(*graphqltest.Conn, string) {},
			code:   graphql.ErrReadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := graphqltest.NewServer(t, afterStart(tt.script))

			client := newClient(t, srv.URL)
			collect(t, client)

			err := client.Run(context.Background())
			require.Error(t, err)
			if tt.code != "" {
				assert.Equal(t, tt.code, errors.CodeOf(err))
			}
			if tt.text != "" {
				assert.Contains(t, err.Error(), tt.text)
			}
		})
	}
}

func TestNormalCloseEndsStream(t *testing.T) {
	srv := graphqltest.NewServer(t, afterStart(func(c *graphqltest.Conn, id string) {
		c.SendPressure(id, 42)
		c.CloseNormal()
		c.Drain()
	}))

	client := newClient(t, srv.URL)
	got := collect(t, client)

	require.NoError(t, client.Run(context.Background()))
	assert.Len(t, *got, 1)
}

func TestHandlerErrorStopsRun(t *testing.T) {
	srv := graphqltest.NewServer(t, afterStart(func(c *graphqltest.Conn, id string) {
		c.SendPressure(id, 1)
		c.SendPressure(id, 2)
		c.Drain()
	}))

	client := newClient(t, srv.URL)

	calls := 0
	stop := fmt.Errorf("stop here")
	_, err := client.Subscribe(watchHardware, func(json.RawMessage) error {
		calls++
		return stop
	})
	require.NoError(t, err)

	err = client.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCancelStopsRun(t *testing.T) {
	srv := graphqltest.NewServer(t, afterStart(func(c *graphqltest.Conn, _ string) {
		c.Drain()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(t, srv.URL)
	collect(t, client)

	time.AfterFunc(50*time.Millisecond, cancel)

	err := client.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
