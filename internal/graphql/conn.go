package graphql

import (
	"encoding/json"
	"sync/atomic"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla connection to the subscription client. Transport
// failures are classified here and reported to the owning Client.
type wsConn struct {
	ws     *websocket.Conn
	client *Client

	localClosed atomic.Bool
}

func (w *wsConn) ReadJSON(v interface{}) error {
	errFactory := errors.New()

	_, data, err := w.ws.ReadMessage()
	if err != nil {
		w.client.readFailed(w, err)
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		w.client.fail(errFactory.Wrap(ErrProtocolViolation, err).WithData(string(data)))
		w.Close()
		return err
	}

	return nil
}

func (w *wsConn) WriteJSON(v interface{}) error {
	if err := w.ws.WriteJSON(v); err != nil {
		if !w.localClosed.Load() {
			w.client.fail(errors.New().Wrap(ErrWriteFailed, err))
		}
		return err
	}
	return nil
}

// Ping is a no-op: the target servers drop connections that send ping
// frames.
func (w *wsConn) Ping() error {
	return nil
}

func (w *wsConn) SetReadLimit(limit int64) {
	w.ws.SetReadLimit(limit)
}

func (w *wsConn) GetCloseStatus(err error) int32 {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return int32(closeErr.Code)
	}
	return -1
}

func (w *wsConn) Close() error {
	if w.localClosed.Swap(true) {
		return nil
	}
	return w.ws.Close()
}
