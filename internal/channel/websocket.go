package channel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/isle/internal/errors"
)

type wsEndpoint[T any] struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWebSocket wraps an established websocket connection. Each message is a
// single JSON text frame. Cancelling the context of a pending Receive tears
// the connection down, as coder/websocket does for every read.
func NewWebSocket[T any](conn *websocket.Conn) Endpoint[T] {
	return &wsEndpoint[T]{conn: conn, closed: make(chan struct{})}
}

func (e *wsEndpoint[T]) Send(ctx context.Context, msg T) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	if err := wsjson.Write(ctx, e.conn, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewChannelError("PEER_GONE", "websocket write failed", err)
	}
	return nil
}

func (e *wsEndpoint[T]) Receive(ctx context.Context) (T, error) {
	var msg T
	err := wsjson.Read(ctx, e.conn, &msg)
	if err == nil {
		return msg, nil
	}

	var zero T
	switch {
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
		return zero, io.EOF
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case websocket.CloseStatus(err) != -1:
		return zero, errors.NewChannelError("PEER_GONE", "websocket closed abnormally", err)
	default:
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
			return zero, errors.NewChannelError("MALFORMED", "malformed websocket message", err)
		}
		return zero, errors.NewChannelError("PEER_GONE", "websocket read failed", err)
	}
}

func (e *wsEndpoint[T]) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		err = e.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
