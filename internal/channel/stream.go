package channel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"

	"github.com/conneroisu/isle/internal/errors"
)

type received[T any] struct {
	msg T
	err error
}

// streamEndpoint speaks newline-delimited JSON over a byte stream, typically
// the stdin/stdout pipes of a child process.
type streamEndpoint[T any] struct {
	r io.Reader
	w io.WriteCloser

	writeMu sync.Mutex
	enc     *json.Encoder

	startOnce sync.Once
	incoming  chan received[T]

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStream returns an endpoint reading JSON values from r and writing them
// to w, one per line. Closing the endpoint closes w, and r too when it is an
// io.Closer.
func NewStream[T any](r io.Reader, w io.WriteCloser) Endpoint[T] {
	return &streamEndpoint[T]{
		r:        r,
		w:        w,
		enc:      json.NewEncoder(w),
		incoming: make(chan received[T], 16),
		closed:   make(chan struct{}),
	}
}

func (e *streamEndpoint[T]) Send(ctx context.Context, msg T) error {
	select {
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.enc.Encode(msg); err != nil {
		var unsupported *json.UnsupportedValueError
		var unsupportedType *json.UnsupportedTypeError
		if stderrors.As(err, &unsupported) || stderrors.As(err, &unsupportedType) {
			return errors.NewChannelError("MALFORMED", "message is not JSON-encodable", err)
		}
		return errors.NewChannelError("PEER_GONE", "write to peer failed", err)
	}
	return nil
}

func (e *streamEndpoint[T]) Receive(ctx context.Context) (T, error) {
	e.startOnce.Do(func() { go e.readLoop() })

	var zero T
	select {
	case r, ok := <-e.incoming:
		if !ok {
			return zero, io.EOF
		}
		return r.msg, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (e *streamEndpoint[T]) readLoop() {
	defer close(e.incoming)

	dec := json.NewDecoder(e.r)
	for {
		var msg T
		err := dec.Decode(&msg)
		if err == io.EOF {
			return
		}
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
				err = errors.NewChannelError("MALFORMED", "malformed message from peer", err)
			} else {
				err = errors.NewChannelError("PEER_GONE", "read from peer failed", err)
			}
		}

		select {
		case e.incoming <- received[T]{msg: msg, err: err}:
		case <-e.closed:
			return
		}

		// A decoder that failed mid-stream cannot resynchronise.
		if err != nil {
			return
		}
	}
}

func (e *streamEndpoint[T]) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)

		e.writeMu.Lock()
		err = e.w.Close()
		e.writeMu.Unlock()

		if rc, ok := e.r.(io.Closer); ok {
			if cerr := rc.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
