// Package channel implements scoped channels: paired, typed, ordered message
// endpoints connecting an isolated loader context to the coordinating
// process.
//
// Delivery is at most once and ordered per direction. There is no ordering
// across distinct channels. A message that cannot be delivered is reported as
// a channel error to the sender; it is never dropped silently.
package channel

import (
	"context"
	"io"
	"sync"

	"github.com/conneroisu/isle/internal/errors"
)

// Endpoint is one side of a scoped channel.
//
// Receive returns io.EOF once the peer has closed and every message it sent
// has been received. Send must not race Close on the same endpoint. A Send
// that overlaps the peer's Close fails with ErrPeerGone, even when the peer
// read the message just before closing.
type Endpoint[T any] interface {
	Send(ctx context.Context, msg T) error
	Receive(ctx context.Context) (T, error)
	Close() error
}

// ErrClosed is returned by Send on an endpoint that was closed locally.
var ErrClosed = errors.NewChannelError("CLOSED", "send on closed endpoint", nil)

// ErrPeerGone is returned by Send once the other side has closed.
var ErrPeerGone = errors.NewChannelError("PEER_GONE", "peer endpoint is closed", nil)

type pairEndpoint[T any] struct {
	in   <-chan T
	out  chan<- T
	done chan struct{}
	peer *pairEndpoint[T]
	once sync.Once
}

// Pair returns two connected in-process endpoints. buffer is the number of
// messages each direction can hold before Send blocks.
func Pair[T any](buffer int) (Endpoint[T], Endpoint[T]) {
	if buffer < 0 {
		buffer = 0
	}
	ab := make(chan T, buffer)
	ba := make(chan T, buffer)

	a := &pairEndpoint[T]{in: ba, out: ab, done: make(chan struct{})}
	b := &pairEndpoint[T]{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a

	return a, b
}

func (e *pairEndpoint[T]) Send(ctx context.Context, msg T) error {
	select {
	case <-e.done:
		return ErrClosed
	case <-e.peer.done:
		return ErrPeerGone
	default:
	}

	select {
	case e.out <- msg:
		// A buffered send can win the select against a peer that is
		// already closed.
		select {
		case <-e.peer.done:
			return ErrPeerGone
		default:
			return nil
		}
	case <-e.peer.done:
		return ErrPeerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *pairEndpoint[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	select {
	case msg := <-e.in:
		return msg, nil
	case <-e.peer.done:
		// The peer is gone but may have left messages in the buffer.
		select {
		case msg := <-e.in:
			return msg, nil
		default:
			return zero, io.EOF
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (e *pairEndpoint[T]) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}
