// Package link carries frames between nodes. It models a link-layer broadcast
// medium: fixed peer addresses, no delivery guarantee, no fragmentation.
package link

import (
	"context"
	"errors"

	"smartenv/internal/protocol"
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds link MTU")
	ErrUnknownPeer   = errors.New("unknown peer address")
	ErrClosed        = errors.New("link closed")
)

// Frame is one received transmission.
type Frame struct {
	From protocol.Addr
	To   protocol.Addr
	Data []byte
}

// Link sends and receives frames on behalf of one node.
// Send is safe for concurrent use.
type Link interface {
	Addr() protocol.Addr
	MTU() int
	Send(ctx context.Context, to protocol.Addr, frame []byte) error
	// Run delivers inbound frames to onFrame until ctx is done.
	Run(ctx context.Context, onFrame func(Frame)) error
}
