package link

import (
	"context"
	"fmt"
	"sync"

	"smartenv/internal/protocol"
)

const memoryQueueSize = 64

// Hub is an in-process broadcast medium connecting Memory links.
type Hub struct {
	mu    sync.Mutex
	nodes map[protocol.Addr]*Memory
	sent  []Frame
	drop  func(Frame) bool
}

func NewHub() *Hub {
	return &Hub{nodes: make(map[protocol.Addr]*Memory)}
}

// SetDrop installs a loss model; frames for which drop returns true are lost.
func (h *Hub) SetDrop(drop func(Frame) bool) {
	h.mu.Lock()
	h.drop = drop
	h.mu.Unlock()
}

// Attach adds a node to the hub.
func (h *Hub) Attach(addr protocol.Addr) *Memory {
	m := &Memory{hub: h, addr: addr, rx: make(chan Frame, memoryQueueSize)}
	h.mu.Lock()
	h.nodes[addr] = m
	h.mu.Unlock()
	return m
}

// Sent returns a copy of every frame handed to the hub, lost ones included.
func (h *Hub) Sent() []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Frame, len(h.sent))
	copy(out, h.sent)
	return out
}

func (h *Hub) deliver(f Frame) error {
	h.mu.Lock()
	h.sent = append(h.sent, f)
	if h.drop != nil && h.drop(f) {
		h.mu.Unlock()
		return nil
	}
	var targets []*Memory
	if f.To == protocol.Broadcast {
		for addr, n := range h.nodes {
			if addr != f.From {
				targets = append(targets, n)
			}
		}
	} else if n, ok := h.nodes[f.To]; ok {
		targets = append(targets, n)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, f.To)
	}
	for _, n := range targets {
		select {
		case n.rx <- f:
		default:
			// receiver queue full: the frame is lost, as on air
		}
	}
	return nil
}

// Memory is a Link attached to a Hub.
type Memory struct {
	hub  *Hub
	addr protocol.Addr
	rx   chan Frame
}

func (m *Memory) Addr() protocol.Addr { return m.addr }

func (m *Memory) MTU() int { return protocol.MaxFrameSize }

func (m *Memory) Send(ctx context.Context, to protocol.Addr, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame) > m.MTU() {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), m.MTU())
	}
	return m.hub.deliver(Frame{From: m.addr, To: to, Data: append([]byte(nil), frame...)})
}

func (m *Memory) Run(ctx context.Context, onFrame func(Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-m.rx:
			if onFrame != nil {
				onFrame(f)
			}
		}
	}
}
