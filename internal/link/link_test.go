package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"smartenv/internal/protocol"
)

var (
	addrA = protocol.Addr{0xA0, 0xDD, 0x6C, 0x10, 0x81, 0x40}
	addrB = protocol.Addr{0x10, 0x06, 0x1C, 0xBA, 0x1A, 0x00}
	addrC = protocol.Addr{0x02, 0, 0, 0, 0, 0x03}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUDP(t *testing.T, self protocol.Addr) *UDP {
	t.Helper()
	u, err := NewUDP(UDPOptions{Self: self, Listen: "127.0.0.1:0"}, discardLogger())
	if err != nil {
		t.Fatalf("NewUDP: %v", err)
	}
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func receiveOne(t *testing.T, l Link, timeout time.Duration) (Frame, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	got := make(chan Frame, 1)
	go func() {
		_ = l.Run(ctx, func(f Frame) {
			select {
			case got <- f:
			default:
			}
		})
	}()
	select {
	case f := <-got:
		return f, true
	case <-ctx.Done():
		return Frame{}, false
	}
}

func TestUDP_SendReceive(t *testing.T) {
	a := newUDP(t, addrA)
	b := newUDP(t, addrB)
	if err := a.AddPeer(addrB, b.LocalAddr()); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	frame := []byte{0x03, 'T', 'I', 'M', 'E', 0}
	done := make(chan struct{})
	var got Frame
	var ok bool
	go func() {
		got, ok = receiveOne(t, b, 2*time.Second)
		close(done)
	}()

	// The socket is bound, so the datagram queues even if Run has not started yet.
	if err := a.Send(context.Background(), addrB, frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-done

	if !ok {
		t.Fatal("no frame received")
	}
	if got.From != addrA || got.To != addrB {
		t.Errorf("from=%s to=%s, want from=%s to=%s", got.From, got.To, addrA, addrB)
	}
	if !bytes.Equal(got.Data, frame) {
		t.Errorf("data = % X, want % X", got.Data, frame)
	}
}

func TestUDP_IgnoresFramesForOtherNodes(t *testing.T) {
	a := newUDP(t, addrA)
	b := newUDP(t, addrB)
	// addrC is routed to b's socket, but b must ignore frames not addressed to it.
	if err := a.AddPeer(addrC, b.LocalAddr()); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := a.Send(context.Background(), addrC, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f, ok := receiveOne(t, b, 500*time.Millisecond); ok {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestUDP_SendErrors(t *testing.T) {
	a := newUDP(t, addrA)

	err := a.Send(context.Background(), addrB, []byte{1})
	if !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("unknown peer err = %v, want ErrUnknownPeer", err)
	}

	if err := a.AddPeer(addrB, "127.0.0.1:9"); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	err = a.Send(context.Background(), addrB, make([]byte, protocol.MaxFrameSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversized err = %v, want ErrFrameTooLarge", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Send(ctx, addrB, []byte{1}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled err = %v, want context.Canceled", err)
	}
}

func TestMemory_DeliveryAndDrop(t *testing.T) {
	hub := NewHub()
	a := hub.Attach(addrA)
	b := hub.Attach(addrB)

	if err := a.Send(context.Background(), addrB, []byte{9}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f, ok := receiveOne(t, b, time.Second)
	if !ok || f.From != addrA || !bytes.Equal(f.Data, []byte{9}) {
		t.Fatalf("got %+v ok=%v", f, ok)
	}

	hub.SetDrop(func(Frame) bool { return true })
	if err := a.Send(context.Background(), addrB, []byte{10}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if f, ok := receiveOne(t, b, 100*time.Millisecond); ok {
		t.Fatalf("dropped frame delivered: %+v", f)
	}
	if n := len(hub.Sent()); n != 2 {
		t.Errorf("Sent() = %d frames, want 2", n)
	}
}

func TestMemory_Broadcast(t *testing.T) {
	hub := NewHub()
	a := hub.Attach(addrA)
	b := hub.Attach(addrB)
	c := hub.Attach(addrC)

	if err := a.Send(context.Background(), protocol.Broadcast, []byte{1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, l := range []Link{b, c} {
		if _, ok := receiveOne(t, l, time.Second); !ok {
			t.Errorf("%s did not receive broadcast", l.Addr())
		}
	}
	if _, ok := receiveOne(t, a, 100*time.Millisecond); ok {
		t.Error("sender received its own broadcast")
	}
}

func TestUDP_ConcurrentSendsIgnoreOtherDeadlines(t *testing.T) {
	a := newUDP(t, addrA)
	b := newUDP(t, addrB)
	if err := a.AddPeer(addrB, b.LocalAddr()); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	const senders = 8
	const rounds = 50
	errs := make(chan error, senders*rounds)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if i%2 == 0 {
					// Short-lived callers must not leave their deadline behind.
					ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
					_ = a.Send(ctx, addrB, []byte{byte(j)})
					cancel()
					continue
				}
				if err := a.Send(context.Background(), addrB, []byte{byte(j)}); err != nil {
					errs <- err
				}
				time.Sleep(100 * time.Microsecond)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Send without deadline failed: %v", err)
	}
}

func TestUDP_LearnsSenderEndpoint(t *testing.T) {
	a := newUDP(t, addrA)
	b := newUDP(t, addrB)
	if err := a.AddPeer(addrB, b.LocalAddr()); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := a.Send(context.Background(), addrB, []byte{1}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := receiveOne(t, b, 2*time.Second); !ok {
		t.Fatal("no frame received")
	}

	// b never had a configured route back to a.
	if err := b.Send(context.Background(), addrA, []byte{2}); err != nil {
		t.Fatalf("reply Send: %v", err)
	}
	f, ok := receiveOne(t, a, 2*time.Second)
	if !ok || !bytes.Equal(f.Data, []byte{2}) {
		t.Fatalf("reply got %+v ok=%v", f, ok)
	}
}
